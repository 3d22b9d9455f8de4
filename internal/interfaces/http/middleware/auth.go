// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"
	"strings"

	"subtitle-history-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// UserIDHeader 由上游网关完成认证后注入的用户 ID
const UserIDHeader = "X-User-ID"

// IdentityConfig 身份识别配置
type IdentityConfig struct {
	// Required 为 true 时缺少用户头直接返回 401
	Required bool
	// SkipPaths 跳过身份识别的路径前缀
	SkipPaths []string
}

// DefaultSkipPaths 默认跳过身份识别的路径
var DefaultSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}

// Identity 读取网关注入的用户 ID 写入 gin 与 logger 上下文
func Identity(cfg IdentityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, path := range cfg.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			if cfg.Required {
				abortUnauthorized(c, "missing "+UserIDHeader+" header")
				return
			}
			c.Next()
			return
		}

		c.Set("user_id", userID)
		ctx := logger.WithContext(c.Request.Context(), logger.UserIDKey, userID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// abortUnauthorized 终止请求并返回 401
func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":     401,
		"message":  msg,
		"trace_id": c.GetString("trace_id"),
	})
}
