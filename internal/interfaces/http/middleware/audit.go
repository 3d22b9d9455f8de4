// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"
	"time"

	"subtitle-history-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Audit 记录写请求的访问日志；只读请求不记录
func Audit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		logger.Info(c.Request.Context(), "subtitle write request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"video_id", c.Param("vid"),
			"language_code", c.Param("lang"),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}
