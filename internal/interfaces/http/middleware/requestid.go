// Package middleware 提供 HTTP 中间件
package middleware

import (
	"subtitle-history-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// RequestID 请求 ID 注入中间件
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		ctx := logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// SubtitleScope 将路由中的视频与语言写入 logger 上下文，挂在 /videos/:vid 路由组上
func SubtitleScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if vid := c.Param("vid"); vid != "" {
			ctx = logger.WithContext(ctx, logger.VideoIDKey, vid)
		}
		if lang := c.Param("lang"); lang != "" {
			ctx = logger.WithContext(ctx, logger.LanguageCodeKey, lang)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
