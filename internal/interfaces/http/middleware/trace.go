// Package middleware 提供 HTTP 中间件
package middleware

import (
	"subtitle-history-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Trace OpenTelemetry 追踪中间件
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceContext 注入 trace_id 到 Context，并在 span 上标注视频与语言
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.SpanContext().IsValid() {
			traceID := span.SpanContext().TraceID().String()
			spanID := span.SpanContext().SpanID().String()

			c.Set("trace_id", traceID)
			c.Set("span_id", spanID)

			ctx := logger.WithContext(c.Request.Context(), logger.TraceIDKey, traceID)
			ctx = logger.WithContext(ctx, logger.SpanIDKey, spanID)
			c.Request = c.Request.WithContext(ctx)

			if vid := c.Param("vid"); vid != "" {
				span.SetAttributes(attribute.String("subtitle.video_id", vid))
			}
			if lang := c.Param("lang"); lang != "" {
				span.SetAttributes(attribute.String("subtitle.language_code", lang))
			}

			c.Header("X-Trace-ID", traceID)
		}

		c.Next()
	}
}
