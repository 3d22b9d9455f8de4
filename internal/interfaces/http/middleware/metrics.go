package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"subtitle-history-api/pkg/metrics"
)

// unmatchedRoute 未命中路由时的 path 标签，避免按原始 URL 产生无界标签
const unmatchedRoute = "unmatched"

// Metrics Prometheus 指标采集中间件；path 使用路由模板（如 /v1/videos/:vid/languages/:lang/tip），
// skipPaths 中的路径（指标抓取、探针）不计数
func Metrics(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		method := c.Request.Method
		inFlight := metrics.HTTPRequestsInFlight.WithLabelValues(method)
		inFlight.Inc()
		defer inFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
