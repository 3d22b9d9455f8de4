// Package router 提供 HTTP 路由配置
package router

import (
	"subtitle-history-api/internal/config"
	"subtitle-history-api/internal/infrastructure/persistence/redis"
	"subtitle-history-api/internal/interfaces/http/handler"
	"subtitle-history-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterHandlers 路由依赖的处理器
type RouterHandlers struct {
	Health    *handler.HealthHandler
	Subtitles *handler.SubtitleHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers *RouterHandlers
	limiter  middleware.RateLimiter
}

// NewWithDeps 创建路由器；limiter 为 nil 时写接口不限流
func NewWithDeps(cfg *config.Config, handlers *RouterHandlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics("/health", "/ready", "/live", r.metricsPath()))
	}

	r.engine.Use(middleware.Identity(middleware.IdentityConfig{
		SkipPaths: middleware.DefaultSkipPaths,
	}))
}

func (r *Router) metricsPath() string {
	if r.cfg.Observability.Metrics.Path == "" {
		return "/metrics"
	}
	return r.cfg.Observability.Metrics.Path
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.handlers.Health.Health)
	r.engine.GET("/ready", r.handlers.Health.Ready)
	r.engine.GET("/live", r.handlers.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.metricsPath(), gin.WrapH(promhttp.Handler()))
	}

	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:  r.cfg.Security.RateLimit.Enabled,
		Requests: r.cfg.Security.RateLimit.Requests,
		Window:   r.cfg.Security.RateLimit.Window,
		KeyFunc:  redis.BuildWriteRateLimitKey,
	}, r.limiter)

	RegisterV1Routes(r.engine.Group("/v1"), r.handlers.Subtitles, rateLimit)
}
