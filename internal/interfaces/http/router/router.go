// Package router 提供 HTTP 路由配置
package router

import (
	"growth-journal-api/internal/config"
	"growth-journal-api/internal/interfaces/http/handler"
	"growth-journal-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Health *handler.HealthHandler
	AI     *handler.AIHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limiter  middleware.RateLimiter
}

// New 创建新的路由器，limiter 为空时不限流
func New(cfg *config.Config, handlers Handlers, limiter middleware.RateLimiter) *Router {
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

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	if h := r.handlers.Health; h != nil {
		r.engine.GET("/health", h.Health)
		r.engine.GET("/ready", h.Ready)
		r.engine.GET("/live", h.Live)
	}

	// 指标端口为 0 时挂在主服务上
	metricsCfg := r.cfg.Observability.Metrics
	if metricsCfg.Enabled && metricsCfg.Port == 0 {
		r.engine.GET(metricsCfg.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/v1")
	v1.Use(middleware.Auth(middleware.AuthConfig{
		Secret:  r.cfg.Security.JWT.Secret,
		Issuer:  r.cfg.Security.JWT.Issuer,
		Enabled: true,
	}))
	v1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:           r.cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
		Burst:             r.cfg.Security.RateLimit.Burst,
	}, r.limiter))

	if h := r.handlers.AI; h != nil {
		registerAIRoutes(v1.Group("/ai"), h)
	}
}

// registerAIRoutes 注册 AI 任务路由
func registerAIRoutes(ai *gin.RouterGroup, h *handler.AIHandler) {
	ai.POST("/emotion/analyze", h.AnalyzeEmotion)
	ai.POST("/emotion/photo", h.GenerateEmotionPhoto)
	ai.POST("/emotion/curve", h.GenerateEmotionCurve)

	ai.POST("/career/analyze", h.AnalyzeCareer)
	ai.POST("/career/action", h.GenerateCareerAction)
	ai.POST("/career/ability", h.GenerateCareerAbility)

	ai.POST("/summary", h.GenerateSummary)
	ai.POST("/ability/evaluate", h.EvaluateAbility)
	ai.POST("/collection/summary", h.GenerateCollectionSummary)

	ai.GET("/usage", h.GetUsage)
}
