// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	redisinfra "growth-journal-api/internal/infrastructure/persistence/redis"
	apperrors "growth-journal-api/pkg/errors"
	"growth-journal-api/pkg/logger"
	"growth-journal-api/pkg/metrics"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// Enabled 是否启用限流
	Enabled bool
	// RequestsPerSecond 每个用户每秒请求数
	RequestsPerSecond int
	// Burst 突发容量，仅本地限流器使用
	Burst int
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 限流中间件，按用户与路由计数；限流器故障时放行
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 100
	}

	return func(c *gin.Context) {
		subject := GetUserIDFromGin(c)
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := redisinfra.BuildUserRateLimitKey(subject, path)

		allowed, err := limiter.Allow(c.Request.Context(), key, cfg.RequestsPerSecond, time.Second)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "key", key, "error", err.Error())
			c.Next()
			return
		}

		if !allowed {
			metrics.RateLimitedTotal.WithLabelValues(path).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":       http.StatusTooManyRequests,
				"message":    apperrors.ErrTooManyRequests.Message,
				"error_code": string(apperrors.CodeTooManyRequests),
				"trace_id":   c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}

// LocalRateLimiter 进程内令牌桶限流，未启用 Redis 时使用
type LocalRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	burst    int
	maxKeys  int
}

// NewLocalRateLimiter 创建本地限流器，burst 小于 1 时取 limit
func NewLocalRateLimiter(burst int) *LocalRateLimiter {
	return &LocalRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		burst:    burst,
		maxKeys:  10000,
	}
}

// Allow 实现 RateLimiter
func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	return l.limiter(key, limit, window).Allow(), nil
}

func (l *LocalRateLimiter) limiter(key string, limit int, window time.Duration) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	// 键过多时整体重置
	if len(l.limiters) >= l.maxKeys {
		l.limiters = make(map[string]*rate.Limiter)
	}

	burst := l.burst
	if burst < 1 {
		burst = limit
	}
	if window <= 0 {
		window = time.Second
	}
	lim := rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), burst)
	l.limiters[key] = lim
	return lim
}
