// Package wire 负责应用启动时的依赖装配
package wire

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"growth-journal-api/internal/application/aigateway"
	"growth-journal-api/internal/application/quota"
	"growth-journal-api/internal/config"
	"growth-journal-api/internal/domain/repository"
	"growth-journal-api/internal/infrastructure/persistence/memory"
	"growth-journal-api/internal/infrastructure/persistence/postgres"
	"growth-journal-api/internal/infrastructure/persistence/redis"
	"growth-journal-api/internal/infrastructure/signing"
	"growth-journal-api/internal/infrastructure/workflow"
	"growth-journal-api/internal/interfaces/http/handler"
	"growth-journal-api/internal/interfaces/http/middleware"
	"growth-journal-api/internal/interfaces/http/router"
	"growth-journal-api/pkg/logger"
)

// App 装配完成的应用
type App struct {
	router  *router.Router
	Gateway *aigateway.Gateway
	Ledger  *quota.UsageLedger
}

// Engine 返回 HTTP 引擎
func (a *App) Engine() *gin.Engine {
	return a.router.Engine()
}

// DataLayer 存储依赖，未启用的组件为空
type DataLayer struct {
	PgClient    *postgres.Client
	RedisClient *redis.Client
	UsageRepo   repository.UsageRecordRepository
}

// InitializeDataLayer 按配置打开存储连接
func InitializeDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, func(), error) {
	dl := &DataLayer{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.AI.Ledger.Driver {
	case "memory":
		logger.Warn(ctx, "usage ledger uses in-memory storage, counts are lost on restart")
		dl.UsageRepo = memory.NewUsageRecordRepository()
	default:
		pg, err := postgres.NewClient(&cfg.Database.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres: %w", err)
		}
		closers = append(closers, func() {
			if err := pg.Close(); err != nil {
				logger.Error(ctx, "failed to close postgres", err)
			}
		})
		dl.PgClient = pg
		dl.UsageRepo = postgres.NewUsageRecordRepository(pg)
	}

	if cfg.Cache.Redis.Enabled {
		rc, err := redis.NewClient(&cfg.Cache.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init redis: %w", err)
		}
		closers = append(closers, func() {
			if err := rc.Close(); err != nil {
				logger.Error(ctx, "failed to close redis", err)
			}
		})
		dl.RedisClient = rc
	}

	return dl, cleanup, nil
}

// InitializePostgresOnly 仅打开 PostgreSQL（用于 bootstrap）
func InitializePostgresOnly(_ context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	pg, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres: %w", err)
	}
	return pg, func() { _ = pg.Close() }, nil
}

// InitializeApp 装配签名器、工作流客户端、用量账本、网关与路由
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	dl, cleanup, err := InitializeDataLayer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	app, err := buildApp(cfg, dl)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return app, cleanup, nil
}

func buildApp(cfg *config.Config, dl *DataLayer) (*App, error) {
	signer, err := signing.NewSigner(cfg.AI.PrivateKeyPath, cfg.AI.PublicKeyFingerprint)
	if err != nil {
		return nil, fmt.Errorf("init signer: %w", err)
	}

	client, err := workflow.NewClient(workflow.Options{
		BaseURL:  cfg.AI.BaseURL,
		Endpoint: cfg.AI.Endpoint,
		AppID:    cfg.AI.AppID,
		Timeout:  cfg.AI.Timeout,
		Retry: workflow.RetryPolicy{
			MaxAttempts: cfg.AI.MaxAttempts,
			Initial:     cfg.AI.Backoff.Initial,
			Max:         cfg.AI.Backoff.Max,
			Multiplier:  cfg.AI.Backoff.Multiplier,
		},
	}, signer)
	if err != nil {
		return nil, fmt.Errorf("init workflow client: %w", err)
	}

	loc, err := cfg.AI.Location()
	if err != nil {
		return nil, err
	}
	ledger := quota.NewUsageLedger(dl.UsageRepo, cfg.AI.DailyLimit, loc)

	wf := cfg.AI.Workflows
	gateway := aigateway.New(client, ledger, aigateway.Workflows{
		EmotionAnalysis:   wf.EmotionAnalysis,
		CareerAnalysis:    wf.CareerAnalysis,
		ContentSummary:    wf.ContentSummary,
		AbilityEvaluation: wf.AbilityEvaluation,
		EmotionPhoto:      wf.EmotionPhoto,
		EmotionCurve:      wf.EmotionCurve,
		CareerAction:      wf.CareerAction,
		CareerAbility:     wf.CareerAbility,
		CollectionSummary: wf.CollectionSummary,
	})

	deps := []handler.Dependency{{Name: "postgres", Required: true}}
	if dl.PgClient != nil {
		deps[0].Checker = dl.PgClient
	}
	redisDep := handler.Dependency{Name: "redis"}

	var limiter middleware.RateLimiter = middleware.NewLocalRateLimiter(cfg.Security.RateLimit.Burst)
	if dl.RedisClient != nil {
		redisDep.Checker = dl.RedisClient
		limiter = redis.NewRateLimiter(dl.RedisClient)
	}
	deps = append(deps, redisDep)

	r := router.New(cfg, router.Handlers{
		Health: handler.NewHealthHandler(cfg.App.Version, deps...),
		AI:     handler.NewAIHandler(gateway, ledger),
	}, limiter)

	return &App{router: r, Gateway: gateway, Ledger: ledger}, nil
}
