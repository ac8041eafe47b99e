package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"growth-journal-api/internal/config"
	"growth-journal-api/internal/domain/entity"
	"growth-journal-api/internal/wire"
	"growth-journal-api/pkg/utils"
)

func main() {
	userID := flag.String("issue-token", "", "为指定 user_id 签发开发用 token")
	ttl := flag.Duration("token-ttl", 24*time.Hour, "access token 有效期")
	flag.Parse()

	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 建表（仅 PostgreSQL 账本）
	if cfg.AI.Ledger.Driver == "postgres" {
		pg, cleanup, err := wire.InitializePostgresOnly(ctx, cfg)
		if err != nil {
			log.Fatalf("failed to initialize postgres: %v", err)
		}
		defer cleanup()

		if err := pg.DB().WithContext(ctx).AutoMigrate(&entity.UsageRecord{}); err != nil {
			log.Fatalf("failed to migrate %s: %v", entity.UsageRecord{}.TableName(), err)
		}
		fmt.Printf("Table %s is ready.\n", entity.UsageRecord{}.TableName())
	} else {
		fmt.Printf("Ledger driver is %q, skip migration.\n", cfg.AI.Ledger.Driver)
	}

	// 3. 开发环境签发 token
	if *userID != "" {
		if cfg.App.Env == "production" {
			log.Fatalf("refusing to issue tokens in production")
		}
		pair, err := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer).
			GenerateTokenPair(*userID, *ttl, 7*(*ttl))
		if err != nil {
			log.Fatalf("failed to issue token: %v", err)
		}
		fmt.Printf("access_token: %s\nrefresh_token: %s\n", pair.AccessToken, pair.RefreshToken)
	}

	fmt.Println("Bootstrap completed successfully.")
}
