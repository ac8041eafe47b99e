// Package main 阻塞直到 PostgreSQL 可连接，用于容器启动编排
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"growth-journal-api/internal/config"
)

func main() {
	timeout := flag.Duration("timeout", 60*time.Second, "最长等待时间")
	interval := flag.Duration("interval", time.Second, "重试间隔")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.Postgres.DSN())
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Println("等待数据库...")
	if err := waitForDB(ctx, db, *interval, func(err error) {
		fmt.Printf("数据库不可用，%s 后重试: %v\n", *interval, err)
	}); err != nil {
		fmt.Printf("数据库在 %s 内未就绪: %v\n", *timeout, err)
		os.Exit(1)
	}
	fmt.Println("数据库可用！")
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// waitForDB 按固定间隔探测，直到成功或 ctx 结束
func waitForDB(ctx context.Context, db pinger, interval time.Duration, onRetry func(error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		if onRetry != nil {
			onRetry(err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}
