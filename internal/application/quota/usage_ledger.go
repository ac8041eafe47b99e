// Package quota 提供用户每日 AI 调用配额与统计
package quota

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"growth-journal-api/internal/domain/entity"
	"growth-journal-api/internal/domain/repository"
	"growth-journal-api/pkg/logger"
	"growth-journal-api/pkg/metrics"
	"growth-journal-api/pkg/tracer"
)

// QuotaExceededError 表示用户当日调用次数已达上限
type QuotaExceededError struct {
	UserID string
	Limit  int64
	Used   int64
}

func (e QuotaExceededError) Error() string {
	return fmt.Sprintf("daily AI quota exceeded: user=%s used=%d limit=%d", e.UserID, e.Used, e.Limit)
}

// Usage 用户当日用量
type Usage struct {
	Date      time.Time
	Limit     int64 // 0 表示不限
	Used      int64
	Remaining int64 // Limit 为 0 时恒为 -1
	Records   []*entity.UsageRecord
}

// UsageLedger 独占写入 ai_usage_stats。配额按用户每日汇总，所有接口共享同一额度。
type UsageLedger struct {
	repo       repository.UsageRecordRepository
	dailyLimit int64
	loc        *time.Location
	now        func() time.Time
}

// NewUsageLedger 创建调用统计；dailyLimit <= 0 表示不限，loc 为计算“今天”的时区
func NewUsageLedger(repo repository.UsageRecordRepository, dailyLimit int64, loc *time.Location) *UsageLedger {
	if loc == nil {
		loc = time.UTC
	}
	return &UsageLedger{
		repo:       repo,
		dailyLimit: dailyLimit,
		loc:        loc,
		now:        time.Now,
	}
}

// Today 返回配置时区下的当前日期
func (l *UsageLedger) Today() time.Time {
	return entity.CivilDate(l.now(), l.loc)
}

// CheckQuota 当日汇总 call_count >= 上限时返回 QuotaExceededError。
// 返回已用次数便于展示。
func (l *UsageLedger) CheckQuota(ctx context.Context, userID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "quota.CheckQuota")
	defer span.End()

	used, err := l.repo.SumCallCount(ctx, userID, l.Today())
	if err != nil {
		return 0, fmt.Errorf("sum usage: %w", err)
	}
	span.SetAttributes(attribute.Int64("quota.used", used), attribute.Int64("quota.limit", l.dailyLimit))

	if l.dailyLimit > 0 && used >= l.dailyLimit {
		return used, QuotaExceededError{UserID: userID, Limit: l.dailyLimit, Used: used}
	}
	return used, nil
}

// RecordCall 记录一次逻辑调用（含全部重试）
func (l *UsageLedger) RecordCall(ctx context.Context, userID, apiName string, success bool) error {
	ctx, span := tracer.Start(ctx, "quota.RecordCall")
	defer span.End()
	span.SetAttributes(attribute.String("quota.api_name", apiName), attribute.Bool("quota.success", success))

	if err := l.repo.Increment(ctx, userID, apiName, l.Today(), success); err != nil {
		metrics.UsageRecordWriteTotal.WithLabelValues("error").Inc()
		logger.Error(ctx, "failed to record AI usage", err, "api_name", apiName, "success", success)
		return fmt.Errorf("record usage: %w", err)
	}
	metrics.UsageRecordWriteTotal.WithLabelValues("ok").Inc()
	return nil
}

// Usage 返回用户当日各接口记录与剩余额度
func (l *UsageLedger) Usage(ctx context.Context, userID string) (*Usage, error) {
	today := l.Today()
	records, err := l.repo.ListByDate(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}

	var used int64
	for _, r := range records {
		used += r.CallCount
	}

	remaining := int64(-1)
	if l.dailyLimit > 0 {
		remaining = max(l.dailyLimit-used, 0)
	}
	return &Usage{
		Date:      today,
		Limit:     max(l.dailyLimit, 0),
		Used:      used,
		Remaining: remaining,
		Records:   records,
	}, nil
}
