// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"growth-journal-api/internal/domain/entity"
	"growth-journal-api/internal/domain/repository"
)

const dateLayout = "2006-01-02"

// UsageRecordRepository 基于 ai_usage_stats 表的调用统计
type UsageRecordRepository struct {
	client *Client
	now    func() time.Time
}

var _ repository.UsageRecordRepository = (*UsageRecordRepository)(nil)

// NewUsageRecordRepository 创建调用统计 Repository
func NewUsageRecordRepository(client *Client) *UsageRecordRepository {
	return &UsageRecordRepository{client: client, now: time.Now}
}

// Increment 单条 INSERT ... ON CONFLICT DO UPDATE，并发累加由数据库行锁保证
func (r *UsageRecordRepository) Increment(ctx context.Context, userID, apiName string, date time.Time, success bool) error {
	ctx, span := tracer.Start(ctx, "postgres.UsageRecordRepository.Increment")
	defer span.End()
	span.SetAttributes(attribute.String("usage.api_name", apiName), attribute.Bool("usage.success", success))

	var successInc, errorInc int64
	if success {
		successInc = 1
	} else {
		errorInc = 1
	}

	now := r.now()
	rec := &entity.UsageRecord{
		UserID:       userID,
		APIName:      apiName,
		CallDate:     date,
		CallCount:    1,
		SuccessCount: successInc,
		ErrorCount:   errorInc,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.client.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "api_name"}, {Name: "call_date"}},
			DoUpdates: clause.Assignments(map[string]any{
				"call_count":    gorm.Expr("ai_usage_stats.call_count + 1"),
				"success_count": gorm.Expr("ai_usage_stats.success_count + ?", successInc),
				"error_count":   gorm.Expr("ai_usage_stats.error_count + ?", errorInc),
				"updated_at":    now,
			}),
		}).
		Create(rec).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to increment usage record: %w", err)
	}
	return nil
}

// SumCallCount 汇总用户当日调用次数
func (r *UsageRecordRepository) SumCallCount(ctx context.Context, userID string, date time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.UsageRecordRepository.SumCallCount")
	defer span.End()

	var total int64
	if err := r.client.db.WithContext(ctx).
		Model(&entity.UsageRecord{}).
		Where("user_id = ? AND call_date = ?", userID, date.Format(dateLayout)).
		Select("COALESCE(SUM(call_count),0)").
		Scan(&total).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to sum usage: %w", err)
	}
	return total, nil
}

// ListByDate 返回用户当日的全部记录
func (r *UsageRecordRepository) ListByDate(ctx context.Context, userID string, date time.Time) ([]*entity.UsageRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.UsageRecordRepository.ListByDate")
	defer span.End()

	var records []*entity.UsageRecord
	if err := r.client.db.WithContext(ctx).
		Where("user_id = ? AND call_date = ?", userID, date.Format(dateLayout)).
		Order("api_name").
		Find(&records).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	return records, nil
}
