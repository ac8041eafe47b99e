// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"growth-journal-api/internal/domain/entity"
)

// UsageRecordRepository AI 调用统计存储。date 均为 entity.CivilDate 的结果。
type UsageRecordRepository interface {
	// Increment 原子地累加 call_count 与 success_count/error_count，记录不存在时创建
	Increment(ctx context.Context, userID, apiName string, date time.Time, success bool) error
	// SumCallCount 返回用户当日所有接口的 call_count 之和
	SumCallCount(ctx context.Context, userID string, date time.Time) (int64, error)
	// ListByDate 返回用户当日的全部记录，按 api_name 排序
	ListByDate(ctx context.Context, userID string, date time.Time) ([]*entity.UsageRecord, error)
}
