// Package memory 提供进程内的调用统计存储，用于本地运行与测试
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"growth-journal-api/internal/domain/entity"
	"growth-journal-api/internal/domain/repository"
)

type usageKey struct {
	userID  string
	apiName string
	date    time.Time
}

// UsageRecordRepository 内存实现，互斥锁保证同一键的累加不丢失
type UsageRecordRepository struct {
	mu      sync.Mutex
	nextID  int64
	records map[usageKey]*entity.UsageRecord
	now     func() time.Time
}

var _ repository.UsageRecordRepository = (*UsageRecordRepository)(nil)

// NewUsageRecordRepository 创建内存存储
func NewUsageRecordRepository() *UsageRecordRepository {
	return &UsageRecordRepository{
		records: make(map[usageKey]*entity.UsageRecord),
		now:     time.Now,
	}
}

// Increment 累加计数，记录不存在时创建
func (r *UsageRecordRepository) Increment(ctx context.Context, userID, apiName string, date time.Time, success bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := usageKey{userID: userID, apiName: apiName, date: date}
	rec, ok := r.records[key]
	now := r.now()
	if !ok {
		r.nextID++
		rec = &entity.UsageRecord{
			ID:        r.nextID,
			UserID:    userID,
			APIName:   apiName,
			CallDate:  date,
			CreatedAt: now,
		}
		r.records[key] = rec
	}

	rec.CallCount++
	if success {
		rec.SuccessCount++
	} else {
		rec.ErrorCount++
	}
	rec.UpdatedAt = now
	return nil
}

// SumCallCount 汇总用户当日调用次数
func (r *UsageRecordRepository) SumCallCount(ctx context.Context, userID string, date time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	for key, rec := range r.records {
		if key.userID == userID && key.date.Equal(date) {
			total += rec.CallCount
		}
	}
	return total, nil
}

// ListByDate 返回记录副本
func (r *UsageRecordRepository) ListByDate(ctx context.Context, userID string, date time.Time) ([]*entity.UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*entity.UsageRecord, 0)
	for key, rec := range r.records {
		if key.userID == userID && key.date.Equal(date) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].APIName < out[j].APIName })
	return out, nil
}
