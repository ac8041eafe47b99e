package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growth-journal-api/internal/domain/entity"
	"growth-journal-api/internal/infrastructure/persistence/memory"
)

func fixedLedger(t *testing.T, limit int64, now time.Time) (*UsageLedger, *memory.UsageRecordRepository) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	repo := memory.NewUsageRecordRepository()
	l := NewUsageLedger(repo, limit, loc)
	l.now = func() time.Time { return now }
	return l, repo
}

func TestCheckQuota(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 3, 0, 0, 0, time.UTC)
	l, _ := fixedLedger(t, 20, now)

	for i := 0; i < 19; i++ {
		api := "emotion_analysis"
		if i%2 == 0 {
			api = "content_summary"
		}
		require.NoError(t, l.RecordCall(ctx, "u1", api, i%3 != 0))
	}

	t.Run("limit-1 时放行", func(t *testing.T) {
		used, err := l.CheckQuota(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(19), used)
	})

	t.Run("达到 limit 时拒绝，跨接口汇总", func(t *testing.T) {
		require.NoError(t, l.RecordCall(ctx, "u1", "career_analysis", false))

		used, err := l.CheckQuota(ctx, "u1")
		var exceeded QuotaExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, int64(20), used)
		assert.Equal(t, int64(20), exceeded.Limit)
		assert.Equal(t, "u1", exceeded.UserID)
	})

	t.Run("其他用户不受影响", func(t *testing.T) {
		used, err := l.CheckQuota(ctx, "u2")
		require.NoError(t, err)
		assert.Zero(t, used)
	})
}

func TestCheckQuotaUnlimited(t *testing.T) {
	ctx := context.Background()
	l, _ := fixedLedger(t, 0, time.Now())
	for i := 0; i < 5; i++ {
		require.NoError(t, l.RecordCall(ctx, "u1", "emotion_analysis", true))
	}
	_, err := l.CheckQuota(ctx, "u1")
	assert.NoError(t, err)

	usage, err := l.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), usage.Remaining)
	assert.Equal(t, int64(5), usage.Used)
}

func TestTodayUsesConfiguredTimezone(t *testing.T) {
	ctx := context.Background()
	// UTC 15:59 为上海 23:59，UTC 16:00 为上海次日零点
	before := time.Date(2026, 10, 14, 15, 59, 0, 0, time.UTC)
	after := before.Add(time.Minute)

	l, _ := fixedLedger(t, 1, before)
	assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), l.Today())

	require.NoError(t, l.RecordCall(ctx, "u1", "emotion_analysis", true))
	_, err := l.CheckQuota(ctx, "u1")
	assert.Error(t, err)

	l.now = func() time.Time { return after }
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), l.Today())
	_, err = l.CheckQuota(ctx, "u1")
	assert.NoError(t, err, "新的一天额度重置")
}

func TestUsage(t *testing.T) {
	ctx := context.Background()
	l, _ := fixedLedger(t, 10, time.Date(2026, 10, 14, 3, 0, 0, 0, time.UTC))

	require.NoError(t, l.RecordCall(ctx, "u1", "emotion_analysis", true))
	require.NoError(t, l.RecordCall(ctx, "u1", "emotion_analysis", false))
	require.NoError(t, l.RecordCall(ctx, "u1", "content_summary", true))

	usage, err := l.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage.Used)
	assert.Equal(t, int64(7), usage.Remaining)
	assert.Equal(t, int64(10), usage.Limit)
	require.Len(t, usage.Records, 2)

	var emotion *entity.UsageRecord
	for _, r := range usage.Records {
		if r.APIName == "emotion_analysis" {
			emotion = r
		}
	}
	require.NotNil(t, emotion)
	assert.Equal(t, int64(2), emotion.CallCount)
	assert.Equal(t, int64(1), emotion.SuccessCount)
	assert.Equal(t, int64(1), emotion.ErrorCount)
}

type failingRepo struct{ memory.UsageRecordRepository }

var errStorage = errors.New("storage down")

func (*failingRepo) SumCallCount(context.Context, string, time.Time) (int64, error) {
	return 0, errStorage
}

func (*failingRepo) Increment(context.Context, string, string, time.Time, bool) error {
	return errStorage
}

func TestStorageErrors(t *testing.T) {
	ctx := context.Background()
	l := NewUsageLedger(&failingRepo{}, 20, nil)

	_, err := l.CheckQuota(ctx, "u1")
	assert.ErrorIs(t, err, errStorage)
	var exceeded QuotaExceededError
	assert.False(t, errors.As(err, &exceeded))

	assert.ErrorIs(t, l.RecordCall(ctx, "u1", "x", true), errStorage)
}
