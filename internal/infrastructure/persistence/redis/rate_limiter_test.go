package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewClientWithRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return NewRateLimiter(client), client
}

func TestRateLimiterAllow(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()
	key := BuildUserRateLimitKey("u1", "/v1/ai/summary")

	now := time.UnixMilli(1_700_000_000_000)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, key, 3, time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "第 %d 次请求应放行", i+1)
	}

	ok, err := limiter.Allow(ctx, key, 3, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := limiter.Remaining(ctx, key, 3, time.Second)
	require.NoError(t, err)
	assert.Zero(t, remaining, "被拒绝的请求不占用窗口")

	// 窗口滑过后恢复
	now = now.Add(1500 * time.Millisecond)
	ok, err = limiter.Allow(ctx, key, 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	remaining, err = limiter.Remaining(ctx, key, 3, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestRateLimiterReset(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()
	key := BuildUserRateLimitKey("u1", "/v1/ai/usage")

	ok, err := limiter.Allow(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Allow(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, limiter.Reset(ctx, key))
	ok, err = limiter.Allow(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHealthCheck(t *testing.T) {
	_, client := newTestLimiter(t)
	assert.NoError(t, client.HealthCheck(context.Background()))
	assert.NoError(t, client.Ping(context.Background()))
}
