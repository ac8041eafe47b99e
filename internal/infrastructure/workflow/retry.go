package workflow

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy 指数退避重试策略，MaxAttempts 含首次请求
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy 3 次尝试，间隔 4s 起、10s 封顶
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Initial: 4 * time.Second, Max: 10 * time.Second, Multiplier: 2}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// newBackOff 构造无抖动的退避序列，随 ctx 取消而停止
func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.Initial
	expo.MaxInterval = p.Max
	expo.Multiplier = p.Multiplier
	if expo.Multiplier < 1 {
		expo.Multiplier = 1
	}
	expo.RandomizationFactor = 0
	// 总次数由 WithMaxRetries 控制
	expo.MaxElapsedTime = 0
	expo.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(p.attempts()-1)), ctx)
}
