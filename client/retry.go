package client

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy retries failed calls with delays of min(InitialDelay·2^n, MaxDelay).
// 4xx responses and cancelled contexts are never retried.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

var (
	QueryRetry    = RetryPolicy{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second}
	MutationRetry = RetryPolicy{MaxRetries: 2, InitialDelay: time.Second, MaxDelay: 30 * time.Second}
)

func (p RetryPolicy) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Delays lists the waits before each retry.
func (p RetryPolicy) Delays() []time.Duration {
	b := p.exponential()
	out := make([]time.Duration, 0, p.MaxRetries)
	for i := 0; i < p.MaxRetries; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !isClientError(err)
}

func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(max(p.MaxRetries, 0))), ctx)
	return backoff.Retry(func() error {
		err := fn(ctx)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}
