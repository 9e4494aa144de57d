// Package util holds small helpers shared across packages.
package util

import (
	"context"
	"math/rand/v2"
	"time"
)

// MaxBackoff caps a single backoff delay.
const MaxBackoff = 30 * time.Second

// CalculateBackoff returns base * 2^(attempt-1) with up to 25% jitter either
// way, capped at MaxBackoff. Attempt 0 means no wait.
func CalculateBackoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	attempt = min(attempt, 30)

	backoff := base << uint(attempt-1)
	if backoff <= 0 || backoff > MaxBackoff {
		backoff = MaxBackoff
	}
	if half := int64(backoff) / 2; half > 0 {
		backoff += time.Duration(rand.Int64N(half)) - backoff/4
	}
	return backoff
}

// Retry calls fn until it succeeds, retryable reports false, or attempts
// calls have been made. It waits CalculateBackoff between calls and stops
// early when ctx is done. The last error is returned.
func Retry(ctx context.Context, attempts int, base time.Duration, retryable func(error) bool, fn func(context.Context) error) error {
	attempts = max(attempts, 1)

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(CalculateBackoff(base, i)):
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
