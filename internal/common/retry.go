package common

import (
	"context"
	"log/slog"
	"time"

	"github.com/mkalas/centavo/internal/service"
)

// FixedDelay returns a policy retrying up to maxAttempts with the same delay
// between attempts.
func FixedDelay(maxAttempts int, delay time.Duration) service.RetryPolicy {
	return func(attempt int) (time.Duration, bool) {
		if attempt >= maxAttempts {
			return 0, false
		}
		return delay, true
	}
}

// Backoff returns a policy doubling the delay each attempt, capped at maxDelay.
func Backoff(maxAttempts int, initialDelay, maxDelay time.Duration) service.RetryPolicy {
	return func(attempt int) (time.Duration, bool) {
		if attempt >= maxAttempts {
			return 0, false
		}
		delay := initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay >= maxDelay {
				return maxDelay, true
			}
		}
		return delay, true
	}
}

// WithRetry executes operation until it succeeds or the policy stops it.
// The last error is returned when retries are exhausted.
func WithRetry(ctx context.Context, operation func() error, policy service.RetryPolicy) error {
	for attempt := 1; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		delay, again := policy(attempt)
		if !again {
			return err
		}

		slog.Warn("operation failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
