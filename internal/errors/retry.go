package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff.
type RetryConfig struct {
	// MaxRetries counts retry attempts after the initial one.
	MaxRetries int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the grown delay. Zero means uncapped.
	MaxDelay time.Duration

	// Multiplier grows the delay after every retry.
	Multiplier float64

	// Jitter randomizes each delay into [50%, 100%] of its value.
	Jitter bool
}

// DefaultRetryConfig returns the standard backoff: three retries from
// one second, doubling, capped at sixteen seconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}
}

// delay returns the wait before retry number attempt+1.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= c.Multiplier
	}
	if limit := float64(c.MaxDelay); c.MaxDelay > 0 && d > limit {
		d = limit
	}
	if c.Jitter {
		d *= 0.5 + rand.Float64()*0.5
	}
	return time.Duration(d)
}

// permanent reports whether err carries a classification that cannot
// succeed on retry. Plain errors count as transient since their nature
// is unknown.
func permanent(err error) bool {
	qe, ok := classified(err)
	return ok && !qe.Retryable
}

// RetryWithResult runs fn until it succeeds, the attempts are spent, the
// error is permanent, or the context ends. Waits grow exponentially per
// the config.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if permanent(err) {
			return zero, err
		}
		if attempt >= cfg.MaxRetries {
			return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.delay(attempt)):
		}
	}
}

// Retry is RetryWithResult for functions with no result.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
