// Package retry wraps a generation or embedding call with the
// exponential-backoff-and-jitter loop used across NEXUS's cloud backends,
// retrying only the two nexuserr kinds the specification marks
// retryable: rate_limit and server_fault.
package retry

import (
	"context"
	"math/rand"
	"time"

	"nexus/internal/nexuserr"
)

// Config controls the backoff schedule. Zero value is not usable; use
// Default().
type Config struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	JitterPercent float64
}

// Default returns the schedule NEXUS uses for every cloud provider call:
// up to 3 attempts, 1s base delay doubling each attempt, capped at 30s,
// with up to 30% jitter.
func Default() Config {
	return Config{
		MaxAttempts:   3,
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		JitterPercent: 0.3,
	}
}

// Do invokes fn until it succeeds, a non-retryable error is returned, the
// context is cancelled, or cfg's attempt budget is exhausted. fn's
// returned error should be a *nexuserr.Error so Retryable() can classify
// it; any other error type is treated as non-retryable.
func Do(ctx context.Context, fn func() error) error {
	return DoWithConfig(ctx, Default(), fn)
}

func DoWithConfig(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		nerr, ok := err.(*nexuserr.Error)
		if !ok || !nerr.Retryable() {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := cfg.BaseDelay * (1 << attempt)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		jitter := time.Duration(float64(delay) * cfg.JitterPercent * rand.Float64())
		delay += jitter

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
