package provider

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/reelforge/reelforge/pkg/faults"
)

// RetryConfig controls backoff for transient provider failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetry is used when a provider config leaves retries unset.
var DefaultRetry = RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}

// Retry runs fn up to MaxAttempts times, backing off exponentially with full
// jitter between attempts. Only PROVIDER_TRANSIENT failures are retried;
// every other kind returns immediately. Context cancellation interrupts the
// backoff sleep.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetry.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultRetry.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetry.MaxDelay
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.BaseDelay << (attempt - 1)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			// Full jitter: uniform in [0, delay].
			sleep := time.Duration(rand.Int64N(int64(delay) + 1))
			select {
			case <-ctx.Done():
				return faults.Wrap(faults.Cancelled, ctx.Err(), "retry interrupted")
			case <-time.After(sleep):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !faults.KindOf(lastErr).Retryable() {
			return lastErr
		}
	}
	return lastErr
}
