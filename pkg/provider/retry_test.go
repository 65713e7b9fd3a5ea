package provider

import (
	"context"
	"testing"
	"time"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryTransientThenSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		calls++
		if calls < 3 {
			return faults.New(faults.ProviderTransient, "flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPermanentFailsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(5), func() error {
		calls++
		return faults.New(faults.ProviderPermanent, "bad input")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, faults.ProviderPermanent, faults.KindOf(err))
}

func TestRetryOverBudgetNotRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(5), func() error {
		calls++
		return faults.New(faults.OverBudget, "no funds")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		calls++
		return faults.New(faults.ProviderTransient, "still flaky")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, faults.ProviderTransient, faults.KindOf(err))
}

func TestRetryCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}
	err := Retry(ctx, cfg, func() error {
		calls++
		cancel()
		return faults.New(faults.ProviderTransient, "flaky")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, faults.Cancelled, faults.KindOf(err))
}
