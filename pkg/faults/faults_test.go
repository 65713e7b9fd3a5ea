package faults

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"tagged fault", New(OverBudget, "denied"), OverBudget},
		{"wrapped fault", fmt.Errorf("scene 3: %w", New(PollTimeout, "job stuck")), PollTimeout},
		{"context canceled", context.Canceled, Cancelled},
		{"deadline exceeded", context.DeadlineExceeded, PollTimeout},
		{"plain error", errors.New("boom"), ProviderPermanent},
		{"nil", nil, Kind("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestFromHTTPStatus(t *testing.T) {
	assert.Equal(t, Kind(""), FromHTTPStatus(http.StatusOK))
	assert.Equal(t, ProviderTransient, FromHTTPStatus(http.StatusTooManyRequests))
	assert.Equal(t, ProviderTransient, FromHTTPStatus(http.StatusBadGateway))
	assert.Equal(t, ProviderPermanent, FromHTTPStatus(http.StatusBadRequest))
	assert.Equal(t, CredentialMissing, FromHTTPStatus(http.StatusUnauthorized))
}

func TestRetryable(t *testing.T) {
	assert.True(t, ProviderTransient.Retryable())
	assert.False(t, OverBudget.Retryable())
	assert.False(t, ProviderPermanent.Retryable())
	assert.False(t, Cancelled.Retryable())
}

func TestNotImplementedIsPermanent(t *testing.T) {
	assert.Equal(t, ProviderPermanent, KindOf(ErrNotImplemented))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(JournalIO, nil, "write head"))
}
