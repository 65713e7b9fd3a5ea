// Package faults defines the closed error taxonomy used across the
// orchestrator and helpers to classify provider and infrastructure failures.
//
// Errors propagate up one scope at a time: scene failures degrade a pilot,
// pilot failures degrade a run, and only JOURNAL_IO terminates a run outright.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind is the closed set of failure kinds.
type Kind string

// Failure kind constants.
const (
	// OverBudget: the budget tracker denied a reservation. Never retried.
	OverBudget Kind = "OVER_BUDGET"
	// ProviderTransient: network, 5xx, rate-limit. Retried with backoff.
	ProviderTransient Kind = "PROVIDER_TRANSIENT"
	// ProviderPermanent: 4xx (non-429), policy violation, unsupported input.
	ProviderPermanent Kind = "PROVIDER_PERMANENT"
	// CredentialMissing: key absent or rejected. Falls back to mock.
	CredentialMissing Kind = "CREDENTIAL_MISSING"
	// PollTimeout: job still non-terminal past deadline.
	PollTimeout Kind = "POLL_TIMEOUT"
	// InputInvalid: schema or range failure in an operation's inputs.
	InputInvalid Kind = "INPUT_INVALID"
	// JournalIO: failure writing the run journal. Fatal for the run.
	JournalIO Kind = "JOURNAL_IO"
	// Cancelled: explicit cancellation. Terminal, not an error in reports.
	Cancelled Kind = "CANCELLED"
)

// Retryable reports whether failures of this kind may be retried.
func (k Kind) Retryable() bool {
	return k == ProviderTransient
}

// Fault is an error carrying a taxonomy kind. Use New/Wrap to construct and
// KindOf to classify.
type Fault struct {
	Kind Kind
	Msg  string
	Err  error
}

func (f *Fault) Error() string {
	switch {
	case f.Msg != "" && f.Err != nil:
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Err)
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	default:
		return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
	}
}

func (f *Fault) Unwrap() error { return f.Err }

// New creates a fault of the given kind with a message.
func New(kind Kind, msg string) error {
	return &Fault{Kind: kind, Msg: msg}
}

// Newf creates a fault of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error. Returns nil for nil err.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Fault{Kind: kind, Msg: msg, Err: err}
}

// ErrNotImplemented is returned by stub providers for generate operations.
// Classified as ProviderPermanent.
var ErrNotImplemented = New(ProviderPermanent, "not implemented")

// KindOf returns the taxonomy kind of err, classifying untagged errors:
// context cancellation maps to Cancelled, deadline expiry to PollTimeout,
// network errors to ProviderTransient. Anything else is ProviderPermanent.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return PollTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ProviderTransient
	}
	return ProviderPermanent
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FromHTTPStatus classifies an HTTP response status from a provider.
// 429 and all 5xx are transient; other 4xx are permanent; 2xx returns "".
func FromHTTPStatus(status int) Kind {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status == http.StatusTooManyRequests:
		return ProviderTransient
	case status >= 500:
		return ProviderTransient
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CredentialMissing
	default:
		return ProviderPermanent
	}
}
