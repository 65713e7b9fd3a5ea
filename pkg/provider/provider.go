// Package provider abstracts generative media back-ends behind one
// capability contract. Live clients (Luma, OpenAI), deterministic mocks and
// declared-but-unimplemented stubs all satisfy the same interface, so the
// scene pipeline never branches on vendor.
package provider

import (
	"context"
	"time"

	"github.com/reelforge/reelforge/pkg/models"
)

// Request describes one generation. Kind-specific fields are ignored by
// providers of other kinds.
type Request struct {
	Prompt      string
	DurationSec float64
	AspectRatio string

	// Voiceover fields.
	Voice string
	Speed float64

	// Size is the image dimensions, e.g. "1024x1024".
	Size string

	// Music fields.
	Mood  string
	Tempo string

	// OutputPath is where Download (or an immediate Generate) writes the
	// artifact.
	OutputPath string

	SceneID  string
	Metadata map[string]string
}

// Result is a completed generation. LocalPath is always set on success.
type Result struct {
	LocalPath   string
	RemoteURL   string
	DurationSec float64
	CostUSD     float64
	Metadata    map[string]string
}

// JobState is the closed set of async job states.
type JobState string

// Job state constants. SUCCEEDED, FAILED and CANCELLED are terminal.
const (
	JobQueued    JobState = "QUEUED"
	JobRunning   JobState = "RUNNING"
	JobSucceeded JobState = "SUCCEEDED"
	JobFailed    JobState = "FAILED"
	JobCancelled JobState = "CANCELLED"
)

// IsTerminal reports whether the state ends the job.
func (s JobState) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// PendingJob tracks an async generation between submit and completion.
type PendingJob struct {
	ID            string
	State         JobState
	Progress      float64 // 0-1 when the vendor reports it
	OutputURL     string
	FailureReason string
	// NextPollAfter is the vendor's requested wait before the next poll;
	// zero means use the configured interval.
	NextPollAfter time.Duration
}

// Outcome is the tagged result of Generate: exactly one of Ready (the
// provider completed synchronously) or Job (poll until terminal, then
// Download) is set.
type Outcome struct {
	Ready *Result
	Job   *PendingJob
}

// Capabilities is a provider's self-description: what it produces, the input
// surface it honors and the limits it enforces. Duration limits of zero mean
// the provider does not constrain duration.
type Capabilities struct {
	Kind models.MediaKind
	// Implemented is false for declared-but-unimplemented stubs.
	Implemented    bool
	MinDurationSec float64
	MaxDurationSec float64
	AspectRatios   []string
	// Voices lists the selectable voices of a speech provider.
	Voices         []string
	RequiredInputs []string
	OptionalInputs []string
}

// Provider is the capability contract. Poll and Download are only called for
// providers that return job outcomes.
type Provider interface {
	// Name is the registry key, e.g. "luma" or "mock-video".
	Name() string
	// Kind is the media kind this provider produces.
	Kind() models.MediaKind
	// Describe reports the provider's capabilities. Stubs answer too, with
	// Implemented false.
	Describe() Capabilities
	// ValidateCredentials verifies the provider can authenticate. Mocks and
	// stubs always pass; a live client without its key fails with
	// CREDENTIAL_MISSING.
	ValidateCredentials(ctx context.Context) error
	// EstimateCost predicts the charge for a request in USD, used to size
	// budget reservations before submission.
	EstimateCost(req Request) float64
	// Generate submits a request.
	Generate(ctx context.Context, req Request) (Outcome, error)
	// Poll fetches the current state of an async job.
	Poll(ctx context.Context, jobID string) (*PendingJob, error)
	// Download streams a succeeded job's artifact to destPath.
	Download(ctx context.Context, job *PendingJob, destPath string) (*Result, error)
}
