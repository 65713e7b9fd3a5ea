package provider

import (
	"context"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
)

// Stub is a declared-but-unimplemented provider. It registers like any other
// so configs can reference it, and every generate call fails permanently.
// Runway (video) and Suno (music) ship as stubs.
type Stub struct {
	name string
	kind models.MediaKind
}

// NewRunway returns the runway video stub.
func NewRunway() *Stub { return &Stub{name: "runway", kind: models.KindVideo} }

// NewSuno returns the suno music stub.
func NewSuno() *Stub { return &Stub{name: "suno", kind: models.KindMusic} }

// Name returns the stub's registry key.
func (s *Stub) Name() string { return s.name }

// Kind returns the declared media kind.
func (s *Stub) Kind() models.MediaKind { return s.kind }

// Describe reports the declared kind with Implemented false.
func (s *Stub) Describe() Capabilities {
	c := Capabilities{Kind: s.kind, RequiredInputs: []string{"prompt"}}
	if s.kind == models.KindMusic {
		c.OptionalInputs = []string{"duration_sec", "mood", "tempo"}
	}
	return c
}

// ValidateCredentials succeeds; a stub never contacts a vendor.
func (s *Stub) ValidateCredentials(context.Context) error { return nil }

// EstimateCost is zero; a stub never reaches submission.
func (s *Stub) EstimateCost(Request) float64 { return 0 }

// Generate always fails with ErrNotImplemented.
func (s *Stub) Generate(context.Context, Request) (Outcome, error) {
	return Outcome{}, faults.ErrNotImplemented
}

// Poll always fails with ErrNotImplemented.
func (s *Stub) Poll(context.Context, string) (*PendingJob, error) {
	return nil, faults.ErrNotImplemented
}

// Download always fails with ErrNotImplemented.
func (s *Stub) Download(context.Context, *PendingJob, string) (*Result, error) {
	return nil, faults.ErrNotImplemented
}
