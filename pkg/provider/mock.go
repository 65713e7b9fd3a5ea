package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
)

// Mock is the deterministic offline provider. It completes synchronously,
// writes a small placeholder artifact derived from the prompt, and never
// debits the budget: every estimate and result cost is zero. One mock exists
// per media kind under the names mock-video, mock-audio, mock-image and
// mock-music.
type Mock struct {
	kind models.MediaKind
}

// NewMock creates the mock provider for a media kind.
func NewMock(kind models.MediaKind) *Mock {
	return &Mock{kind: kind}
}

// Name returns mock-<kind>.
func (m *Mock) Name() string {
	switch m.kind {
	case models.KindVideo:
		return "mock-video"
	case models.KindAudio:
		return "mock-audio"
	case models.KindImage:
		return "mock-image"
	case models.KindMusic:
		return "mock-music"
	default:
		return "mock"
	}
}

// Kind returns the media kind.
func (m *Mock) Kind() models.MediaKind { return m.kind }

// Describe reports a fully implemented provider with permissive limits.
func (m *Mock) Describe() Capabilities {
	c := Capabilities{
		Kind:           m.kind,
		Implemented:    true,
		MinDurationSec: 1,
		MaxDurationSec: 120,
		RequiredInputs: []string{"prompt"},
	}
	switch m.kind {
	case models.KindAudio:
		c.Voices = []string{"mock"}
		c.OptionalInputs = []string{"voice", "speed"}
	case models.KindImage:
		c.OptionalInputs = []string{"size"}
	case models.KindMusic:
		c.OptionalInputs = []string{"duration_sec", "mood", "tempo"}
	default:
		c.AspectRatios = []string{"16:9", "9:16", "1:1"}
		c.OptionalInputs = []string{"duration_sec", "aspect_ratio"}
	}
	return c
}

// ValidateCredentials always succeeds; mocks need no credentials.
func (m *Mock) ValidateCredentials(context.Context) error { return nil }

// EstimateCost is always zero for mocks.
func (m *Mock) EstimateCost(Request) float64 { return 0 }

// Generate writes a deterministic placeholder artifact and completes
// immediately.
func (m *Mock) Generate(ctx context.Context, req Request) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, faults.Wrap(faults.Cancelled, err, "mock generate")
	}
	if req.OutputPath == "" {
		return Outcome{}, faults.New(faults.InputInvalid, "mock generate requires an output path")
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return Outcome{}, faults.Wrap(faults.JournalIO, err, "create output dir")
	}
	digest := sha256.Sum256([]byte(req.Prompt))
	body := fmt.Sprintf("%s placeholder\nprompt_sha256: %s\nduration_sec: %.2f\n",
		m.Name(), hex.EncodeToString(digest[:8]), req.DurationSec)
	if err := renameio.WriteFile(req.OutputPath, []byte(body), 0o644); err != nil {
		return Outcome{}, faults.Wrap(faults.JournalIO, err, "write mock artifact")
	}
	return Outcome{Ready: &Result{
		LocalPath:   req.OutputPath,
		DurationSec: req.DurationSec,
		CostUSD:     0,
		Metadata: map[string]string{
			"mock":          "true",
			"prompt_digest": hex.EncodeToString(digest[:8]),
			"generated_at":  time.Now().UTC().Format(time.RFC3339),
		},
	}}, nil
}

// Poll is never reached for a synchronous provider.
func (m *Mock) Poll(context.Context, string) (*PendingJob, error) {
	return nil, faults.Newf(faults.InputInvalid, "%s completes synchronously and has no jobs", m.Name())
}

// Download is never reached for a synchronous provider.
func (m *Mock) Download(context.Context, *PendingJob, string) (*Result, error) {
	return nil, faults.Newf(faults.InputInvalid, "%s completes synchronously and has no jobs", m.Name())
}
