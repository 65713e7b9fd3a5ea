package provider

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stallingProvider returns job outcomes whose polls stay RUNNING until the
// submission numbered succeedOn; zero never succeeds.
type stallingProvider struct {
	submissions atomic.Int32
	succeedOn   int32
}

func (s *stallingProvider) Name() string           { return "stalling" }
func (s *stallingProvider) Kind() models.MediaKind { return models.KindVideo }
func (s *stallingProvider) Describe() Capabilities {
	return Capabilities{Kind: models.KindVideo, Implemented: true}
}
func (s *stallingProvider) ValidateCredentials(context.Context) error { return nil }
func (s *stallingProvider) EstimateCost(Request) float64              { return 0 }

func (s *stallingProvider) Generate(context.Context, Request) (Outcome, error) {
	n := s.submissions.Add(1)
	return Outcome{Job: &PendingJob{ID: fmt.Sprintf("job-%d", n), State: JobQueued}}, nil
}

func (s *stallingProvider) Poll(_ context.Context, jobID string) (*PendingJob, error) {
	if s.succeedOn > 0 && s.submissions.Load() >= s.succeedOn {
		return &PendingJob{ID: jobID, State: JobSucceeded, OutputURL: "http://vendor/video.mp4"}, nil
	}
	return &PendingJob{ID: jobID, State: JobRunning}, nil
}

func (s *stallingProvider) Download(_ context.Context, job *PendingJob, destPath string) (*Result, error) {
	return &Result{LocalPath: destPath, RemoteURL: job.OutputURL}, nil
}

func TestCollectImmediateOutcome(t *testing.T) {
	m := NewMock(models.KindVideo)
	out := filepath.Join(t.TempDir(), "v.mp4")
	res, err := Collect(context.Background(), m, Request{Prompt: "x", OutputPath: out},
		fastRetry(1), 0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, out, res.LocalPath)
}

func TestCollectResubmitsOnceAfterPollTimeout(t *testing.T) {
	shortPollFloor(t)
	p := &stallingProvider{}
	_, err := Collect(context.Background(), p, Request{SceneID: "s1"}, fastRetry(1),
		time.Millisecond, 5*time.Millisecond, nil)
	require.Error(t, err)
	assert.Equal(t, faults.PollTimeout, faults.KindOf(err))
	// One fresh submission after the first lapse, none after the second.
	assert.Equal(t, int32(2), p.submissions.Load())
}

func TestCollectSecondSubmissionCanSucceed(t *testing.T) {
	shortPollFloor(t)
	p := &stallingProvider{succeedOn: 2}
	res, err := Collect(context.Background(), p, Request{OutputPath: "out.mp4"}, fastRetry(1),
		time.Millisecond, 50*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, "out.mp4", res.LocalPath)
	assert.Equal(t, int32(2), p.submissions.Load())
}
