package queue

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/reelforge/pkg/budget"
	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/journal"
	"github.com/reelforge/reelforge/pkg/models"
	"github.com/reelforge/reelforge/pkg/provider"
)

type executorFixture struct {
	cfg     *config.Config
	store   *journal.Store
	tracker *budget.Tracker
	exec    *Executor
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	cfg, err := config.Initialize(context.Background(), "")
	require.NoError(t, err)
	cfg.Pilots.Count = 1 // single STATIC pilot keeps runs deterministic

	runsDir := t.TempDir()
	store := journal.NewStore(runsDir)
	tracker := budget.NewTracker(runsDir)
	registry := provider.NewRegistry(cfg, provider.StaticCredentials{}, nil)

	return &executorFixture{
		cfg: cfg, store: store, tracker: tracker,
		exec: NewExecutor(cfg, store, tracker, registry, nil, nil, nil, nil, nil),
	}
}

func TestExecutorHappyPathOnMocks(t *testing.T) {
	f := newExecutorFixture(t)
	sub := Submission{
		RunID:       "run-1",
		ProjectName: "Logo reveal",
		Brief:       models.Brief{Concept: "Logo reveal", TargetDurationSec: 5, BudgetUSD: 2, AudioTier: models.AudioNone},
	}

	result := f.exec.Execute(context.Background(), sub)
	require.NotNil(t, result)
	require.NoError(t, result.Err)
	assert.Equal(t, journal.StatusCompleted, result.Status)

	run, err := f.store.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, journal.StageCompleted, run.CurrentStage)
	assert.Equal(t, 100, run.Progress)
	assert.True(t, run.Simulated())
	require.Len(t, run.Pilots, 1)
	assert.Equal(t, models.PilotApproved, run.Pilots[0].Status)

	// Mock providers commit nothing.
	assert.Zero(t, f.tracker.CommittedTotal("run-1"))

	// The winning variation and the EDL are on disk where external tools
	// expect them.
	_, err = os.Stat(f.store.VideoPath("run-1", "pilot-1-scene-000", 0, ".mp4"))
	assert.NoError(t, err)
	_, err = os.Stat(f.store.EDLPath("run-1", "edit_candidates"))
	assert.NoError(t, err)
	assert.Contains(t, run.FinalPaths, "edl")

	// No assembler wired: the run still completes, with a warning.
	assert.NotEmpty(t, run.Warnings)
}

func TestExecutorResumeOfCompletedRunIsNoOp(t *testing.T) {
	f := newExecutorFixture(t)
	sub := Submission{
		RunID: "run-1", ProjectName: "Demo",
		Brief: models.Brief{Concept: "Logo reveal", TargetDurationSec: 5, BudgetUSD: 2, AudioTier: models.AudioNone},
	}
	first := f.exec.Execute(context.Background(), sub)
	require.Equal(t, journal.StatusCompleted, first.Status)

	before, err := f.store.Get("run-1")
	require.NoError(t, err)

	again := f.exec.Execute(context.Background(), sub)
	assert.Equal(t, journal.StatusCompleted, again.Status)

	after, err := f.store.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, before.NextSeq, after.NextSeq)
	assert.Len(t, after.Pilots, len(before.Pilots))
}

func TestExecutorFailsWhenNoPilotApproved(t *testing.T) {
	f := newExecutorFixture(t)
	tier := f.cfg.Tiers[models.TierStatic]
	tier.PassThreshold = 101
	f.cfg.Tiers[models.TierStatic] = tier

	result := f.exec.Execute(context.Background(), Submission{
		RunID: "run-1", ProjectName: "Demo",
		Brief: models.Brief{Concept: "Logo reveal", TargetDurationSec: 5, BudgetUSD: 2, AudioTier: models.AudioNone},
	})
	require.NotNil(t, result)
	assert.Equal(t, journal.StatusFailed, result.Status)
	require.Error(t, result.Err)

	run, err := f.store.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, journal.StatusFailed, run.Status)
	assert.Equal(t, models.PilotRejected, run.Pilots[0].Status)
	assert.NotEmpty(t, run.Errors)
}

func TestExecutorCancelledBeforeStart(t *testing.T) {
	f := newExecutorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := f.exec.Execute(ctx, Submission{
		RunID: "run-1", ProjectName: "Demo",
		Brief: models.Brief{Concept: "Logo reveal", TargetDurationSec: 5, BudgetUSD: 2, AudioTier: models.AudioNone},
	})
	require.NotNil(t, result)
	assert.Equal(t, journal.StatusCancelled, result.Status)

	run, err := f.store.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, journal.StatusCancelled, run.Status)
}
