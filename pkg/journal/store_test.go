package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	run, resumed, err := s.Begin("run-1", "Logo reveal", 2.00, models.AudioNone)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, StageInitialized, run.CurrentStage)
	assert.Equal(t, StatusRunning, run.Status)

	for _, sub := range []string{"scenes", "videos", "audio", "edl", "renders"} {
		info, err := os.Stat(filepath.Join(dir, "run-1", sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	_, err = os.Stat(filepath.Join(dir, "run-1", "memory.json"))
	require.NoError(t, err)
}

func TestTimelineSequenceMonotonic(t *testing.T) {
	s := NewStore(t.TempDir())
	_, _, err := s.Begin("run-1", "c", 1, models.AudioNone)
	require.NoError(t, err)

	stages := []Stage{StageAnalyzingAssets, StagePlanningPilots, StageGenScripts, StageEvaluating, StageEditing}
	for _, st := range stages {
		require.NoError(t, s.Advance("run-1", st, nil))
	}
	require.NoError(t, s.Complete("run-1", StatusCompleted))

	run, err := s.Get("run-1")
	require.NoError(t, err)

	// No gaps, no reorder on re-read.
	for i, ev := range run.Timeline {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	// All events before the terminal one are closed.
	for _, ev := range run.Timeline {
		assert.NotNil(t, ev.FinishedAt, "event %d should be finished", ev.Seq)
	}
	assert.Equal(t, StageCompleted, run.CurrentStage)
	assert.Equal(t, 100, run.Progress)

	// Re-read from disk through a fresh store: identical ordering.
	s2 := NewStore(s.baseDir)
	run2, err := s2.Get("run-1")
	require.NoError(t, err)
	require.Len(t, run2.Timeline, len(run.Timeline))
	for i := range run.Timeline {
		assert.Equal(t, run.Timeline[i].Seq, run2.Timeline[i].Seq)
		assert.Equal(t, run.Timeline[i].Stage, run2.Timeline[i].Stage)
	}
}

func TestPilotLifecycle(t *testing.T) {
	s := NewStore(t.TempDir())
	_, _, err := s.Begin("run-1", "c", 1, models.AudioNone)
	require.NoError(t, err)

	pilot := models.Pilot{ID: "pilot-1", Tier: models.TierStatic, AllocatedBudgetUSD: 0.5,
		TargetScenes: 1, VariationsPerScene: 1, Status: models.PilotPlanned}
	require.NoError(t, s.AddPilot("run-1", pilot))
	require.NoError(t, s.UpdatePilot("run-1", "pilot-1", models.PilotRunning, "", nil))

	eval := &models.PilotEvaluation{PilotID: "pilot-1", CriticScore: 80, AvgQA: 70, Approved: true}
	require.NoError(t, s.UpdatePilot("run-1", "pilot-1", models.PilotApproved, "", eval))

	// Terminal statuses are final.
	err = s.UpdatePilot("run-1", "pilot-1", models.PilotCancelled, "", nil)
	assert.Equal(t, faults.InputInvalid, faults.KindOf(err))

	run, err := s.Get("run-1")
	require.NoError(t, err)
	rec := run.Pilot("pilot-1")
	require.NotNil(t, rec)
	assert.Equal(t, models.PilotApproved, rec.Status)
	assert.NotNil(t, rec.Evaluation)
	assert.NotNil(t, rec.StartedAt)
	assert.NotNil(t, rec.FinishedAt)
}

func TestResume(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	_, _, err := s.Begin("run-1", "c", 1, models.AudioNone)
	require.NoError(t, err)
	require.NoError(t, s.Advance("run-1", StagePlanningPilots, nil))

	// Fresh store simulating process restart.
	s2 := NewStore(dir)
	run, resumed, err := s2.Begin("run-1", "ignored", 99, models.AudioNone)
	require.NoError(t, err)
	assert.True(t, resumed)
	// Original head survives; Begin args for an existing run are ignored.
	assert.Equal(t, "c", run.Concept)
	assert.Equal(t, StagePlanningPilots, run.CurrentStage)
	assert.True(t, run.StageFinished(StageInitialized))
	assert.False(t, run.StageFinished(StagePlanningPilots))
}

func TestSimulatedFlag(t *testing.T) {
	s := NewStore(t.TempDir())
	_, _, err := s.Begin("run-1", "c", 1, models.AudioNone)
	require.NoError(t, err)

	require.NoError(t, s.SetActualProvider("run-1", models.KindVideo, "mock"))
	run, err := s.Get("run-1")
	require.NoError(t, err)
	assert.True(t, run.Simulated())
	assert.Equal(t, "mock", run.ActualProviders["VIDEO"])
}

func TestMetadataWrittenOnComplete(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	_, _, err := s.Begin("run-1", "c", 1, models.AudioNone)
	require.NoError(t, err)
	require.NoError(t, s.Complete("run-1", StatusCompleted))

	_, err = os.Stat(filepath.Join(dir, "run-1", "metadata.json"))
	require.NoError(t, err)
}

func TestListNewestFirstAndDelete(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, id := range []string{"run-a", "run-b", "run-c"} {
		_, _, err := s.Begin(id, "c", 1, models.AudioNone)
		require.NoError(t, err)
	}

	runs, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	require.NoError(t, s.Delete("run-a"))
	runs, err = s.List(0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	for _, r := range runs {
		assert.NotEqual(t, "run-a", r.RunID)
	}
}

func TestGetUnknownRun(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Get("nope")
	assert.Equal(t, faults.InputInvalid, faults.KindOf(err))
}
