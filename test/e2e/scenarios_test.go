package e2e

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/reelforge/pkg/assembly"
	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/journal"
	"github.com/reelforge/reelforge/pkg/learnings"
	"github.com/reelforge/reelforge/pkg/models"
)

const runTimeout = 30 * time.Second

// A five-second static brief on mock providers: the run must complete with a
// single-scene EDL whose only decision covers the full clip with plain cuts.
func TestMinimalBriefProducesSafeEDL(t *testing.T) {
	app := NewTestApp(t, WithConfig(func(cfg *config.Config) {
		cfg.Assembly.CandidateStyles = []string{"safe"}
	}))

	runID := app.SubmitBrief(`{"project_name":"Logo reveal","brief":{
		"concept":"A minimalist logo reveal on a dark background",
		"target_duration_sec":5,"budget_usd":2,"audio_tier":"NONE"}}`)

	run := app.WaitForRun(runID, runTimeout)
	require.Equal(t, journal.StatusCompleted, run.Status)
	assert.Equal(t, journal.StageCompleted, run.CurrentStage)
	assert.Equal(t, 100, run.Progress)
	assert.True(t, run.Simulated())
	assert.Zero(t, app.Tracker.CommittedTotal(runID))

	data, err := os.ReadFile(app.Store.EDLPath(runID, "edit_candidates"))
	require.NoError(t, err)
	edl, err := assembly.UnmarshalEDL(data)
	require.NoError(t, err)

	assert.Equal(t, 1, edl.TotalScenes)
	require.Len(t, edl.Candidates, 1)
	cand := edl.Candidates[0]
	assert.Equal(t, "safe", cand.Style)
	require.Len(t, cand.Decisions, 1)

	d := cand.Decisions[0]
	assert.Zero(t, d.InPoint)
	assert.InDelta(t, 5.0, d.OutPoint, 1e-9)
	assert.Zero(t, d.StartTime)
	assert.InDelta(t, 5.0, d.Duration, 1e-9)
	assert.Equal(t, assembly.TransitionCut, d.TransitionIn)
	assert.Equal(t, assembly.TransitionCut, d.TransitionOut)
	assert.Equal(t, edl.RecommendedCandidateID, cand.CandidateID)
}

// The planner may hand pilots at most budget x (1 - reserve fraction); the
// reserve stays untouched for assembly overhead.
func TestPilotAllocationRespectsReserve(t *testing.T) {
	app := NewTestApp(t)

	runID := app.SubmitBrief(`{"brief":{
		"concept":"A product teaser","target_duration_sec":5,"budget_usd":10}}`)

	run := app.WaitForRun(runID, runTimeout)
	require.Equal(t, journal.StatusCompleted, run.Status)
	require.Len(t, run.Pilots, 1)

	reserve := app.Config.Budget.ReserveFraction
	assert.InDelta(t, 10*(1-reserve), run.Pilots[0].AllocatedBudgetUSD, 1e-9)
	// Mocks commit nothing, so the whole budget is still unspent.
	assert.InDelta(t, 10.0, app.Tracker.Remaining(runID), 1e-9)
}

// Asking for a live provider without credentials falls back to the mock and
// flags the run as simulated instead of failing it.
func TestProviderFallbackMarksRunSimulated(t *testing.T) {
	app := NewTestApp(t)

	runID := app.SubmitBrief(`{"brief":{
		"concept":"A neon city flythrough","target_duration_sec":5,"budget_usd":5,
		"video_provider":"luma"}}`)

	run := app.WaitForRun(runID, runTimeout)
	require.Equal(t, journal.StatusCompleted, run.Status)
	assert.True(t, run.Simulated())
	assert.Equal(t, "mock-video", run.ActualProviders[string(models.KindVideo)])
	assert.NotEmpty(t, run.Warnings)
}

// Resubmitting a completed run id is a no-op: the journal is not re-opened
// and no stage re-executes.
func TestResubmitOfCompletedRunIsNoOp(t *testing.T) {
	app := NewTestApp(t)

	body := `{"run_id":"run-resume","brief":{
		"concept":"A logo reveal","target_duration_sec":5,"budget_usd":2}}`
	runID := app.SubmitBrief(body)
	require.Equal(t, "run-resume", runID)

	before := app.WaitForRun(runID, runTimeout)
	require.Equal(t, journal.StatusCompleted, before.Status)

	app.SubmitBrief(body)
	require.Eventually(t, func() bool { return app.Queue.Depth() == 0 },
		runTimeout, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond) // let the worker finish the claimed no-op

	after, err := app.Store.Get(runID)
	require.NoError(t, err)
	assert.Equal(t, before.NextSeq, after.NextSeq)
	assert.Len(t, after.Pilots, len(before.Pilots))
}

// A finished pilot leaves a learning behind, retrievable for the provider
// that produced it.
func TestPilotOutcomeRecordedAsLearning(t *testing.T) {
	app := NewTestApp(t)

	runID := app.SubmitBrief(`{"brief":{
		"concept":"A sunrise timelapse over mountains","target_duration_sec":5,"budget_usd":2}}`)
	run := app.WaitForRun(runID, runTimeout)
	require.Equal(t, journal.StatusCompleted, run.Status)

	results, err := app.Learnings.RetrieveForProvider(context.Background(),
		"mock-video", "sunrise timelapse", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	var rec *learnings.Record
	for i := range results {
		for _, tag := range results[i].Record.Tags {
			if tag == "pilot-outcome" {
				rec = &results[i].Record
			}
		}
	}
	require.NotNil(t, rec, "expected a pilot-outcome learning for mock-video")

	// Confirming the learning on later runs raises its confidence.
	before := rec.Confidence
	res, err := app.Learnings.Validate(context.Background(), rec.Namespace, rec.ID, true)
	require.NoError(t, err)
	assert.Greater(t, res.Record.Confidence, before)
	assert.Equal(t, rec.Validations+1, res.Record.Validations)
}

// Cancelling an in-flight run through the API drives it to the cancelled
// terminal state. The run is slowed down with a large scene count so the
// cancel lands mid-flight.
func TestCancelRunThroughAPI(t *testing.T) {
	app := NewTestApp(t, WithConfig(func(cfg *config.Config) {
		tier := cfg.Tiers[models.TierStatic]
		tier.SceneCount = 40
		cfg.Tiers[models.TierStatic] = tier
		cfg.Pilots.MaxParallelScenes = 1
	}))

	runID := app.SubmitBrief(`{"brief":{
		"concept":"A very long montage","target_duration_sec":40,"budget_usd":5}}`)

	require.Eventually(t, func() bool {
		resp, err := http.Post(app.BaseURL+"/api/v1/runs/"+runID+"/cancel", "application/json", nil)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusAccepted
	}, runTimeout, 10*time.Millisecond)

	run := app.WaitForRun(runID, runTimeout)
	assert.Equal(t, journal.StatusCancelled, run.Status)
}
