package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/reelforge/reelforge/pkg/assembly"
	"github.com/reelforge/reelforge/pkg/budget"
	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/journal"
	"github.com/reelforge/reelforge/pkg/knowledge"
	"github.com/reelforge/reelforge/pkg/learnings"
	"github.com/reelforge/reelforge/pkg/models"
	"github.com/reelforge/reelforge/pkg/pilot"
	"github.com/reelforge/reelforge/pkg/provider"
	"github.com/reelforge/reelforge/pkg/scene"
	"github.com/reelforge/reelforge/pkg/script"
)

// Executor drives one run through its stages, checkpointing each in the
// journal so a replacement process can resume after a crash.
type Executor struct {
	cfg       *config.Config
	store     *journal.Store
	tracker   *budget.Tracker
	registry  *provider.Registry
	mgr       *learnings.Manager   // nil disables learnings
	graph     *knowledge.Graph     // nil disables figure matching
	vision    scene.VisionAnalyzer // nil: heuristic QA only
	assembler assembly.Assembler   // nil disables rendering
	logger    *slog.Logger
}

// NewExecutor wires the run executor. Learnings manager, knowledge graph,
// vision analyzer and assembler are optional.
func NewExecutor(cfg *config.Config, store *journal.Store, tracker *budget.Tracker,
	registry *provider.Registry, mgr *learnings.Manager, graph *knowledge.Graph,
	vision scene.VisionAnalyzer, assembler assembly.Assembler, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg: cfg, store: store, tracker: tracker, registry: registry,
		mgr: mgr, graph: graph, vision: vision, assembler: assembler, logger: logger,
	}
}

// Execute runs a submission to a terminal state. Resubmitting a completed
// run id is a no-op returning its recorded status.
func (e *Executor) Execute(ctx context.Context, sub Submission) *ExecutionResult {
	log := e.logger.With("run_id", sub.RunID)

	run, resumed, err := e.store.Begin(sub.RunID, sub.Brief.Concept, sub.Brief.BudgetUSD, sub.Brief.AudioTier)
	if err != nil {
		return &ExecutionResult{Status: journal.StatusFailed, Err: err}
	}
	if resumed && run.Status != journal.StatusRunning {
		log.Info("Run already terminal, nothing to resume", "status", run.Status)
		return &ExecutionResult{Status: run.Status}
	}
	if resumed {
		log.Info("Resuming run", "stage", run.CurrentStage)
	}

	if err := e.tracker.Open(sub.RunID, sub.Brief.BudgetUSD); err != nil {
		return e.fail(sub.RunID, journal.StageInitialized, err)
	}

	// Asset analysis: fold user-supplied figure seeds into the knowledge
	// graph for scene matching.
	if err := e.store.Advance(sub.RunID, journal.StageAnalyzingAssets, nil); err != nil {
		return &ExecutionResult{Status: journal.StatusFailed, Err: err}
	}
	matcher := e.buildMatcher(sub.Brief)

	if err := e.store.Advance(sub.RunID, journal.StagePlanningPilots,
		map[string]any{"budget_usd": sub.Brief.BudgetUSD}); err != nil {
		return &ExecutionResult{Status: journal.StatusFailed, Err: err}
	}
	pilots, err := pilot.NewPlanner(e.cfg).Plan(sub.Brief, nil)
	if err != nil {
		return e.fail(sub.RunID, journal.StagePlanningPilots, err)
	}

	if err := e.store.Advance(sub.RunID, journal.StageGenScripts, nil); err != nil {
		return &ExecutionResult{Status: journal.StatusFailed, Err: err}
	}
	if err := e.store.Advance(sub.RunID, journal.StageGenVideo,
		map[string]any{"pilots": len(pilots)}); err != nil {
		return &ExecutionResult{Status: journal.StatusFailed, Err: err}
	}

	pipeline := scene.NewPipeline(e.cfg, e.registry, e.tracker, e.store, e.mgr, matcher, e.vision, e.logger)
	sched := pilot.NewScheduler(e.cfg, e.store, script.NewHeuristic(), pipeline, e.mgr, e.logger)
	res, err := sched.Execute(ctx, sub.RunID, sub.Brief, pilots)
	if err != nil {
		if faults.KindOf(err) == faults.Cancelled {
			return e.cancelled(sub.RunID, err)
		}
		return e.fail(sub.RunID, journal.StageGenVideo, err)
	}

	// Audio is produced inside the scene pipeline; the stage event records
	// the checkpoint for readers.
	if err := e.store.Advance(sub.RunID, journal.StageGenAudio, nil); err != nil {
		return &ExecutionResult{Status: journal.StatusFailed, Err: err}
	}

	if err := e.store.Advance(sub.RunID, journal.StageEvaluating,
		map[string]any{"evaluated": len(res.Evaluations)}); err != nil {
		return &ExecutionResult{Status: journal.StatusFailed, Err: err}
	}
	if res.Winner == nil {
		return e.fail(sub.RunID, journal.StageEvaluating,
			faults.New(faults.ProviderPermanent, noWinnerReason(res)))
	}
	log.Info("Pilot selected", "pilot_id", res.Winner.ID,
		"composite", res.Evaluations[0].CompositeScore())

	outcome := res.WinnerOutcome
	if outcome == nil {
		outcome, err = e.rebuildOutcome(sub.RunID, res.Winner.ID)
		if err != nil {
			return e.fail(sub.RunID, journal.StageEvaluating, err)
		}
	}

	if err := e.store.Advance(sub.RunID, journal.StageEditing, nil); err != nil {
		return &ExecutionResult{Status: journal.StatusFailed, Err: err}
	}
	planner := assembly.NewPlanner(e.cfg, e.store, e.logger)
	edl, tracks, err := planner.BuildEDL(sub.RunID, sub.ProjectName, outcome)
	if err != nil {
		return e.fail(sub.RunID, journal.StageEditing, err)
	}
	if err := planner.WriteEDL(sub.RunID, edl); err != nil {
		return e.fail(sub.RunID, journal.StageEditing, err)
	}
	if err := e.store.SetFinalPath(sub.RunID, "edl", e.store.EDLPath(sub.RunID, "edit_candidates")); err != nil {
		return &ExecutionResult{Status: journal.StatusFailed, Err: err}
	}

	if err := e.store.Advance(sub.RunID, journal.StageRendering,
		map[string]any{"candidate_id": edl.RecommendedCandidateID}); err != nil {
		return &ExecutionResult{Status: journal.StatusFailed, Err: err}
	}
	e.render(ctx, sub.RunID, edl, tracks)

	if err := e.store.Complete(sub.RunID, journal.StatusCompleted); err != nil {
		return &ExecutionResult{Status: journal.StatusFailed, Err: err}
	}
	log.Info("Run completed", "committed_usd", e.tracker.CommittedTotal(sub.RunID))
	return &ExecutionResult{Status: journal.StatusCompleted}
}

// render is best-effort: a missing or failing assembler leaves the run
// completed with the EDL but no final file.
func (e *Executor) render(ctx context.Context, runID string, edl *assembly.EDL, tracks []assembly.AudioTrack) {
	if e.assembler == nil {
		_ = e.store.AddWarning(runID, "no assembler configured; run completes without a rendered file")
		return
	}
	status := e.assembler.CheckInstalled(ctx)
	if !status.Installed {
		_ = e.store.AddWarning(runID, "assembler not installed; run completes without a rendered file")
		return
	}

	result, err := e.assembler.Render(ctx, edl, edl.RecommendedCandidateID, tracks, runID)
	if err != nil {
		_ = e.store.AddError(runID, journal.RunError{
			Stage: journal.StageRendering, Kind: string(faults.KindOf(err)), Message: err.Error(),
		})
		return
	}
	if !result.Success {
		_ = e.store.AddWarning(runID, "render failed: "+result.Error)
		return
	}
	_ = e.store.SetFinalPath(runID, "render", result.OutputPath)
	e.logger.Info("Render finished", "run_id", runID,
		"output", result.OutputPath, "render_time_sec", result.RenderTimeSec)
}

// buildMatcher folds figure-role seed assets into the configured knowledge
// graph.
func (e *Executor) buildMatcher(brief models.Brief) *knowledge.Matcher {
	var figures []knowledge.Figure
	if e.graph != nil {
		figures = e.graph.Figures()
	}
	for _, seed := range brief.SeedAssets {
		if !strings.EqualFold(seed.Role, "figure") {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(seed.Path), filepath.Ext(seed.Path))
		figures = append(figures, knowledge.Figure{
			ID:        "seed-" + name,
			Name:      name,
			Keywords:  strings.FieldsFunc(strings.ToLower(name), func(r rune) bool { return r == '-' || r == '_' }),
			ImagePath: seed.Path,
		})
	}
	if len(figures) == 0 {
		return nil
	}
	return knowledge.NewMatcher(knowledge.New(figures))
}

// rebuildOutcome reconstructs a winning pilot's outcome from the journal
// after a crash: persisted scene scripts plus the best-scored asset per
// scene.
func (e *Executor) rebuildOutcome(runID, pilotID string) (*scene.Outcome, error) {
	run, err := e.store.Get(runID)
	if err != nil {
		return nil, err
	}

	prefix := pilotID + "-scene-"
	byScene := make(map[string][]models.MediaAsset)
	var audio []models.MediaAsset
	for _, a := range run.Assets {
		switch a.Kind {
		case models.KindVideo:
			if strings.HasPrefix(a.SceneID, prefix) {
				byScene[a.SceneID] = append(byScene[a.SceneID], a)
			}
		case models.KindAudio:
			if strings.HasPrefix(a.SceneID, prefix) {
				audio = append(audio, a)
			}
		case models.KindMusic:
			audio = append(audio, a)
		}
	}
	if len(byScene) == 0 {
		return nil, faults.Newf(faults.JournalIO, "no assets recorded for pilot %q", pilotID)
	}

	outcome := &scene.Outcome{PilotID: pilotID, AudioAssets: audio}
	var qaSum float64
	scored := 0
	for sceneID, assets := range byScene {
		sc, err := e.loadScene(runID, sceneID)
		if err != nil {
			return nil, err
		}
		best := assets[0]
		for _, a := range assets[1:] {
			if score(a) > score(best) {
				best = a
			}
		}
		sr := scene.SceneResult{Scene: sc, Winner: &best}
		for _, a := range assets {
			outcome.CostUSD += a.CostUSD
			sr.Variations = append(sr.Variations, scene.Variation{Asset: a})
		}
		if best.QualityScore != nil {
			qaSum += *best.QualityScore
			scored++
		}
		outcome.Scenes = append(outcome.Scenes, sr)
	}
	for _, a := range audio {
		outcome.CostUSD += a.CostUSD
	}
	if scored > 0 {
		outcome.AvgQA = qaSum / float64(scored)
	}
	sort.SliceStable(outcome.Scenes, func(i, j int) bool {
		return outcome.Scenes[i].Scene.Ordinal < outcome.Scenes[j].Scene.Ordinal
	})
	if vp, ok := run.ActualProviders[string(models.KindVideo)]; ok {
		outcome.VideoProvider = vp
	}
	return outcome, nil
}

// loadScene reads a persisted scene script.
func (e *Executor) loadScene(runID, sceneID string) (models.Scene, error) {
	data, err := os.ReadFile(e.store.ScenePath(runID, sceneID))
	if err != nil {
		return models.Scene{}, faults.Wrap(faults.JournalIO, err, "reading scene script")
	}
	var sc models.Scene
	if err := json.Unmarshal(data, &sc); err != nil {
		return models.Scene{}, faults.Wrap(faults.JournalIO, err, "parsing scene script")
	}
	return sc, nil
}

// fail records the error and completes the run as failed.
func (e *Executor) fail(runID string, stage journal.Stage, err error) *ExecutionResult {
	e.logger.Error("Run failed", "run_id", runID, "stage", stage, "error", err)
	_ = e.store.AddError(runID, journal.RunError{
		Stage: stage, Kind: string(faults.KindOf(err)), Message: err.Error(),
	})
	if cerr := e.store.Complete(runID, journal.StatusFailed); cerr != nil {
		e.logger.Error("Recording run failure failed", "run_id", runID, "error", cerr)
	}
	return &ExecutionResult{Status: journal.StatusFailed, Err: err}
}

// cancelled completes the run as cancelled without a SUCCESS terminal event.
func (e *Executor) cancelled(runID string, err error) *ExecutionResult {
	e.logger.Info("Run cancelled", "run_id", runID)
	if cerr := e.store.Complete(runID, journal.StatusCancelled); cerr != nil {
		e.logger.Error("Recording run cancellation failed", "run_id", runID, "error", cerr)
	}
	return &ExecutionResult{Status: journal.StatusCancelled, Err: err}
}

func noWinnerReason(res *pilot.Result) string {
	if len(res.Evaluations) == 0 {
		return "no pilot produced an evaluation"
	}
	reasons := make([]string, 0, len(res.Evaluations))
	for _, ev := range res.Evaluations {
		reasons = append(reasons, fmt.Sprintf("%s: %s", ev.PilotID, ev.Reasoning))
	}
	return "no pilot approved: " + strings.Join(reasons, "; ")
}

func score(a models.MediaAsset) float64 {
	if a.QualityScore == nil {
		return 0
	}
	return *a.QualityScore
}
