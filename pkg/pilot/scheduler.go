package pilot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/journal"
	"github.com/reelforge/reelforge/pkg/learnings"
	"github.com/reelforge/reelforge/pkg/metrics"
	"github.com/reelforge/reelforge/pkg/models"
	"github.com/reelforge/reelforge/pkg/scene"
	"github.com/reelforge/reelforge/pkg/script"
)

// learningPattern is where pilot outcomes are recorded for future prompting.
const learningPattern = "/org/{org_id}/actor/{actor_id}/providers/{provider}"

// SceneRunner runs one pilot's scene pipeline. Satisfied by *scene.Pipeline.
type SceneRunner interface {
	Run(ctx context.Context, runID string, brief models.Brief, pilot models.Pilot, scenes []models.Scene) (*scene.Outcome, error)
}

// Scheduler runs planned pilots with bounded parallelism, admits the next
// plan as one completes, evaluates outcomes and ranks them.
type Scheduler struct {
	cfg     *config.Config
	store   *journal.Store
	scripts script.Engine
	runner  SceneRunner
	critic  *Critic
	mgr     *learnings.Manager // nil disables outcome recording
	logger  *slog.Logger
}

// NewScheduler wires the pilot scheduler.
func NewScheduler(cfg *config.Config, store *journal.Store, scripts script.Engine,
	runner SceneRunner, mgr *learnings.Manager, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg: cfg, store: store, scripts: scripts, runner: runner,
		critic: NewCritic(), mgr: mgr, logger: logger,
	}
}

// Result is the scheduler's verdict for one run.
type Result struct {
	// Winner is nil when no pilot was approved.
	Winner        *models.Pilot
	WinnerOutcome *scene.Outcome
	Evaluations   []models.PilotEvaluation // ranked, best first
	Outcomes      map[string]*scene.Outcome
}

// Execute runs every non-terminal pilot and ranks the results. Pilots already
// terminal in the journal (a previous process finished them) are not re-run;
// their persisted evaluations still participate in the ranking.
func (s *Scheduler) Execute(ctx context.Context, runID string, brief models.Brief, pilots []models.Pilot) (*Result, error) {
	run, err := s.store.Get(runID)
	if err != nil {
		return nil, err
	}

	for _, p := range pilots {
		if run.Pilot(p.ID) == nil {
			if err := s.store.AddPilot(runID, p); err != nil {
				return nil, err
			}
		}
	}

	var (
		mu         sync.Mutex
		evals      []models.PilotEvaluation
		outcomes   = make(map[string]*scene.Outcome, len(pilots))
		terminated bool
	)
	for _, rec := range run.Pilots {
		if rec.Status.IsTerminal() && rec.Evaluation != nil {
			evals = append(evals, *rec.Evaluation)
		}
	}

	pilotCtx, cancelRest := context.WithCancel(ctx)
	defer cancelRest()

	g := new(errgroup.Group)
	g.SetLimit(max(1, s.cfg.Pilots.MaxConcurrentPilots))

	for _, p := range pilots {
		if rec := run.Pilot(p.ID); rec != nil && rec.Status.IsTerminal() {
			s.logger.Info("Skipping terminal pilot on resume",
				"run_id", runID, "pilot_id", p.ID, "status", rec.Status)
			continue
		}
		g.Go(func() error {
			mu.Lock()
			stop := terminated
			mu.Unlock()
			if stop {
				return s.store.UpdatePilot(runID, p.ID, models.PilotCancelled, "early termination", nil)
			}

			eval, outcome, err := s.runPilot(pilotCtx, runID, brief, p)
			if err != nil {
				if faults.KindOf(err) == faults.Cancelled {
					mu.Lock()
					stopped := terminated
					mu.Unlock()
					reason := "run cancelled"
					if stopped {
						reason = "early termination"
					}
					uerr := s.store.UpdatePilot(runID, p.ID, models.PilotCancelled, reason, nil)
					metrics.PilotsFinished.WithLabelValues(string(models.PilotCancelled)).Inc()
					if stopped {
						return uerr
					}
				}
				return err
			}

			mu.Lock()
			evals = append(evals, eval)
			outcomes[p.ID] = outcome
			early := s.cfg.Pilots.EarlyTermination
			if early != nil && early.Enabled && eval.Approved &&
				eval.CompositeScore() >= early.ScoreThreshold && !terminated {
				terminated = true
				s.logger.Info("Early termination triggered",
					"run_id", runID, "pilot_id", p.ID, "composite", eval.CompositeScore())
				cancelRest()
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Evaluations: Rank(evals), Outcomes: outcomes}
	if len(result.Evaluations) > 0 && result.Evaluations[0].Approved {
		winnerID := result.Evaluations[0].PilotID
		for _, p := range pilots {
			if p.ID == winnerID {
				result.Winner = &p
				break
			}
		}
		result.WinnerOutcome = outcomes[winnerID]
	}
	return result, nil
}

// runPilot drives one pilot end to end: script, scene pipeline, evaluation,
// terminal journal status.
func (s *Scheduler) runPilot(ctx context.Context, runID string, brief models.Brief, p models.Pilot) (models.PilotEvaluation, *scene.Outcome, error) {
	if err := s.store.UpdatePilot(runID, p.ID, models.PilotRunning, "", nil); err != nil {
		return models.PilotEvaluation{}, nil, err
	}

	scenes, err := s.scripts.GenerateScenes(ctx, brief, p)
	if err != nil {
		uerr := s.store.UpdatePilot(runID, p.ID, models.PilotRejected,
			fmt.Sprintf("script generation failed: %v", err), nil)
		if uerr != nil {
			return models.PilotEvaluation{}, nil, uerr
		}
		metrics.PilotsFinished.WithLabelValues(string(models.PilotRejected)).Inc()
		eval := models.PilotEvaluation{PilotID: p.ID, Reasoning: fmt.Sprintf("script generation failed: %v", err)}
		return eval, &scene.Outcome{PilotID: p.ID}, nil
	}

	outcome, err := s.runner.Run(ctx, runID, brief, p, scenes)
	if err != nil {
		if faults.KindOf(err) == faults.Cancelled {
			return models.PilotEvaluation{}, nil, err
		}
		uerr := s.store.UpdatePilot(runID, p.ID, models.PilotRejected,
			fmt.Sprintf("scene pipeline failed: %v", err), nil)
		if uerr != nil {
			return models.PilotEvaluation{}, nil, uerr
		}
		metrics.PilotsFinished.WithLabelValues(string(models.PilotRejected)).Inc()
		eval := models.PilotEvaluation{PilotID: p.ID, Reasoning: fmt.Sprintf("scene pipeline failed: %v", err)}
		return eval, &scene.Outcome{PilotID: p.ID}, nil
	}

	eval := s.critic.Evaluate(brief, p, outcome)
	status := models.PilotRejected
	if eval.Approved {
		status = models.PilotApproved
	}
	if err := s.store.UpdatePilot(runID, p.ID, status, eval.Reasoning, &eval); err != nil {
		return models.PilotEvaluation{}, nil, err
	}
	metrics.PilotsFinished.WithLabelValues(string(status)).Inc()

	s.recordLearning(ctx, outcome, eval)
	return eval, outcome, nil
}

// recordLearning persists the pilot outcome for future prompt biasing.
// Best-effort: a failure never affects the run.
func (s *Scheduler) recordLearning(ctx context.Context, outcome *scene.Outcome, eval models.PilotEvaluation) {
	if s.mgr == nil || outcome.VideoProvider == "" {
		return
	}
	verdict := "rejected"
	if eval.Approved {
		verdict = "approved"
	}
	rec := &learnings.Record{
		Content: map[string]any{
			"guidance": fmt.Sprintf("%s pilots on %s averaged QA %.1f (%s)",
				verdict, outcome.VideoProvider, eval.AvgQA, eval.Reasoning),
			"critic_score": eval.CriticScore,
			"avg_qa":       eval.AvgQA,
			"approved":     eval.Approved,
		},
		TextForSearch: fmt.Sprintf("%s pilot outcome avg qa %.1f", outcome.VideoProvider, eval.AvgQA),
		Tags:          []string{"pilot-outcome", outcome.VideoProvider},
	}
	if _, err := s.mgr.Record(ctx, learningPattern, outcome.VideoProvider, rec); err != nil {
		s.logger.Warn("Recording pilot outcome learning failed",
			"pilot_id", eval.PilotID, "error", err)
	}
}
