// Package journal owns the per-run append-only record: timeline events,
// pilots, assets, errors and resumption checkpoints. The journal file is the
// source of truth for a run; media files on disk are referenced by relative
// path.
package journal

import (
	"strings"
	"time"

	"github.com/reelforge/reelforge/pkg/models"
)

// Stage is the closed set of run stages.
type Stage string

// Run stage constants in pipeline order.
const (
	StageInitialized     Stage = "INITIALIZED"
	StageAnalyzingAssets Stage = "ANALYZING_ASSETS"
	StagePlanningPilots  Stage = "PLANNING_PILOTS"
	StageGenScripts      Stage = "GENERATING_SCRIPTS"
	StageGenVideo        Stage = "GENERATING_VIDEO"
	StageGenAudio        Stage = "GENERATING_AUDIO"
	StageEvaluating      Stage = "EVALUATING"
	StageEditing         Stage = "EDITING"
	StageRendering       Stage = "RENDERING"
	StageCompleted       Stage = "COMPLETED"
	StageFailed          Stage = "FAILED"
)

// stageProgress maps each stage to a progress percent for UIs.
var stageProgress = map[Stage]int{
	StageInitialized:     0,
	StageAnalyzingAssets: 5,
	StagePlanningPilots:  10,
	StageGenScripts:      20,
	StageGenVideo:        45,
	StageGenAudio:        60,
	StageEvaluating:      70,
	StageEditing:         80,
	StageRendering:       90,
	StageCompleted:       100,
	StageFailed:          100,
}

// Progress returns the stage's progress percent.
func (s Stage) Progress() int { return stageProgress[s] }

// IsValid checks whether the stage is a known value.
func (s Stage) IsValid() bool {
	_, ok := stageProgress[s]
	return ok
}

// IsTerminal reports whether the stage ends the run.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Run terminal statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// StageEvent is one timeline entry. Seq is monotonically increasing within a
// run with no gaps; readers observe a total order.
type StageEvent struct {
	Seq        int64          `json:"seq"`
	Stage      Stage          `json:"stage"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// PilotRecord tracks a pilot's lifecycle inside the journal.
type PilotRecord struct {
	models.Pilot
	Evaluation *models.PilotEvaluation `json:"evaluation,omitempty"`
	StartedAt  *time.Time              `json:"started_at,omitempty"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
}

// RunError is a recorded failure with enough detail to diagnose without
// re-running.
type RunError struct {
	At       time.Time `json:"at"`
	Stage    Stage     `json:"stage"`
	Kind     string    `json:"kind"`
	Provider string    `json:"provider,omitempty"`
	Message  string    `json:"message"`
	Payload  string    `json:"payload_excerpt,omitempty"`
}

// Run is the journal head plus timeline for one run. The head (current
// stage, progress, status) is updated in place; the timeline, assets,
// errors and warnings are append-only.
type Run struct {
	RunID     string           `json:"run_id"`
	Concept   string           `json:"concept"`
	BudgetUSD float64          `json:"budget_usd"`
	AudioTier models.AudioTier `json:"audio_tier"`

	Status       string `json:"status"`
	CurrentStage Stage  `json:"current_stage"`
	Progress     int    `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	NextSeq  int64        `json:"next_seq"`
	Timeline []StageEvent `json:"timeline"`

	Pilots   []PilotRecord      `json:"pilots,omitempty"`
	Assets   []models.MediaAsset `json:"assets,omitempty"`
	Errors   []RunError         `json:"errors,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`

	// ActualProviders maps media kind → provider actually used, so reports
	// can flag simulated (mock) runs.
	ActualProviders map[string]string `json:"actual_providers,omitempty"`
	FinalPaths      map[string]string `json:"final_paths,omitempty"`
}

// StageFinished reports whether the stage has a timeline event that finished
// without error. Used by resumption to skip completed stages.
func (r *Run) StageFinished(stage Stage) bool {
	for i := len(r.Timeline) - 1; i >= 0; i-- {
		ev := r.Timeline[i]
		if ev.Stage == stage && ev.FinishedAt != nil && ev.Error == "" {
			return true
		}
	}
	return false
}

// Pilot returns the pilot record with the given id, or nil.
func (r *Run) Pilot(pilotID string) *PilotRecord {
	for i := range r.Pilots {
		if r.Pilots[i].ID == pilotID {
			return &r.Pilots[i]
		}
	}
	return nil
}

// Simulated reports whether any capability fell back to a mock provider.
func (r *Run) Simulated() bool {
	for _, name := range r.ActualProviders {
		if strings.HasPrefix(name, "mock") {
			return true
		}
	}
	return false
}
