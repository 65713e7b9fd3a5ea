package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
)

// On-disk names inside runs/{run_id}/. External tools depend on this layout.
const (
	journalFile  = "memory.json"
	metadataFile = "metadata.json"
)

var runSubdirs = []string{"scenes", "videos", "audio", "edl", "renders"}

// Store manages run journals under a base directory. In-memory state is
// guarded per run; every write replaces the journal file atomically and is
// synced before the operation returns.
type Store struct {
	baseDir string

	mu   sync.Mutex
	runs map[string]*runState
}

type runState struct {
	mu  sync.Mutex
	run *Run
}

// NewStore creates a journal store rooted at baseDir (the runs directory).
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir, runs: make(map[string]*runState)}
}

// RunDir returns the directory for a run.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// ScenePath returns runs/{run}/scenes/{scene_id}.json.
func (s *Store) ScenePath(runID, sceneID string) string {
	return filepath.Join(s.RunDir(runID), "scenes", sceneID+".json")
}

// VideoPath returns runs/{run}/videos/{scene_id}_v{n}{ext}.
func (s *Store) VideoPath(runID, sceneID string, variation int, ext string) string {
	return filepath.Join(s.RunDir(runID), "videos", fmt.Sprintf("%s_v%d%s", sceneID, variation, ext))
}

// AudioPath returns runs/{run}/audio/{scene_id}_{suffix}.{ext}.
func (s *Store) AudioPath(runID, sceneID, suffix, ext string) string {
	return filepath.Join(s.RunDir(runID), "audio", fmt.Sprintf("%s_%s.%s", sceneID, suffix, ext))
}

// EDLPath returns runs/{run}/edl/{name}.json.
func (s *Store) EDLPath(runID, name string) string {
	return filepath.Join(s.RunDir(runID), "edl", name+".json")
}

// RenderPath returns runs/{run}/renders/{run}/{candidate}_final.mp4.
func (s *Store) RenderPath(runID, candidateID string) string {
	return filepath.Join(s.RunDir(runID), "renders", runID, candidateID+"_final.mp4")
}

// Begin creates the run directory tree and journal, or loads an existing
// journal for resumption. Returns the run and whether it was resumed.
func (s *Store) Begin(runID, concept string, budgetUSD float64, audioTier models.AudioTier) (*Run, bool, error) {
	st := s.state(runID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if run, err := s.loadLocked(st, runID); err == nil && run != nil {
		slog.Info("Journal resumed", "run_id", runID, "stage", run.CurrentStage, "seq", run.NextSeq)
		return s.snapshot(run), true, nil
	}

	for _, sub := range runSubdirs {
		if err := os.MkdirAll(filepath.Join(s.RunDir(runID), sub), 0o755); err != nil {
			return nil, false, faults.Wrap(faults.JournalIO, err, "creating run layout")
		}
	}

	now := time.Now().UTC()
	run := &Run{
		RunID:           runID,
		Concept:         concept,
		BudgetUSD:       budgetUSD,
		AudioTier:       audioTier,
		Status:          StatusRunning,
		CurrentStage:    StageInitialized,
		Progress:        StageInitialized.Progress(),
		CreatedAt:       now,
		UpdatedAt:       now,
		NextSeq:         1,
		ActualProviders: make(map[string]string),
		FinalPaths:      make(map[string]string),
	}
	run.Timeline = append(run.Timeline, StageEvent{
		Seq:       run.nextSeq(),
		Stage:     StageInitialized,
		StartedAt: now,
	})
	st.run = run
	if err := s.persistLocked(run); err != nil {
		return nil, false, err
	}
	slog.Info("Journal started", "run_id", runID, "concept", concept, "budget_usd", budgetUSD)
	return s.snapshot(run), false, nil
}

// Advance finishes the current open stage event and appends a new one for
// the given stage, updating the head in place.
func (s *Store) Advance(runID string, stage Stage, details map[string]any) error {
	if !stage.IsValid() {
		return faults.Newf(faults.InputInvalid, "unknown stage %q", stage)
	}
	return s.mutate(runID, func(run *Run) error {
		now := time.Now().UTC()
		run.finishOpenEvent(now, "")
		run.Timeline = append(run.Timeline, StageEvent{
			Seq:       run.nextSeq(),
			Stage:     stage,
			StartedAt: now,
			Details:   details,
		})
		run.CurrentStage = stage
		run.Progress = stage.Progress()
		return nil
	})
}

// AddPilot appends a pilot record.
func (s *Store) AddPilot(runID string, pilot models.Pilot) error {
	return s.mutate(runID, func(run *Run) error {
		now := time.Now().UTC()
		rec := PilotRecord{Pilot: pilot}
		if pilot.Status == models.PilotRunning {
			rec.StartedAt = &now
		}
		run.Pilots = append(run.Pilots, rec)
		return nil
	})
}

// UpdatePilot mutates a pilot's status (and optionally its evaluation).
// Terminal statuses are final; transitions out of them are rejected.
func (s *Store) UpdatePilot(runID, pilotID string, status models.PilotStatus, reason string, eval *models.PilotEvaluation) error {
	return s.mutate(runID, func(run *Run) error {
		rec := run.Pilot(pilotID)
		if rec == nil {
			return faults.Newf(faults.InputInvalid, "unknown pilot %q", pilotID)
		}
		if rec.Status.IsTerminal() {
			return faults.Newf(faults.InputInvalid, "pilot %q already terminal (%s)", pilotID, rec.Status)
		}
		now := time.Now().UTC()
		if status == models.PilotRunning && rec.StartedAt == nil {
			rec.StartedAt = &now
		}
		if status.IsTerminal() {
			rec.FinishedAt = &now
		}
		rec.Status = status
		rec.StatusReason = reason
		if eval != nil {
			rec.Evaluation = eval
		}
		return nil
	})
}

// AddAsset appends a media asset record.
func (s *Store) AddAsset(runID string, asset models.MediaAsset) error {
	return s.mutate(runID, func(run *Run) error {
		run.Assets = append(run.Assets, asset)
		return nil
	})
}

// AddError appends an error record. The run continues; terminal failure is
// signalled via Complete.
func (s *Store) AddError(runID string, e RunError) error {
	return s.mutate(runID, func(run *Run) error {
		if e.At.IsZero() {
			e.At = time.Now().UTC()
		}
		run.Errors = append(run.Errors, e)
		return nil
	})
}

// AddWarning appends a warning message.
func (s *Store) AddWarning(runID, warning string) error {
	return s.mutate(runID, func(run *Run) error {
		run.Warnings = append(run.Warnings, warning)
		return nil
	})
}

// SetActualProvider records the provider actually used for a media kind so
// downstream reports can flag simulated runs.
func (s *Store) SetActualProvider(runID string, kind models.MediaKind, providerName string) error {
	return s.mutate(runID, func(run *Run) error {
		run.ActualProviders[string(kind)] = providerName
		return nil
	})
}

// SetFinalPath records a final artifact path under a logical key.
func (s *Store) SetFinalPath(runID, key, path string) error {
	return s.mutate(runID, func(run *Run) error {
		run.FinalPaths[key] = path
		return nil
	})
}

// Complete finishes the run with a terminal status, closes the open stage
// event and writes metadata.json.
func (s *Store) Complete(runID, status string) error {
	var terminal Stage
	switch status {
	case StatusCompleted:
		terminal = StageCompleted
	case StatusFailed, StatusCancelled:
		terminal = StageFailed
	default:
		return faults.Newf(faults.InputInvalid, "unknown terminal status %q", status)
	}

	err := s.mutate(runID, func(run *Run) error {
		now := time.Now().UTC()
		run.finishOpenEvent(now, "")
		run.Timeline = append(run.Timeline, StageEvent{
			Seq:        run.nextSeq(),
			Stage:      terminal,
			StartedAt:  now,
			FinishedAt: &now,
		})
		run.CurrentStage = terminal
		run.Progress = terminal.Progress()
		run.Status = status
		return nil
	})
	if err != nil {
		return err
	}

	run, err := s.Get(runID)
	if err != nil {
		return err
	}
	meta, err := json.MarshalIndent(map[string]any{
		"run_id":           run.RunID,
		"status":           run.Status,
		"concept":          run.Concept,
		"budget_usd":       run.BudgetUSD,
		"created_at":       run.CreatedAt,
		"completed_at":     run.UpdatedAt,
		"simulated":        run.Simulated(),
		"actual_providers": run.ActualProviders,
		"final_paths":      run.FinalPaths,
	}, "", "  ")
	if err != nil {
		return faults.Wrap(faults.JournalIO, err, "encoding metadata")
	}
	if err := renameio.WriteFile(filepath.Join(s.RunDir(runID), metadataFile), meta, 0o644); err != nil {
		return faults.Wrap(faults.JournalIO, err, "writing metadata")
	}
	slog.Info("Run completed", "run_id", runID, "status", status)
	return nil
}

// Get returns a copy of the run journal.
func (s *Store) Get(runID string) (*Run, error) {
	st := s.state(runID)
	st.mu.Lock()
	defer st.mu.Unlock()
	run, err := s.loadLocked(st, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, faults.Newf(faults.InputInvalid, "unknown run %q", runID)
	}
	return s.snapshot(run), nil
}

// List returns up to limit run journals, newest first.
func (s *Store) List(limit int) ([]*Run, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, faults.Wrap(faults.JournalIO, err, "listing runs")
	}

	var runs []*Run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		run, err := s.Get(e.Name())
		if err != nil {
			continue // skip directories without a readable journal
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Delete removes a run's directory tree. Runs are never deleted implicitly;
// this is an explicit admin operation.
func (s *Store) Delete(runID string) error {
	st := s.state(runID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.run = nil
	if err := os.RemoveAll(s.RunDir(runID)); err != nil {
		return faults.Wrap(faults.JournalIO, err, "deleting run")
	}
	return nil
}

// ────────────────────────────────────────────────────────────
// Internals
// ────────────────────────────────────────────────────────────

func (s *Store) state(runID string) *runState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[runID]
	if !ok {
		st = &runState{}
		s.runs[runID] = st
	}
	return st
}

// mutate loads the run, applies fn, and persists. Any persistence failure is
// a JOURNAL_IO fault, fatal for the run, never swallowed.
func (s *Store) mutate(runID string, fn func(*Run) error) error {
	st := s.state(runID)
	st.mu.Lock()
	defer st.mu.Unlock()

	run, err := s.loadLocked(st, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return faults.Newf(faults.InputInvalid, "unknown run %q", runID)
	}
	if err := fn(run); err != nil {
		return err
	}
	run.UpdatedAt = time.Now().UTC()
	return s.persistLocked(run)
}

func (s *Store) loadLocked(st *runState, runID string) (*Run, error) {
	if st.run != nil {
		return st.run, nil
	}
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), journalFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, faults.Wrap(faults.JournalIO, err, "reading journal")
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, faults.Wrap(faults.JournalIO, err, "parsing journal")
	}
	if run.ActualProviders == nil {
		run.ActualProviders = make(map[string]string)
	}
	if run.FinalPaths == nil {
		run.FinalPaths = make(map[string]string)
	}
	st.run = &run
	return st.run, nil
}

func (s *Store) persistLocked(run *Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return faults.Wrap(faults.JournalIO, err, "encoding journal")
	}
	if err := os.MkdirAll(s.RunDir(run.RunID), 0o755); err != nil {
		return faults.Wrap(faults.JournalIO, err, "creating run dir")
	}
	// renameio replaces atomically and syncs before rename, so readers never
	// observe a torn journal and a crash cannot lose acknowledged events.
	if err := renameio.WriteFile(filepath.Join(s.RunDir(run.RunID), journalFile), data, 0o644); err != nil {
		return faults.Wrap(faults.JournalIO, err, "writing journal")
	}
	return nil
}

func (s *Store) snapshot(run *Run) *Run {
	data, err := json.Marshal(run)
	if err != nil {
		return run
	}
	var cp Run
	if err := json.Unmarshal(data, &cp); err != nil {
		return run
	}
	return &cp
}

func (r *Run) nextSeq() int64 {
	seq := r.NextSeq
	r.NextSeq++
	return seq
}

func (r *Run) finishOpenEvent(now time.Time, errMsg string) {
	if len(r.Timeline) == 0 {
		return
	}
	last := &r.Timeline[len(r.Timeline)-1]
	if last.FinishedAt == nil {
		last.FinishedAt = &now
		if errMsg != "" {
			last.Error = errMsg
		}
	}
}
