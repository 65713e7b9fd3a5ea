// Package budget implements the process-wide USD ledger consulted before
// every paid provider call. All paid work follows reserve→commit or
// reserve→release; the invariant committed+reserved ≤ allocated holds across
// goroutines.
package budget

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/reelforge/pkg/faults"
)

// Spend categories recorded on ledger entries.
const (
	CategoryVideo    = "video_generation"
	CategoryAudio    = "audio_synthesis"
	CategoryImage    = "image_generation"
	CategoryMusic    = "music_generation"
	CategoryAssembly = "assembly"
)

// epsilon absorbs float accumulation noise so a reservation of exactly
// Remaining() succeeds.
const epsilon = 1e-9

// Entry is one append-only ledger record. Entries are written on commit;
// releases leave no entry (the reservation never became spend).
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	AmountUSD float64   `json:"amount_usd"`
	RunID     string    `json:"run_id"`
	PilotID   string    `json:"pilot_id,omitempty"`
	AssetID   string    `json:"asset_id,omitempty"`
}

type reservation struct {
	id       string
	runID    string
	pilotID  string
	category string
	amount   float64
}

type runLedger struct {
	allocated float64
	committed float64
	reserved  map[string]*reservation
	entries   []Entry
}

func (l *runLedger) reservedTotal() float64 {
	var sum float64
	for _, r := range l.reserved {
		sum += r.amount
	}
	return sum
}

// Tracker is the process-wide budget tracker. Construct exactly once per
// process with NewTracker and pass it explicitly; there is no package-level
// instance.
type Tracker struct {
	mu      sync.Mutex
	runs    map[string]*runLedger
	persist persister // nil disables persistence
}

// NewTracker creates a tracker persisting each run's ledger under
// runsDir/{run_id}/ledger.json. An empty runsDir disables persistence.
func NewTracker(runsDir string) *Tracker {
	t := &Tracker{runs: make(map[string]*runLedger)}
	if runsDir != "" {
		t.persist = &filePersister{runsDir: runsDir}
	}
	return t
}

// Open registers a run with its total allocation. If a persisted ledger
// exists for the run (crash resume), committed amounts and entries are
// restored so a resumed run never re-spends.
func (t *Tracker) Open(runID string, allocatedUSD float64) error {
	if allocatedUSD < 0 {
		return faults.Newf(faults.InputInvalid, "allocation must be >= 0, got %v", allocatedUSD)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	l := &runLedger{allocated: allocatedUSD, reserved: make(map[string]*reservation)}
	if t.persist != nil {
		committed, entries, err := t.persist.load(runID)
		if err != nil {
			return err
		}
		l.committed = committed
		l.entries = entries
	}
	t.runs[runID] = l

	slog.Info("Budget opened",
		"run_id", runID,
		"allocated_usd", allocatedUSD,
		"committed_usd", l.committed)
	return nil
}

// Reserve holds amountUSD against the run's allocation. Returns a
// reservation id, or an OVER_BUDGET fault when committed+reserved+amount
// would exceed the allocation. Over-budget is not retryable.
func (t *Tracker) Reserve(runID string, amountUSD float64, category, pilotID string) (string, error) {
	if amountUSD < 0 {
		return "", faults.Newf(faults.InputInvalid, "reservation must be >= 0, got %v", amountUSD)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.runs[runID]
	if !ok {
		return "", faults.Newf(faults.InputInvalid, "unknown run %q", runID)
	}

	if l.committed+l.reservedTotal()+amountUSD > l.allocated+epsilon {
		return "", faults.Newf(faults.OverBudget,
			"reservation of $%.4f denied: committed $%.4f + reserved $%.4f of $%.4f",
			amountUSD, l.committed, l.reservedTotal(), l.allocated)
	}

	r := &reservation{
		id:       uuid.New().String(),
		runID:    runID,
		pilotID:  pilotID,
		category: category,
		amount:   amountUSD,
	}
	l.reserved[r.id] = r
	return r.id, nil
}

// Commit converts a reservation into spend at its actual cost and appends a
// ledger entry. actualUSD may differ from the reserved amount but must not
// push the run over its allocation.
func (t *Tracker) Commit(reservationID string, actualUSD float64, assetID string) error {
	if actualUSD < 0 {
		return faults.Newf(faults.InputInvalid, "commit must be >= 0, got %v", actualUSD)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	r, l, err := t.findReservation(reservationID)
	if err != nil {
		return err
	}

	// The reservation itself no longer counts once removed; check the actual
	// amount against what remains.
	delete(l.reserved, reservationID)
	if l.committed+l.reservedTotal()+actualUSD > l.allocated+epsilon {
		// Undo: the caller must not treat an over-run commit as spend.
		l.reserved[reservationID] = r
		return faults.Newf(faults.OverBudget,
			"commit of $%.4f exceeds allocation $%.4f", actualUSD, l.allocated)
	}

	l.committed += actualUSD
	entry := Entry{
		Timestamp: time.Now().UTC(),
		Category:  r.category,
		AmountUSD: actualUSD,
		RunID:     r.runID,
		PilotID:   r.pilotID,
		AssetID:   assetID,
	}
	l.entries = append(l.entries, entry)

	if t.persist != nil {
		if err := t.persist.save(r.runID, l.allocated, l.committed, l.entries); err != nil {
			return fmt.Errorf("persisting ledger for run %s: %w", r.runID, err)
		}
	}
	return nil
}

// Release drops a reservation without spend. Safe to call once per
// reservation; unknown ids are an input error.
func (t *Tracker) Release(reservationID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, l, err := t.findReservation(reservationID)
	if err != nil {
		return err
	}
	delete(l.reserved, reservationID)
	return nil
}

// Remaining returns the run's allocation minus committed and reserved
// amounts. Unknown runs report zero.
func (t *Tracker) Remaining(runID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.runs[runID]
	if !ok {
		return 0
	}
	rem := l.allocated - l.committed - l.reservedTotal()
	if rem < 0 {
		return 0
	}
	return rem
}

// CommittedTotal returns the total spend committed for the run.
func (t *Tracker) CommittedTotal(runID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.runs[runID]; ok {
		return l.committed
	}
	return 0
}

// Entries returns a copy of the run's append-only ledger entries.
func (t *Tracker) Entries(runID string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.runs[runID]
	if !ok {
		return nil
	}
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// findReservation locates a reservation and its ledger. Caller holds t.mu.
func (t *Tracker) findReservation(reservationID string) (*reservation, *runLedger, error) {
	for _, l := range t.runs {
		if r, ok := l.reserved[reservationID]; ok {
			return r, l, nil
		}
	}
	return nil, nil, faults.Newf(faults.InputInvalid, "unknown reservation %q", reservationID)
}
