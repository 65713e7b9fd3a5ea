package queue

import (
	"sync"
	"time"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/metrics"
	"github.com/reelforge/reelforge/pkg/models"
)

// Queue is the in-memory FIFO of submitted runs. Runs are claimed exactly
// once; a claimed run that crashes is resumed by resubmitting the same
// run id (the journal and ledger carry the state).
type Queue struct {
	mu       sync.Mutex
	items    []Submission
	maxDepth int
}

// NewQueue creates a queue bounded at maxDepth. Zero or negative means
// unbounded.
func NewQueue(maxDepth int) *Queue {
	return &Queue{maxDepth: maxDepth}
}

// Enqueue appends a submission. Returns ErrAtCapacity when the queue is
// full and an INPUT_INVALID fault on malformed submissions.
func (q *Queue) Enqueue(sub Submission) error {
	if sub.RunID == "" {
		return faults.New(faults.InputInvalid, "submission needs a run id")
	}
	if sub.Brief.Concept == "" || sub.Brief.BudgetUSD <= 0 || sub.Brief.TargetDurationSec <= 0 {
		return faults.New(faults.InputInvalid, "brief needs a concept, a positive budget and a positive duration")
	}
	if sub.Brief.AudioTier == "" {
		sub.Brief.AudioTier = models.AudioNone
	}
	if sub.EnqueuedAt.IsZero() {
		sub.EnqueuedAt = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.maxDepth > 0 && len(q.items) >= q.maxDepth {
		return ErrAtCapacity
	}
	q.items = append(q.items, sub)
	metrics.QueueDepth.Set(float64(len(q.items)))
	return nil
}

// Claim removes and returns the oldest submission, or ErrNoRunsAvailable.
func (q *Queue) Claim() (Submission, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Submission{}, ErrNoRunsAvailable
	}
	sub := q.items[0]
	q.items = q.items[1:]
	metrics.QueueDepth.Set(float64(len(q.items)))
	return sub, nil
}

// Depth returns the number of waiting submissions.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
