// Package queue runs briefs through the production pipeline: an in-memory
// FIFO of submitted runs, a worker pool that claims and executes them, and
// the executor that drives a run through its stages with journal
// checkpoints.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/reelforge/reelforge/pkg/models"
)

// Queue sentinel errors.
var (
	// ErrNoRunsAvailable indicates an empty queue; workers back off and poll.
	ErrNoRunsAvailable = errors.New("no runs available")
	// ErrAtCapacity indicates the queue is full; submitters should retry later.
	ErrAtCapacity = errors.New("queue at capacity")
)

// Submission is one queued production request.
type Submission struct {
	RunID       string       `json:"run_id"`
	ProjectName string       `json:"project_name"`
	Brief       models.Brief `json:"brief"`
	EnqueuedAt  time.Time    `json:"enqueued_at"`
}

// ExecutionResult is lightweight, just the terminal state. All intermediate
// state was already written to the journal during processing.
type ExecutionResult struct {
	Status string // journal terminal status
	Err    error
}

// RunExecutor executes one claimed run to a terminal state. The executor
// owns the entire run lifecycle internally; the worker only handles
// claiming, cancellation registration and terminal bookkeeping.
type RunExecutor interface {
	Execute(ctx context.Context, sub Submission) *ExecutionResult
}

// WorkerHealth is one worker's health snapshot.
type WorkerHealth struct {
	ID            string       `json:"id"`
	Status        WorkerStatus `json:"status"`
	CurrentRunID  string       `json:"current_run_id,omitempty"`
	RunsProcessed int          `json:"runs_processed"`
	LastActivity  time.Time    `json:"last_activity"`
}

// PoolHealth is the pool's aggregate health snapshot.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	QueueDepth    int            `json:"queue_depth"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}
