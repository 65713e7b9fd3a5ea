package queue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/reelforge/reelforge/pkg/journal"
	"github.com/reelforge/reelforge/pkg/metrics"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// workerPollInterval is the base delay between claim attempts on an empty
// queue; actual waits are jittered around it.
const workerPollInterval = 500 * time.Millisecond

// RunRegistry is the subset of WorkerPool used by Worker for cancellation
// registration.
type RunRegistry interface {
	RegisterRun(runID string, cancel context.CancelFunc)
	UnregisterRun(runID string)
}

// Worker is a single queue worker that claims and executes runs.
type Worker struct {
	id       string
	queue    *Queue
	executor RunExecutor
	pool     RunRegistry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentRunID  string
	runsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a queue worker.
func NewWorker(id string, q *Queue, executor RunExecutor, pool RunRegistry) *Worker {
	return &Worker{
		id:           id,
		queue:        q,
		executor:     executor,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker claim loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish its current
// run. Safe to call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health snapshot.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        w.status,
		CurrentRunID:  w.currentRunID,
		RunsProcessed: w.runsProcessed,
		LastActivity:  w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.claimAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoRunsAvailable) {
					w.sleep(jitteredPoll())
					continue
				}
				log.Error("Error processing run", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// claimAndProcess claims the next run and executes it to a terminal state.
func (w *Worker) claimAndProcess(ctx context.Context) error {
	sub, err := w.queue.Claim()
	if err != nil {
		return err
	}

	log := slog.With("run_id", sub.RunID, "worker_id", w.id)
	log.Info("Run claimed", "concept", sub.Brief.Concept, "budget_usd", sub.Brief.BudgetUSD)

	w.setStatus(WorkerStatusWorking, sub.RunID)
	defer w.setStatus(WorkerStatusIdle, "")

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	w.pool.RegisterRun(sub.RunID, cancelRun)
	defer w.pool.UnregisterRun(sub.RunID)

	result := w.executor.Execute(runCtx, sub)
	if result == nil {
		if errors.Is(runCtx.Err(), context.Canceled) {
			result = &ExecutionResult{Status: journal.StatusCancelled, Err: context.Canceled}
		} else {
			result = &ExecutionResult{Status: journal.StatusFailed, Err: errors.New("executor returned nil result")}
		}
	}

	metrics.RunsFinished.WithLabelValues(result.Status).Inc()
	w.mu.Lock()
	w.runsProcessed++
	w.mu.Unlock()

	log.Info("Run processing complete", "status", result.Status)
	return nil
}

// jitteredPoll returns the poll interval with ±50% jitter so idle workers
// do not claim in lockstep.
func jitteredPoll() time.Duration {
	half := int64(workerPollInterval / 2)
	return workerPollInterval - time.Duration(half) + time.Duration(rand.Int64N(2*half))
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, runID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentRunID = runID
	w.lastActivity = time.Now()
}
