package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/journal"
)

// blockingExecutor records executed runs and can hold them until released.
type blockingExecutor struct {
	mu       sync.Mutex
	executed []string
	hold     chan struct{} // nil: finish immediately
	done     chan string
}

func (b *blockingExecutor) Execute(ctx context.Context, sub Submission) *ExecutionResult {
	b.mu.Lock()
	b.executed = append(b.executed, sub.RunID)
	b.mu.Unlock()

	if b.hold != nil {
		select {
		case <-b.hold:
		case <-ctx.Done():
			b.done <- sub.RunID
			return &ExecutionResult{Status: journal.StatusCancelled, Err: ctx.Err()}
		}
	}
	if b.done != nil {
		b.done <- sub.RunID
	}
	return &ExecutionResult{Status: journal.StatusCompleted}
}

func TestPoolDrainsQueue(t *testing.T) {
	q := NewQueue(10)
	exec := &blockingExecutor{done: make(chan string, 4)}
	pool := NewWorkerPool(q, config.QueueConfig{WorkerCount: 2, MaxQueueDepth: 10}, exec)

	for _, id := range []string{"run-1", "run-2", "run-3", "run-4"} {
		require.NoError(t, q.Enqueue(validSubmission(id)))
	}

	pool.Start(context.Background())
	defer pool.Stop()

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		select {
		case id := <-exec.done:
			seen[id] = true
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for runs to drain")
		}
	}
	assert.Len(t, seen, 4)
	assert.Equal(t, 0, q.Depth())
}

func TestPoolCancelRun(t *testing.T) {
	q := NewQueue(10)
	exec := &blockingExecutor{hold: make(chan struct{}), done: make(chan string, 1)}
	pool := NewWorkerPool(q, config.QueueConfig{WorkerCount: 1, MaxQueueDepth: 10}, exec)

	require.NoError(t, q.Enqueue(validSubmission("run-1")))
	pool.Start(context.Background())
	defer pool.Stop()

	// Wait until the worker has claimed and registered the run.
	require.Eventually(t, func() bool { return pool.CancelRun("run-1") },
		5*time.Second, 10*time.Millisecond)

	select {
	case id := <-exec.done:
		assert.Equal(t, "run-1", id)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled run never finished")
	}
	assert.False(t, pool.CancelRun("unknown"))
}

func TestPoolHealth(t *testing.T) {
	q := NewQueue(10)
	pool := NewWorkerPool(q, config.QueueConfig{WorkerCount: 2, MaxQueueDepth: 10}, &blockingExecutor{})
	pool.Start(context.Background())
	defer pool.Stop()

	h := pool.Health()
	assert.True(t, h.IsHealthy)
	assert.Equal(t, 2, h.TotalWorkers)
	assert.Len(t, h.WorkerStats, 2)
}
