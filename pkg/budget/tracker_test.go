package budget

import (
	"sync"
	"testing"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, runID string, allocated float64) *Tracker {
	t.Helper()
	tr := NewTracker("")
	require.NoError(t, tr.Open(runID, allocated))
	return tr
}

func TestReserveCommitRelease(t *testing.T) {
	tr := newTestTracker(t, "run-1", 10)

	resID, err := tr.Reserve("run-1", 4, CategoryVideo, "pilot-1")
	require.NoError(t, err)
	assert.InDelta(t, 6, tr.Remaining("run-1"), 1e-9)

	require.NoError(t, tr.Commit(resID, 3.5, "asset-1"))
	assert.InDelta(t, 6.5, tr.Remaining("run-1"), 1e-9)
	assert.InDelta(t, 3.5, tr.CommittedTotal("run-1"), 1e-9)

	entries := tr.Entries("run-1")
	require.Len(t, entries, 1)
	assert.Equal(t, CategoryVideo, entries[0].Category)
	assert.Equal(t, "asset-1", entries[0].AssetID)

	resID2, err := tr.Reserve("run-1", 2, CategoryAudio, "pilot-1")
	require.NoError(t, err)
	require.NoError(t, tr.Release(resID2))
	assert.InDelta(t, 6.5, tr.Remaining("run-1"), 1e-9)
	// A release leaves no ledger entry.
	assert.Len(t, tr.Entries("run-1"), 1)
}

func TestReserveExactRemainingSucceeds(t *testing.T) {
	tr := newTestTracker(t, "run-1", 2.00)

	resID, err := tr.Reserve("run-1", 0.75, CategoryVideo, "")
	require.NoError(t, err)
	require.NoError(t, tr.Commit(resID, 0.75, "a"))

	// Exactly remaining() succeeds; remaining()+ε fails.
	rem := tr.Remaining("run-1")
	_, err = tr.Reserve("run-1", rem+0.0001, CategoryVideo, "")
	require.Error(t, err)
	assert.Equal(t, faults.OverBudget, faults.KindOf(err))

	resID, err = tr.Reserve("run-1", rem, CategoryVideo, "")
	require.NoError(t, err)
	require.NoError(t, tr.Release(resID))
}

func TestOverBudgetNotRetryable(t *testing.T) {
	tr := newTestTracker(t, "run-1", 1)
	_, err := tr.Reserve("run-1", 1.5, CategoryVideo, "")
	require.Error(t, err)
	kind := faults.KindOf(err)
	assert.Equal(t, faults.OverBudget, kind)
	assert.False(t, kind.Retryable())
}

func TestConcurrentReservationsHoldInvariant(t *testing.T) {
	tr := newTestTracker(t, "run-1", 100)

	var wg sync.WaitGroup
	granted := make(chan string, 1000)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if id, err := tr.Reserve("run-1", 1, CategoryVideo, ""); err == nil {
					granted <- id
				}
			}
		}()
	}
	wg.Wait()
	close(granted)

	var ids []string
	for id := range granted {
		ids = append(ids, id)
	}
	// 500 attempted, only 100 fit the allocation.
	assert.Len(t, ids, 100)
	assert.InDelta(t, 0, tr.Remaining("run-1"), 1e-9)

	for _, id := range ids {
		require.NoError(t, tr.Commit(id, 1, "asset"))
	}
	assert.InDelta(t, 100, tr.CommittedTotal("run-1"), 1e-9)
}

func TestPersistAndResume(t *testing.T) {
	dir := t.TempDir()

	tr := NewTracker(dir)
	require.NoError(t, tr.Open("run-1", 10))
	resID, err := tr.Reserve("run-1", 4, CategoryVideo, "pilot-1")
	require.NoError(t, err)
	require.NoError(t, tr.Commit(resID, 4, "asset-1"))

	// A new tracker (fresh process) restores committed spend; the old
	// reservation is gone but the spend is not refunded.
	tr2 := NewTracker(dir)
	require.NoError(t, tr2.Open("run-1", 10))
	assert.InDelta(t, 4, tr2.CommittedTotal("run-1"), 1e-9)
	assert.InDelta(t, 6, tr2.Remaining("run-1"), 1e-9)
	require.Len(t, tr2.Entries("run-1"), 1)
}

func TestUnknownRunAndReservation(t *testing.T) {
	tr := NewTracker("")
	_, err := tr.Reserve("nope", 1, CategoryVideo, "")
	assert.Equal(t, faults.InputInvalid, faults.KindOf(err))
	assert.Equal(t, faults.InputInvalid, faults.KindOf(tr.Commit("nope", 1, "")))
	assert.Equal(t, faults.InputInvalid, faults.KindOf(tr.Release("nope")))
	assert.Zero(t, tr.Remaining("nope"))
}
