package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
)

func validSubmission(runID string) Submission {
	return Submission{
		RunID: runID,
		Brief: models.Brief{Concept: "a concept", TargetDurationSec: 5, BudgetUSD: 2},
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(10)
	require.NoError(t, q.Enqueue(validSubmission("run-1")))
	require.NoError(t, q.Enqueue(validSubmission("run-2")))
	assert.Equal(t, 2, q.Depth())

	first, err := q.Claim()
	require.NoError(t, err)
	assert.Equal(t, "run-1", first.RunID)
	assert.False(t, first.EnqueuedAt.IsZero())

	second, err := q.Claim()
	require.NoError(t, err)
	assert.Equal(t, "run-2", second.RunID)

	_, err = q.Claim()
	assert.ErrorIs(t, err, ErrNoRunsAvailable)
}

func TestQueueCapacity(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Enqueue(validSubmission("run-1")))
	assert.ErrorIs(t, q.Enqueue(validSubmission("run-2")), ErrAtCapacity)

	_, err := q.Claim()
	require.NoError(t, err)
	assert.NoError(t, q.Enqueue(validSubmission("run-2")))
}

func TestQueueRejectsMalformedSubmissions(t *testing.T) {
	q := NewQueue(10)

	err := q.Enqueue(Submission{Brief: models.Brief{Concept: "x", TargetDurationSec: 5, BudgetUSD: 1}})
	assert.Equal(t, faults.InputInvalid, faults.KindOf(err))

	err = q.Enqueue(Submission{RunID: "r", Brief: models.Brief{TargetDurationSec: 5, BudgetUSD: 1}})
	assert.Equal(t, faults.InputInvalid, faults.KindOf(err))

	err = q.Enqueue(Submission{RunID: "r", Brief: models.Brief{Concept: "x", TargetDurationSec: 5}})
	assert.Equal(t, faults.InputInvalid, faults.KindOf(err))
}

func TestQueueDefaultsAudioTier(t *testing.T) {
	q := NewQueue(10)
	require.NoError(t, q.Enqueue(validSubmission("run-1")))
	sub, err := q.Claim()
	require.NoError(t, err)
	assert.Equal(t, models.AudioNone, sub.Brief.AudioTier)
}
