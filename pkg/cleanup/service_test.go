package cleanup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/journal"
	"github.com/reelforge/reelforge/pkg/models"
)

func TestSweepDeletesOnlyOldTerminalRuns(t *testing.T) {
	store := journal.NewStore(t.TempDir())
	svc := NewService(config.RetentionConfig{
		Enabled:          true,
		RunRetentionDays: 0, // cutoff is now: anything terminal is eligible
		SweepInterval:    time.Hour,
	}, store, nil)

	_, _, err := store.Begin("run-done", "concept", 2, models.AudioNone)
	require.NoError(t, err)
	require.NoError(t, store.Complete("run-done", journal.StatusCompleted))

	_, _, err = store.Begin("run-live", "concept", 2, models.AudioNone)
	require.NoError(t, err)

	// Terminal runs updated after the cutoff survive a 1-day window.
	assert.Equal(t, 0, NewService(config.RetentionConfig{
		Enabled: true, RunRetentionDays: 1, SweepInterval: time.Hour,
	}, store, nil).Sweep())

	deleted := svc.Sweep()
	assert.Equal(t, 1, deleted)

	_, err = store.Get("run-done")
	assert.Error(t, err)
	_, err = store.Get("run-live")
	assert.NoError(t, err)
}
