package script

import (
	"context"
	"testing"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenesHaveContiguousOrdinals(t *testing.T) {
	e := NewHeuristic()
	brief := models.Brief{
		Concept:           "A logo forms from particles. The camera pulls back, revealing a city. Night falls",
		TargetDurationSec: 15,
	}
	pilot := models.Pilot{ID: "pilot-1", TargetScenes: 3}

	scenes, err := e.GenerateScenes(context.Background(), brief, pilot)
	require.NoError(t, err)
	require.Len(t, scenes, 3)

	total := 0.0
	for i, s := range scenes {
		assert.Equal(t, i, s.Ordinal)
		assert.NotEmpty(t, s.ID)
		assert.NotEmpty(t, s.Title)
		assert.NotEmpty(t, s.Description)
		total += s.TargetDurationSec
	}
	assert.InDelta(t, 15, total, 1e-9)
	assert.Contains(t, scenes[0].Title, "Opening")
	assert.Contains(t, scenes[2].Title, "Closing")
}

func TestVoiceoverTextFollowsAudioTier(t *testing.T) {
	e := NewHeuristic()
	pilot := models.Pilot{ID: "p", TargetScenes: 2}
	brief := models.Brief{Concept: "One thing. Another thing", TargetDurationSec: 10}

	brief.AudioTier = models.AudioNone
	scenes, err := e.GenerateScenes(context.Background(), brief, pilot)
	require.NoError(t, err)
	assert.Empty(t, scenes[0].VoiceoverText)

	brief.AudioTier = models.AudioTimeSynced
	scenes, err = e.GenerateScenes(context.Background(), brief, pilot)
	require.NoError(t, err)
	assert.NotEmpty(t, scenes[0].VoiceoverText)
}

func TestMoreScenesThanClausesReusesClauses(t *testing.T) {
	e := NewHeuristic()
	scenes, err := e.GenerateScenes(context.Background(),
		models.Brief{Concept: "Just one idea", TargetDurationSec: 20},
		models.Pilot{ID: "p", TargetScenes: 4})
	require.NoError(t, err)
	require.Len(t, scenes, 4)
	for i, s := range scenes {
		assert.Equal(t, i, s.Ordinal)
	}
}

func TestInvalidInputs(t *testing.T) {
	e := NewHeuristic()
	_, err := e.GenerateScenes(context.Background(),
		models.Brief{Concept: "x", TargetDurationSec: 10}, models.Pilot{ID: "p"})
	assert.Equal(t, faults.InputInvalid, faults.KindOf(err))

	_, err = e.GenerateScenes(context.Background(),
		models.Brief{Concept: "x"}, models.Pilot{ID: "p", TargetScenes: 1})
	assert.Equal(t, faults.InputInvalid, faults.KindOf(err))
}

func TestDeterministic(t *testing.T) {
	e := NewHeuristic()
	brief := models.Brief{Concept: "A calm lake at dawn, mist rising", TargetDurationSec: 10}
	pilot := models.Pilot{ID: "p", TargetScenes: 2}

	a, err := e.GenerateScenes(context.Background(), brief, pilot)
	require.NoError(t, err)
	b, err := e.GenerateScenes(context.Background(), brief, pilot)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
