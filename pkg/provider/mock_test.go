package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/reelforge/reelforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGeneratesDeterministically(t *testing.T) {
	dir := t.TempDir()
	m := NewMock(models.KindVideo)
	assert.Equal(t, "mock-video", m.Name())
	assert.Equal(t, models.KindVideo, m.Kind())
	assert.Zero(t, m.EstimateCost(Request{DurationSec: 100}))

	req := Request{Prompt: "a slow pan over mountains", DurationSec: 5,
		OutputPath: filepath.Join(dir, "videos", "scene_000_v0.mp4")}
	out, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, out.Ready)
	assert.Nil(t, out.Job)
	assert.Zero(t, out.Ready.CostUSD)
	assert.Equal(t, req.OutputPath, out.Ready.LocalPath)

	first, err := os.ReadFile(req.OutputPath)
	require.NoError(t, err)

	// Same prompt, same bytes.
	req2 := req
	req2.OutputPath = filepath.Join(dir, "videos", "scene_000_v1.mp4")
	_, err = m.Generate(context.Background(), req2)
	require.NoError(t, err)
	second, err := os.ReadFile(req2.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestMockRequiresOutputPath(t *testing.T) {
	m := NewMock(models.KindAudio)
	_, err := m.Generate(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
}

func TestMockNamesPerKind(t *testing.T) {
	assert.Equal(t, "mock-audio", NewMock(models.KindAudio).Name())
	assert.Equal(t, "mock-image", NewMock(models.KindImage).Name())
	assert.Equal(t, "mock-music", NewMock(models.KindMusic).Name())
}
