package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/reelforge/reelforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeDefaultsOnly(t *testing.T) {
	cfg, err := Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Queue.WorkerCount)
	assert.Equal(t, "runs", cfg.System.RunsDir)
	assert.InDelta(t, 0.15, cfg.Budget.ReserveFraction, 1e-9)

	// Defaults never configure a live video provider for STATIC.
	td := cfg.TierDefaults(models.TierStatic)
	assert.Equal(t, "mock-video", td.VideoProvider)
	pc, ok := cfg.Provider("mock-video")
	require.True(t, ok)
	assert.Equal(t, ModeMock, pc.Mode)
}

func TestInitializeUserOverride(t *testing.T) {
	dir := t.TempDir()
	main := `
queue:
  worker_count: 5
budget:
  reserve_fraction: 0.25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reelforge.yaml"), []byte(main), 0o644))

	providers := `
providers:
  luma:
    kind: VIDEO
    mode: mock
    timeout_sec: 60
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "providers.yaml"), []byte(providers), 0o644))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Queue.WorkerCount)
	assert.InDelta(t, 0.25, cfg.Budget.ReserveFraction, 1e-9)

	luma, ok := cfg.Provider("luma")
	require.True(t, ok)
	assert.Equal(t, ModeMock, luma.Mode)
	// Unmentioned providers survive the merge.
	_, ok = cfg.Provider("openai-tts")
	assert.True(t, ok)
}

func TestInitializeValidationFailure(t *testing.T) {
	dir := t.TempDir()
	bad := `
budget:
  overhead_factor: 1.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reelforge.yaml"), []byte(bad), 0o644))

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("RF_TEST_KEY", "sk-12345")
	out := ExpandEnv([]byte("api_key: {{.RF_TEST_KEY}}"))
	assert.Equal(t, "api_key: sk-12345", string(out))

	// Literal dollars pass through untouched.
	out = ExpandEnv([]byte(`pattern: "^secret.*$"`))
	assert.Equal(t, `pattern: "^secret.*$"`, string(out))

	// Missing variables expand to empty.
	out = ExpandEnv([]byte("api_key: {{.RF_DOES_NOT_EXIST_42}}"))
	assert.Equal(t, "api_key: ", string(out))
}
