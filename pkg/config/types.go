// Package config loads, merges, and validates orchestrator configuration
// from YAML files (reelforge.yaml + providers.yaml) with environment
// variable expansion.
package config

import (
	"time"

	"github.com/reelforge/reelforge/pkg/models"
)

// Config is the fully merged and validated configuration.
type Config struct {
	System    SystemConfig                             `yaml:"system"`
	Queue     QueueConfig                              `yaml:"queue"`
	Budget    BudgetConfig                             `yaml:"budget"`
	Pilots    PilotsConfig                             `yaml:"pilots"`
	Audio     AudioConfig                              `yaml:"audio"`
	Assembly  AssemblyConfig                           `yaml:"assembly"`
	Retention RetentionConfig                          `yaml:"retention"`
	Tiers     map[models.ProductionTier]TierDefaults   `yaml:"tiers"`
	Providers map[string]ProviderConfig                `yaml:"providers"`
}

// SystemConfig groups system-wide infrastructure settings.
type SystemConfig struct {
	RunsDir      string `yaml:"runs_dir"`
	MemoryDir    string `yaml:"memory_dir"`
	DashboardURL string `yaml:"dashboard_url,omitempty"`
	APIKeyEnv    string `yaml:"api_key_env,omitempty"` // symbolic name; empty disables auth
}

// QueueConfig controls the run queue worker pool.
type QueueConfig struct {
	WorkerCount   int `yaml:"worker_count"`
	MaxQueueDepth int `yaml:"max_queue_depth"`
}

// BudgetConfig controls budget allocation behavior.
type BudgetConfig struct {
	// ReserveFraction of the brief budget withheld from pilot allocation,
	// drawn only for final assembly or winning-pilot under-estimates.
	ReserveFraction float64 `yaml:"reserve_fraction"`
	// OverheadFactor caps sum of pilot allocations at budget × factor. ≤ 1.
	OverheadFactor float64 `yaml:"overhead_factor"`
}

// PilotsConfig controls pilot scheduling.
type PilotsConfig struct {
	Count               int               `yaml:"count"` // K pilot plans per run
	MaxConcurrentPilots int               `yaml:"max_concurrent_pilots"`
	MaxParallelScenes   int               `yaml:"max_parallel_scenes"`
	MaxParallelAudio    int               `yaml:"max_parallel_audio"`
	EarlyTermination    *EarlyTermination `yaml:"early_termination,omitempty"`
}

// EarlyTermination cancels remaining pilots once one is approved above the
// score threshold.
type EarlyTermination struct {
	Enabled        bool    `yaml:"enabled"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// TierDefaults holds per-tier cost model and recommended plan defaults.
type TierDefaults struct {
	CostPerSecondUSD   float64 `yaml:"cost_per_second_usd"`
	SceneCount         int     `yaml:"scene_count"`
	VariationsPerScene int     `yaml:"variations_per_scene"`
	VideoProvider      string  `yaml:"video_provider"`
	PassThreshold      float64 `yaml:"pass_threshold"` // QA score a variation must reach
}

// AudioConfig controls the audio pipeline.
type AudioConfig struct {
	DefaultTier models.AudioTier `yaml:"default_tier"`
	Provider    string           `yaml:"provider"`
	Voice       string           `yaml:"voice"`
	Speed       float64          `yaml:"speed"`
	// FullProductionExtras gates the extra MUSIC bed + SFX slots that
	// distinguish FULL_PRODUCTION from TIME_SYNCED at the planner layer.
	FullProductionExtras bool    `yaml:"full_production_extras"`
	MusicDuckDB          float64 `yaml:"music_duck_db"` // MUSIC gain delta under VOICEOVER
}

// AssemblyConfig controls EDL candidate generation.
type AssemblyConfig struct {
	CandidateStyles       []string `yaml:"candidate_styles"`
	TransitionDurationSec float64  `yaml:"transition_duration_sec"`
	GainsDB               GainsDB  `yaml:"gains_db"`
	FFmpegPath            string   `yaml:"ffmpeg_path,omitempty"` // empty: resolve from PATH
}

// GainsDB holds per-track-type default gains in dB.
type GainsDB struct {
	Voiceover float64 `yaml:"voiceover"`
	Music     float64 `yaml:"music"`
	SFX       float64 `yaml:"sfx"`
	Ambient   float64 `yaml:"ambient"`
}

// RetentionConfig controls pruning of old terminal run directories. Disabled
// by default; runs are never deleted implicitly.
type RetentionConfig struct {
	Enabled          bool          `yaml:"enabled"`
	RunRetentionDays int           `yaml:"run_retention_days"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
}

// ProviderMode controls how a configured provider is instantiated.
type ProviderMode string

// Provider mode constants.
const (
	ModeLive ProviderMode = "live"
	ModeMock ProviderMode = "mock"
	ModeStub ProviderMode = "stub"
)

// IsValid checks if the provider mode is a known value.
func (m ProviderMode) IsValid() bool {
	return m == ModeLive || m == ModeMock || m == ModeStub
}

// ProviderConfig describes one generative provider back-end.
type ProviderConfig struct {
	Kind            models.MediaKind `yaml:"kind"`
	Mode            ProviderMode     `yaml:"mode"`
	APIKeyEnv       string           `yaml:"api_key_env,omitempty"` // symbolic key name, never the key itself
	BaseURL         string           `yaml:"base_url,omitempty"`
	Model           string           `yaml:"model,omitempty"`
	TimeoutSec      int              `yaml:"timeout_sec"`
	MaxRetries      int              `yaml:"max_retries"`
	PollIntervalSec int              `yaml:"poll_interval_sec"`
	RateLimitPerMin int              `yaml:"rate_limit_per_min"`
}

// Timeout returns the provider's outer deadline as a duration.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

// PollInterval returns the minimum poll interval as a duration.
func (p ProviderConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalSec) * time.Second
}

// Provider returns the configuration for a named provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	pc, ok := c.Providers[name]
	return pc, ok
}

// TierDefaults returns the defaults for a tier; the zero value if unknown.
func (c *Config) TierDefaults(tier models.ProductionTier) TierDefaults {
	return c.Tiers[tier]
}
