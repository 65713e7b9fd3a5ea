package config

import (
	"time"

	"github.com/reelforge/reelforge/pkg/models"
)

// builtinDefaults returns the complete built-in configuration. User YAML is
// merged on top of this, so every field has a working value out of the box
// (all providers default to mock: no credentials, no spend).
func builtinDefaults() *Config {
	return &Config{
		System: SystemConfig{
			RunsDir:   "runs",
			MemoryDir: "memory",
		},
		Queue: QueueConfig{
			WorkerCount:   2,
			MaxQueueDepth: 32,
		},
		Budget: BudgetConfig{
			ReserveFraction: 0.15,
			OverheadFactor:  1.0,
		},
		Pilots: PilotsConfig{
			Count:               2,
			MaxConcurrentPilots: 2,
			MaxParallelScenes:   3,
			MaxParallelAudio:    2,
			EarlyTermination: &EarlyTermination{
				Enabled:        false,
				ScoreThreshold: 85,
			},
		},
		Audio: AudioConfig{
			DefaultTier:          models.AudioNone,
			Provider:             "openai-tts",
			Voice:                "alloy",
			Speed:                1.0,
			FullProductionExtras: true,
			MusicDuckDB:          -12,
		},
		Assembly: AssemblyConfig{
			CandidateStyles:       []string{"safe", "dynamic", "balanced"},
			TransitionDurationSec: 0.5,
			GainsDB: GainsDB{
				Voiceover: 0,
				Music:     -18,
				SFX:       -10,
				Ambient:   -24,
			},
		},
		Retention: RetentionConfig{
			Enabled:          false,
			RunRetentionDays: 30,
			SweepInterval:    time.Hour,
		},
		Tiers: map[models.ProductionTier]TierDefaults{
			models.TierStatic: {
				CostPerSecondUSD:   0.02,
				SceneCount:         1,
				VariationsPerScene: 1,
				VideoProvider:      "mock-video",
				PassThreshold:      50,
			},
			models.TierAnimated: {
				CostPerSecondUSD:   0.20,
				SceneCount:         3,
				VariationsPerScene: 2,
				VideoProvider:      "luma",
				PassThreshold:      60,
			},
			models.TierPhotorealistic: {
				CostPerSecondUSD:   0.50,
				SceneCount:         4,
				VariationsPerScene: 3,
				VideoProvider:      "luma",
				PassThreshold:      70,
			},
		},
		Providers: map[string]ProviderConfig{
			"mock-video": {
				Kind: models.KindVideo, Mode: ModeMock,
				TimeoutSec: 30, MaxRetries: 0, PollIntervalSec: 0,
			},
			"mock-audio": {
				Kind: models.KindAudio, Mode: ModeMock,
				TimeoutSec: 30,
			},
			"mock-image": {
				Kind: models.KindImage, Mode: ModeMock,
				TimeoutSec: 30,
			},
			"mock-music": {
				Kind: models.KindMusic, Mode: ModeMock,
				TimeoutSec: 30,
			},
			"luma": {
				Kind: models.KindVideo, Mode: ModeLive,
				APIKeyEnv:  "LUMA_API_KEY",
				BaseURL:    "https://api.lumalabs.ai/dream-machine/v1",
				Model:      "ray-2",
				TimeoutSec: 600, MaxRetries: 3, PollIntervalSec: 5,
				RateLimitPerMin: 20,
			},
			"runway": {
				Kind: models.KindVideo, Mode: ModeStub,
				APIKeyEnv:  "RUNWAY_API_KEY",
				TimeoutSec: 600, MaxRetries: 3, PollIntervalSec: 5,
			},
			"openai-image": {
				Kind: models.KindImage, Mode: ModeLive,
				APIKeyEnv:  "OPENAI_API_KEY",
				BaseURL:    "https://api.openai.com/v1",
				Model:      "gpt-image-1",
				TimeoutSec: 120, MaxRetries: 3,
				RateLimitPerMin: 30,
			},
			"openai-tts": {
				Kind: models.KindAudio, Mode: ModeLive,
				APIKeyEnv:  "OPENAI_API_KEY",
				BaseURL:    "https://api.openai.com/v1",
				Model:      "gpt-4o-mini-tts",
				TimeoutSec: 120, MaxRetries: 3,
				RateLimitPerMin: 60,
			},
			"suno": {
				Kind: models.KindMusic, Mode: ModeStub,
				APIKeyEnv:  "SUNO_API_KEY",
				TimeoutSec: 300, MaxRetries: 3, PollIntervalSec: 5,
			},
		},
	}
}
