package config

import (
	"errors"
	"fmt"
)

// validate checks the merged configuration for range and reference errors.
// All violations are collected so an operator sees the full list at once.
func validate(cfg *Config) error {
	var errs []error

	if cfg.Queue.WorkerCount < 1 {
		errs = append(errs, newValidationError("queue", "", "worker_count",
			fmt.Errorf("must be >= 1, got %d", cfg.Queue.WorkerCount)))
	}
	if cfg.Queue.MaxQueueDepth < 1 {
		errs = append(errs, newValidationError("queue", "", "max_queue_depth",
			fmt.Errorf("must be >= 1, got %d", cfg.Queue.MaxQueueDepth)))
	}

	if cfg.Budget.ReserveFraction < 0 || cfg.Budget.ReserveFraction >= 1 {
		errs = append(errs, newValidationError("budget", "", "reserve_fraction",
			fmt.Errorf("must be in [0,1), got %v", cfg.Budget.ReserveFraction)))
	}
	if cfg.Budget.OverheadFactor <= 0 || cfg.Budget.OverheadFactor > 1 {
		errs = append(errs, newValidationError("budget", "", "overhead_factor",
			fmt.Errorf("must be in (0,1], got %v", cfg.Budget.OverheadFactor)))
	}

	if cfg.Pilots.Count < 1 {
		errs = append(errs, newValidationError("pilots", "", "count",
			fmt.Errorf("must be >= 1, got %d", cfg.Pilots.Count)))
	}
	if cfg.Pilots.MaxConcurrentPilots < 1 {
		errs = append(errs, newValidationError("pilots", "", "max_concurrent_pilots",
			fmt.Errorf("must be >= 1, got %d", cfg.Pilots.MaxConcurrentPilots)))
	}
	if cfg.Pilots.MaxParallelScenes < 1 {
		errs = append(errs, newValidationError("pilots", "", "max_parallel_scenes",
			fmt.Errorf("must be >= 1, got %d", cfg.Pilots.MaxParallelScenes)))
	}

	if !cfg.Audio.DefaultTier.IsValid() {
		errs = append(errs, newValidationError("audio", "", "default_tier",
			fmt.Errorf("unknown audio tier %q", cfg.Audio.DefaultTier)))
	}
	if cfg.Audio.Provider != "" {
		if _, ok := cfg.Providers[cfg.Audio.Provider]; !ok {
			errs = append(errs, newValidationError("audio", "", "provider",
				fmt.Errorf("%w: %q", ErrProviderNotFound, cfg.Audio.Provider)))
		}
	}

	if cfg.Retention.Enabled {
		if cfg.Retention.RunRetentionDays < 1 {
			errs = append(errs, newValidationError("retention", "", "run_retention_days",
				fmt.Errorf("must be >= 1, got %d", cfg.Retention.RunRetentionDays)))
		}
		if cfg.Retention.SweepInterval <= 0 {
			errs = append(errs, newValidationError("retention", "", "sweep_interval",
				fmt.Errorf("must be > 0, got %v", cfg.Retention.SweepInterval)))
		}
	}

	for tier, td := range cfg.Tiers {
		if !tier.IsValid() {
			errs = append(errs, newValidationError("tier", string(tier), "",
				fmt.Errorf("unknown production tier")))
			continue
		}
		if td.CostPerSecondUSD < 0 {
			errs = append(errs, newValidationError("tier", string(tier), "cost_per_second_usd",
				fmt.Errorf("must be >= 0, got %v", td.CostPerSecondUSD)))
		}
		if td.SceneCount < 1 || td.VariationsPerScene < 1 {
			errs = append(errs, newValidationError("tier", string(tier), "scene_count",
				fmt.Errorf("scene_count and variations_per_scene must be >= 1")))
		}
		if td.PassThreshold < 0 || td.PassThreshold > 100 {
			errs = append(errs, newValidationError("tier", string(tier), "pass_threshold",
				fmt.Errorf("must be in [0,100], got %v", td.PassThreshold)))
		}
		if _, ok := cfg.Providers[td.VideoProvider]; !ok {
			errs = append(errs, newValidationError("tier", string(tier), "video_provider",
				fmt.Errorf("%w: %q", ErrProviderNotFound, td.VideoProvider)))
		}
	}

	for name, pc := range cfg.Providers {
		if !pc.Mode.IsValid() {
			errs = append(errs, newValidationError("provider", name, "mode",
				fmt.Errorf("unknown mode %q", pc.Mode)))
		}
		if pc.TimeoutSec <= 0 {
			errs = append(errs, newValidationError("provider", name, "timeout_sec",
				fmt.Errorf("must be > 0, got %d", pc.TimeoutSec)))
		}
		if pc.MaxRetries < 0 {
			errs = append(errs, newValidationError("provider", name, "max_retries",
				fmt.Errorf("must be >= 0, got %d", pc.MaxRetries)))
		}
		if pc.Mode == ModeLive && pc.BaseURL == "" {
			errs = append(errs, newValidationError("provider", name, "base_url",
				fmt.Errorf("required for live providers")))
		}
	}

	return errors.Join(errs...)
}
