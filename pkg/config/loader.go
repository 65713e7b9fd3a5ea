package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// File names looked up inside the config directory. Both are optional;
// built-in defaults alone yield a fully mock-backed configuration.
const (
	mainConfigFile     = "reelforge.yaml"
	providerConfigFile = "providers.yaml"
)

// providersYAML is the top-level shape of providers.yaml.
type providersYAML struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// Initialize loads, merges, and validates ready-to-use configuration.
//
// Steps performed:
//  1. Load reelforge.yaml and providers.yaml from configDir (both optional)
//  2. Expand environment variables ({{.VAR}} template syntax)
//  3. Parse YAML into structs
//  4. Merge user values over built-in defaults
//  5. Validate the merged result
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg := builtinDefaults()

	user, err := loadUserConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if user != nil {
		// User values win over built-ins; maps merge key-wise so a user
		// provider entry overrides only the named provider.
		if err := mergo.Merge(cfg, user, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge configuration: %w", err)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized",
		"providers", len(cfg.Providers),
		"tiers", len(cfg.Tiers),
		"workers", cfg.Queue.WorkerCount)
	return cfg, nil
}

// loadUserConfig reads the optional YAML files. Returns nil when neither
// file exists.
func loadUserConfig(configDir string) (*Config, error) {
	var user *Config

	mainPath := filepath.Join(configDir, mainConfigFile)
	if data, err := os.ReadFile(mainPath); err == nil {
		user = &Config{}
		if err := yaml.Unmarshal(ExpandEnv(data), user); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidYAML, mainPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", mainPath, err)
	}

	provPath := filepath.Join(configDir, providerConfigFile)
	if data, err := os.ReadFile(provPath); err == nil {
		var pf providersYAML
		if err := yaml.Unmarshal(ExpandEnv(data), &pf); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidYAML, provPath, err)
		}
		if user == nil {
			user = &Config{}
		}
		if user.Providers == nil {
			user.Providers = make(map[string]ProviderConfig)
		}
		for name, pc := range pf.Providers {
			user.Providers[name] = pc
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", provPath, err)
	}

	return user, nil
}
