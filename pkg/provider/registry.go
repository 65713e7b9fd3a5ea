package provider

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
)

// Registry instantiates providers from configuration and caches them per
// name. A live provider whose credential is absent degrades to the mock of
// the same kind at resolve time; the run proceeds and is reported as
// simulated. Raw key material never appears in logs; only the redacted
// suffix does.
type Registry struct {
	cfg   *config.Config
	creds CredentialSource
	log   *slog.Logger

	mu    sync.Mutex
	cache map[string]Provider
}

// NewRegistry builds a registry over the merged configuration.
func NewRegistry(cfg *config.Config, creds CredentialSource, logger *slog.Logger) *Registry {
	if creds == nil {
		creds = EnvCredentials{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{cfg: cfg, creds: creds, log: logger, cache: make(map[string]Provider)}
}

// MockFor returns the mock provider name for a media kind.
func MockFor(kind models.MediaKind) string {
	return "mock-" + strings.ToLower(string(kind))
}

// Resolve returns the provider for a configured name. fellBack is true when
// a live provider degraded to its mock because the credential was missing.
func (r *Registry) Resolve(name string) (p Provider, fellBack bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(name)
}

func (r *Registry) resolveLocked(name string) (Provider, bool, error) {
	if p, ok := r.cache[name]; ok {
		return p, false, nil
	}
	pc, ok := r.cfg.Provider(name)
	if !ok {
		return nil, false, faults.Newf(faults.InputInvalid, "provider %q is not configured", name)
	}

	switch pc.Mode {
	case config.ModeMock:
		p := NewMock(pc.Kind)
		r.cache[name] = p
		return p, false, nil
	case config.ModeStub:
		p, err := r.buildStub(name, pc)
		if err != nil {
			return nil, false, err
		}
		r.cache[name] = p
		return p, false, nil
	}

	key, found := r.creds.Lookup(pc.APIKeyEnv)
	if !found {
		r.log.Warn("Credential missing, falling back to mock",
			"provider", name, "key_env", pc.APIKeyEnv, "mock", MockFor(pc.Kind))
		mock, _, err := r.resolveLocked(MockFor(pc.Kind))
		if err != nil {
			// No mock configured either; surface the credential problem.
			return nil, false, faults.Newf(faults.CredentialMissing,
				"provider %q requires %s and no mock is configured", name, pc.APIKeyEnv)
		}
		return mock, true, nil
	}

	p, err := r.buildLive(name, pc, key)
	if err != nil {
		return nil, false, err
	}
	r.log.Info("Provider initialized", "provider", name, "kind", string(pc.Kind),
		"mode", string(pc.Mode), "credential", Redact(key))
	r.cache[name] = p
	return p, false, nil
}

func (r *Registry) buildLive(name string, pc config.ProviderConfig, key string) (Provider, error) {
	switch name {
	case "luma":
		return NewLuma(key, pc.BaseURL, pc.Model, pc.Timeout(), pc.RateLimitPerMin), nil
	case "openai-image":
		return NewOpenAIImage(key, pc.BaseURL, pc.Model, pc.Timeout(), pc.RateLimitPerMin), nil
	case "openai-tts":
		audio := r.cfg.Audio
		return NewOpenAITTS(key, pc.BaseURL, pc.Model, audio.Voice, audio.Speed, pc.Timeout(), pc.RateLimitPerMin), nil
	default:
		return nil, faults.Newf(faults.InputInvalid, "no live client for provider %q", name)
	}
}

func (r *Registry) buildStub(name string, pc config.ProviderConfig) (Provider, error) {
	switch name {
	case "runway":
		return NewRunway(), nil
	case "suno":
		return NewSuno(), nil
	default:
		return &Stub{name: name, kind: pc.Kind}, nil
	}
}

// ResolveForKind resolves a preferred provider, or the default for the kind
// when preferred is empty, falling back to the kind's mock on missing
// credentials.
func (r *Registry) ResolveForKind(preferred string, kind models.MediaKind) (Provider, bool, error) {
	name := preferred
	if name == "" {
		name = MockFor(kind)
	}
	p, fellBack, err := r.Resolve(name)
	if err != nil {
		return nil, false, err
	}
	if p.Kind() != kind {
		return nil, false, faults.Newf(faults.InputInvalid,
			"provider %q produces %s, not %s", name, p.Kind(), kind)
	}
	return p, fellBack, nil
}

// RetryFor returns the retry policy for a named provider. MaxRetries counts
// retries after the first attempt, so max_retries: 2 yields three attempts.
func (r *Registry) RetryFor(name string) RetryConfig {
	pc, ok := r.cfg.Provider(name)
	if !ok || pc.MaxRetries <= 0 {
		return DefaultRetry
	}
	cfg := DefaultRetry
	cfg.MaxAttempts = pc.MaxRetries + 1
	return cfg
}
