package llm

import (
	"fmt"

	"github.com/agentflow/core/pkg/registry"
)

// BackendConfig is one configured LLM backend entry, as assembled by
// cmd/agentflowd from the environment-derived config: which SDK to
// drive, which model, and its credentials.
type BackendConfig struct {
	Backend string // "openai", "anthropic", "gemini", "ollama", "openrouter"
	Model   string
	APIKey  string
	BaseURL string
}

// Manager is the LLM adapter registry, keyed by "backend/model" exactly
// as the teacher's LLMRegistry/EmbedderRegistry/DatabaseRegistry triad
// keys by name. Adapters are constructed eagerly at startup from
// config and reused across requests — spec.md §5 requires adapter
// instances be safe for concurrent Stream calls, which every adapter
// in this package satisfies (each Stream call opens its own HTTP
// request/stream).
type Manager struct {
	*registry.BaseRegistry[Adapter]
}

// NewManager builds a Manager from the given backend configs. A
// backend missing required credentials is skipped rather than failing
// the whole manager — IsAvailable reports why.
func NewManager(configs []BackendConfig) (*Manager, error) {
	m := &Manager{BaseRegistry: registry.NewBaseRegistry[Adapter]()}

	for _, cfg := range configs {
		adapter, err := buildAdapter(cfg)
		if err != nil {
			return nil, fmt.Errorf("llm: configure %s/%s: %w", cfg.Backend, cfg.Model, err)
		}
		if adapter == nil {
			continue
		}
		key := cfg.Backend + "/" + cfg.Model
		if err := m.Register(key, adapter); err != nil {
			return nil, fmt.Errorf("llm: register %s: %w", key, err)
		}
	}

	return m, nil
}

func buildAdapter(cfg BackendConfig) (Adapter, error) {
	switch cfg.Backend {
	case "openai":
		if cfg.APIKey == "" {
			return nil, nil
		}
		return NewOpenAIAdapter(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model}), nil

	case "openrouter":
		if cfg.APIKey == "" {
			return nil, nil
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://openrouter.ai/api/v1"
		}
		return NewOpenAIAdapter(OpenAIConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     baseURL,
			Model:       cfg.Model,
			HTTPReferer: "https://github.com/agentflow/core",
			XTitle:      "agentflow",
		}), nil

	case "anthropic":
		if cfg.APIKey == "" {
			return nil, nil
		}
		return NewAnthropicAdapter(AnthropicConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model}), nil

	case "gemini":
		if cfg.APIKey == "" {
			return nil, nil
		}
		return NewGeminiAdapter(GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model})

	case "ollama":
		return NewOllamaAdapter(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model}), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// Resolve returns the adapter registered for "backend/model".
func (m *Manager) Resolve(backend, model string) (Adapter, error) {
	key := backend + "/" + model
	adapter, ok := m.Get(key)
	if !ok {
		return nil, fmt.Errorf("llm: no adapter configured for %s", key)
	}
	return adapter, nil
}

// IsAvailable reports whether backend has at least one configured
// adapter, and if not, why (spec.md's health-check surface).
func (m *Manager) IsAvailable(backend string) (bool, string) {
	for _, adapter := range m.List() {
		if len(adapter.Name()) > len(backend) && adapter.Name()[:len(backend)+1] == backend+"/" {
			return true, ""
		}
	}
	return false, fmt.Sprintf("no %s adapter configured (missing API key or model)", backend)
}
