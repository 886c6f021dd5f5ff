package llm

import (
	"fmt"
	"strings"
	"sync"
)

// Provider identifies a model backend.
type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderOllama     Provider = "ollama"
	ProviderAnthropic  Provider = "anthropic"
	ProviderOpenAI     Provider = "openai"
)

// ProviderConfig carries what is needed to construct a backend client.
type ProviderConfig struct {
	Provider Provider
	APIKey   string
	// BaseURL overrides the backend endpoint. For Ollama it is the server
	// root (without /v1).
	BaseURL string
}

// ParseProvider maps a configuration string to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderOpenRouter, ProviderOllama, ProviderAnthropic, ProviderOpenAI:
		return p, nil
	default:
		return "", fmt.Errorf("llm: unknown provider %q", s)
	}
}

// SelectProvider chooses a backend when none is configured explicitly:
// OpenRouter when its key is present, otherwise a local Ollama server.
func SelectProvider(explicit, openRouterKey string) (Provider, error) {
	if explicit != "" {
		return ParseProvider(explicit)
	}
	if openRouterKey != "" {
		return ProviderOpenRouter, nil
	}
	return ProviderOllama, nil
}

// NewClient constructs the client for a provider configuration.
func NewClient(cfg ProviderConfig) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenRouter:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: openrouter requires an API key")
		}
		base := cfg.BaseURL
		if base == "" {
			base = OpenRouterBaseURL
		}
		return NewOpenAICompatibleClient(base, cfg.APIKey, nil), nil
	case ProviderOllama:
		return NewOllamaClient(cfg.BaseURL), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: openai requires an API key")
		}
		return NewOpenAICompatibleClient(cfg.BaseURL, cfg.APIKey, nil), nil
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: anthropic requires an API key")
		}
		return NewAnthropicClient(cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// Factory resolves a client lazily on first use and hands the same instance
// to every subsequent caller.
type Factory struct {
	cfg    ProviderConfig
	newFn  func(ProviderConfig) (Client, error)
	once   sync.Once
	client Client
	err    error
}

// NewFactory returns a factory for cfg.
func NewFactory(cfg ProviderConfig) *Factory {
	return &Factory{cfg: cfg, newFn: NewClient}
}

// NewStaticFactory returns a factory that always yields c.
func NewStaticFactory(c Client) *Factory {
	return &Factory{newFn: func(ProviderConfig) (Client, error) { return c, nil }}
}

// Provider returns the configured provider.
func (f *Factory) Provider() Provider { return f.cfg.Provider }

// Client returns the shared client, constructing it on the first call.
func (f *Factory) Client() (Client, error) {
	f.once.Do(func() {
		f.client, f.err = f.newFn(f.cfg)
	})
	return f.client, f.err
}
