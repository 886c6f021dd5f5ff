// Package config loads the service configuration from defaults, an optional
// YAML file and the environment, in increasing order of precedence.
package config

import (
	"fmt"
	"time"

	"github.com/lucrnz/ai-movies-rec-app/internal/llm"
	"github.com/lucrnz/ai-movies-rec-app/internal/validation"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server" yaml:"server"`
	LLM     LLMConfig     `koanf:"llm" yaml:"llm"`
	Catalog CatalogConfig `koanf:"catalog" yaml:"catalog"`
	Agent   AgentConfig   `koanf:"agent" yaml:"agent"`
	Verify  VerifyConfig  `koanf:"verify" yaml:"verify"`
	Log     LogConfig     `koanf:"log" yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string        `koanf:"addr" yaml:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
	// StreamTimeout bounds one recommendation request end to end.
	StreamTimeout time.Duration `koanf:"stream_timeout" yaml:"stream_timeout" validate:"gt=0"`
	CORSOrigins   []string      `koanf:"cors_origins" yaml:"cors_origins"`
	// RateLimit is the number of recommendation requests allowed per IP per
	// RateWindow. Zero disables limiting.
	RateLimit  int           `koanf:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	RateWindow time.Duration `koanf:"rate_window" yaml:"rate_window"`
}

// ModelPair names the models used for the agent and the oracle.
type ModelPair struct {
	APIKey           string `koanf:"api_key" yaml:"api_key"`
	URL              string `koanf:"url" yaml:"url"`
	AgentModel       string `koanf:"agent_model" yaml:"agent_model"`
	RecommenderModel string `koanf:"recommender_model" yaml:"recommender_model"`
}

// LLMConfig configures the model backends.
type LLMConfig struct {
	// Provider forces a backend; empty selects OpenRouter when its key is set
	// and Ollama otherwise.
	Provider    string    `koanf:"provider" yaml:"provider" validate:"omitempty,oneof=openrouter ollama anthropic openai"`
	OpenRouter  ModelPair `koanf:"openrouter" yaml:"openrouter"`
	Ollama      ModelPair `koanf:"ollama" yaml:"ollama"`
	Anthropic   ModelPair `koanf:"anthropic" yaml:"anthropic"`
	OpenAI      ModelPair `koanf:"openai" yaml:"openai"`
	MaxSteps    int       `koanf:"max_steps" yaml:"max_steps" validate:"gte=1"`
	MaxTokens   int       `koanf:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	TokenBudget int       `koanf:"token_budget" yaml:"token_budget" validate:"gte=0"`
}

// BreakerConfig configures the catalog circuit breaker.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests" yaml:"max_requests"`
	Interval     time.Duration `koanf:"interval" yaml:"interval"`
	Timeout      time.Duration `koanf:"timeout" yaml:"timeout"`
	MinRequests  uint32        `koanf:"min_requests" yaml:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" yaml:"failure_ratio" validate:"gte=0,lte=1"`
}

// CatalogConfig configures the movie catalog client.
type CatalogConfig struct {
	APIKey        string        `koanf:"api_key" yaml:"api_key"`
	BaseURL       string        `koanf:"base_url" yaml:"base_url" validate:"required,url"`
	Timeout       time.Duration `koanf:"timeout" yaml:"timeout"`
	CacheTTL      time.Duration `koanf:"cache_ttl" yaml:"cache_ttl"`
	CacheMaxItems int64         `koanf:"cache_max_items" yaml:"cache_max_items" validate:"gte=0"`
	Breaker       BreakerConfig `koanf:"breaker" yaml:"breaker"`
}

// AgentConfig configures the recommendation agent's policy.
type AgentConfig struct {
	TargetCount      int     `koanf:"target_count" yaml:"target_count" validate:"gte=1,lte=20"`
	SearchMultiplier float64 `koanf:"search_multiplier" yaml:"search_multiplier" validate:"gte=1"`
	MaxConsultations int     `koanf:"max_consultations" yaml:"max_consultations" validate:"gte=1"`
	// StopCondition is an optional expression replacing the default stop
	// predicate (finalize recorded).
	StopCondition     string `koanf:"stop_condition" yaml:"stop_condition"`
	EnrichConcurrency int    `koanf:"enrich_concurrency" yaml:"enrich_concurrency" validate:"gte=1"`
}

// VerifyConfig configures bot verification. An empty secret disables it.
type VerifyConfig struct {
	TurnstileSecret string        `koanf:"turnstile_secret" yaml:"turnstile_secret"`
	Endpoint        string        `koanf:"endpoint" yaml:"endpoint" validate:"required,url"`
	Timeout         time.Duration `koanf:"timeout" yaml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `koanf:"format" yaml:"format" validate:"oneof=json text"`
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Provider resolves the model backend.
func (c *Config) Provider() (llm.Provider, error) {
	return llm.SelectProvider(c.LLM.Provider, c.LLM.OpenRouter.APIKey)
}

// Backend returns the client configuration and model names for provider p.
func (c *Config) Backend(p llm.Provider) (llm.ProviderConfig, ModelPair) {
	var pair ModelPair
	switch p {
	case llm.ProviderOpenRouter:
		pair = c.LLM.OpenRouter
	case llm.ProviderOllama:
		pair = c.LLM.Ollama
	case llm.ProviderAnthropic:
		pair = c.LLM.Anthropic
	case llm.ProviderOpenAI:
		pair = c.LLM.OpenAI
	}
	return llm.ProviderConfig{Provider: p, APIKey: pair.APIKey, BaseURL: pair.URL}, pair
}

// Secrets returns every configured credential, for log redaction.
func (c *Config) Secrets() []string {
	var out []string
	for _, s := range []string{
		c.Catalog.APIKey,
		c.LLM.OpenRouter.APIKey,
		c.LLM.Anthropic.APIKey,
		c.LLM.OpenAI.APIKey,
		c.Verify.TurnstileSecret,
	} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Redacted returns a copy with credentials masked.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = "***"
		}
	}
	mask(&c.Catalog.APIKey)
	mask(&c.LLM.OpenRouter.APIKey)
	mask(&c.LLM.Anthropic.APIKey)
	mask(&c.LLM.OpenAI.APIKey)
	mask(&c.Verify.TurnstileSecret)
	return c
}
