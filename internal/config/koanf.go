package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/lucrnz/ai-movies-rec-app/internal/llm"
)

// DefaultConfigPaths lists the files searched, in order, when no path is
// given explicitly.
var DefaultConfigPaths = []string{
	"movierec.yaml",
	"movierec.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "MOVIEREC_CONFIG"

// envPrefix marks generic overrides; "__" separates nesting levels, e.g.
// MOVIEREC_SERVER__ADDR sets server.addr.
const envPrefix = "movierec_"

// envMappings keeps the variable names the service has always accepted.
var envMappings = map[string]string{
	"tmdb_api_key":                 "catalog.api_key",
	"openrouter_api_key":           "llm.openrouter.api_key",
	"openrouter_model_agent":       "llm.openrouter.agent_model",
	"openrouter_model_recommender": "llm.openrouter.recommender_model",
	"ollama_url":                   "llm.ollama.url",
	"ollama_model_agent":           "llm.ollama.agent_model",
	"ollama_model_recommender":     "llm.ollama.recommender_model",
	"anthropic_api_key":            "llm.anthropic.api_key",
	"openai_api_key":               "llm.openai.api_key",
	"openai_base_url":              "llm.openai.url",
	"turnstile_secret_key":         "verify.turnstile_secret",
	"movierec_provider":            "llm.provider",
	"movierec_addr":                "server.addr",
	"movierec_log_level":           "log.level",
	"movierec_log_format":          "log.format",
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			StreamTimeout:     5 * time.Minute,
			CORSOrigins:       []string{"*"},
			RateLimit:         10,
			RateWindow:        time.Minute,
		},
		LLM: LLMConfig{
			OpenRouter: ModelPair{
				URL:              llm.OpenRouterBaseURL,
				AgentModel:       "openai/gpt-5-nano",
				RecommenderModel: "openai/gpt-oss-120b",
			},
			Ollama: ModelPair{
				URL:              llm.DefaultOllamaURL,
				AgentModel:       "gemma3:4b",
				RecommenderModel: "gpt-oss:20b",
			},
			Anthropic: ModelPair{
				AgentModel:       "claude-haiku-4-5",
				RecommenderModel: "claude-sonnet-4-5",
			},
			OpenAI: ModelPair{
				AgentModel:       "gpt-5-nano",
				RecommenderModel: "gpt-5-mini",
			},
			MaxSteps:  40,
			MaxTokens: 4096,
		},
		Catalog: CatalogConfig{
			BaseURL:       "https://api.themoviedb.org/3",
			Timeout:       10 * time.Second,
			CacheTTL:      6 * time.Hour,
			CacheMaxItems: 10_000,
			Breaker: BreakerConfig{
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      30 * time.Second,
				MinRequests:  5,
				FailureRatio: 0.6,
			},
		},
		Agent: AgentConfig{
			TargetCount:       6,
			SearchMultiplier:  1.7,
			MaxConsultations:  2,
			EnrichConcurrency: 4,
		},
		Verify: VerifyConfig{
			Endpoint: "https://challenges.cloudflare.com/turnstile/v0/siteverify",
			Timeout:  10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration. path may be empty, in which case
// MOVIEREC_CONFIG and DefaultConfigPaths are consulted; a missing default file
// is not an error, a missing explicit file is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("config file %s: %w", envPath, err)
		}
		return envPath, nil
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// envTransformFunc maps an environment variable name to a koanf path. Names
// that map to nothing are dropped.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	if key == strings.TrimSuffix(envPrefix, "_")+"_config" {
		return ""
	}
	if rest, ok := strings.CutPrefix(key, envPrefix); ok && rest != "" {
		return strings.ReplaceAll(rest, "__", ".")
	}
	return ""
}
