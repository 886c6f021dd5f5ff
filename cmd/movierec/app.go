package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/lucrnz/ai-movies-rec-app/internal/catalog"
	"github.com/lucrnz/ai-movies-rec-app/internal/config"
	"github.com/lucrnz/ai-movies-rec-app/internal/llm"
	"github.com/lucrnz/ai-movies-rec-app/internal/recommend"
	"github.com/lucrnz/ai-movies-rec-app/internal/telemetry"
	"github.com/lucrnz/ai-movies-rec-app/internal/verify"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	agent    *recommend.Agent
	enricher *recommend.Enricher
	verifier *verify.Turnstile
	cache    *catalog.Cached
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newApp loads configuration and builds the agent, the catalog stack and the
// verifier. Logs go to stderr so stdout stays free for command output and the
// MCP transport.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := telemetry.NewLogger(os.Stderr, telemetry.LogOptions{
		Level:   telemetry.ParseLevel(cfg.Log.Level),
		Format:  cfg.Log.Format,
		Secrets: cfg.Secrets(),
	})
	metrics := telemetry.NewMetrics()

	if cfg.Catalog.APIKey == "" {
		return nil, fmt.Errorf("catalog API key is not configured (set TMDB_API_KEY)")
	}

	provider, err := cfg.Provider()
	if err != nil {
		return nil, err
	}
	providerCfg, models := cfg.Backend(provider)
	client, err := llm.NewFactory(providerCfg).Client()
	if err != nil {
		return nil, err
	}
	logger.Info("model backend selected",
		"provider", provider,
		"agent_model", models.AgentModel,
		"recommender_model", models.RecommenderModel,
	)

	tmdb := catalog.NewTMDB(cfg.Catalog.APIKey,
		catalog.WithBaseURL(cfg.Catalog.BaseURL),
		catalog.WithLogger(logger),
		catalog.WithRecorder(metrics),
		catalog.WithHTTPClient(&http.Client{Timeout: cfg.Catalog.Timeout}),
	)
	breaker := catalog.NewBreaker(tmdb, catalog.BreakerSettings{
		Name:         "tmdb",
		MaxRequests:  cfg.Catalog.Breaker.MaxRequests,
		Interval:     cfg.Catalog.Breaker.Interval,
		Timeout:      cfg.Catalog.Breaker.Timeout,
		MinRequests:  cfg.Catalog.Breaker.MinRequests,
		FailureRatio: cfg.Catalog.Breaker.FailureRatio,
	}, logger, metrics)
	cached, err := catalog.NewCached(breaker, cfg.Catalog.CacheTTL, cfg.Catalog.CacheMaxItems)
	if err != nil {
		return nil, err
	}

	agent, err := recommend.NewAgent(recommend.AgentConfig{
		Client:           client,
		Catalog:          cached,
		AgentModel:       models.AgentModel,
		RecommenderModel: models.RecommenderModel,
		Policy: recommend.Policy{
			TargetCount:      cfg.Agent.TargetCount,
			SearchMultiplier: cfg.Agent.SearchMultiplier,
			MaxConsultations: cfg.Agent.MaxConsultations,
		},
		StopCondition: cfg.Agent.StopCondition,
		MaxSteps:      cfg.LLM.MaxSteps,
		MaxTokens:     cfg.LLM.MaxTokens,
		TokenBudget:   cfg.LLM.TokenBudget,
		Logger:        logger,
	})
	if err != nil {
		cached.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		agent:    agent,
		enricher: recommend.NewEnricher(cached, cfg.Agent.EnrichConcurrency, logger, metrics),
		verifier: verify.NewTurnstile(cfg.Verify.TurnstileSecret, cfg.Verify.Endpoint, cfg.Verify.Timeout, logger),
		cache:    cached,
	}, nil
}

func (a *app) Close() {
	a.cache.Close()
}
