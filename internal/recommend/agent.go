package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lucrnz/ai-movies-rec-app/internal/catalog"
	"github.com/lucrnz/ai-movies-rec-app/internal/events"
	"github.com/lucrnz/ai-movies-rec-app/internal/expr"
	"github.com/lucrnz/ai-movies-rec-app/internal/llm"
	"github.com/lucrnz/ai-movies-rec-app/internal/loop"
	"github.com/lucrnz/ai-movies-rec-app/internal/tools"
)

// ErrNoAnswer is returned when a run ends without a successful finalize
// call, which only happens with a custom stop condition.
var ErrNoAnswer = errors.New("recommend: run finished without a final answer")

// StrictStopCondition is a stop condition that restates the finalize
// preconditions. Finalize already enforces them, so it stops at the same
// point as the default.
const StrictStopCondition = `count("pickFinalAnswer") > 0 && count("consultMovieRecommendations") > 0 && count("searchMovies") >= target`

// AgentConfig configures an Agent.
type AgentConfig struct {
	Client  llm.Client
	Catalog catalog.Client
	// Oracle defaults to an Oracle on Client with RecommenderModel.
	Oracle           Proposer
	AgentModel       string
	RecommenderModel string
	Policy           Policy
	// StopCondition is an expression over the call record; empty stops as
	// soon as the final answer is picked.
	StopCondition string
	MaxSteps      int
	MaxTokens     int
	TokenBudget   int
	Logger        *slog.Logger
}

// Agent runs recommendation requests. It is safe for concurrent use; every
// run gets its own tool set and call record.
type Agent struct {
	cfg    AgentConfig
	oracle Proposer
	stop   loop.StopWhen
	logger *slog.Logger
}

// NewAgent validates cfg and compiles its stop condition.
func NewAgent(cfg AgentConfig) (*Agent, error) {
	if cfg.Client == nil {
		return nil, errors.New("recommend: model client is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("recommend: catalog client is required")
	}
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.Policy.TargetCount < 1 || cfg.Policy.MaxConsultations < 1 || cfg.Policy.MaxSearches() < cfg.Policy.TargetCount {
		return nil, fmt.Errorf("recommend: invalid policy %+v", cfg.Policy)
	}

	a := &Agent{cfg: cfg, oracle: cfg.Oracle, logger: cfg.Logger}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.oracle == nil {
		a.oracle = NewOracle(cfg.Client, cfg.RecommenderModel)
	}

	a.stop = loop.ToolRecorded(ToolFinalize)
	if cfg.StopCondition != "" {
		stop, err := a.compileStop(cfg.StopCondition)
		if err != nil {
			return nil, err
		}
		a.stop = stop
	}
	return a, nil
}

func (a *Agent) compileStop(source string) (loop.StopWhen, error) {
	compiled, err := expr.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("recommend: stop condition: %w", err)
	}
	target := a.cfg.Policy.TargetCount
	return func(rec *tools.CallRecord) bool {
		ok, err := expr.EvalBool(compiled, expr.NewEnv(rec.Names(), target))
		if err != nil {
			a.logger.Warn("stop condition evaluation failed", "error", err)
			return false
		}
		return ok
	}, nil
}

// Policy returns the agent's quotas.
func (a *Agent) Policy() Policy { return a.cfg.Policy }

// SystemPrompt is the agent's instruction for a target of n movies.
func SystemPrompt(n int) string {
	return strings.Join([]string{
		"You are a movie recommendation assistant.",
		"You are given a movie criteria and you need to recommend movies that match that criteria.",
		"Instructions:",
		"1. Use the consultMovieRecommendations tool to get recommendations based on the user-provided movie criteria.",
		"2. Use the searchMovies tool to find the movies that match the recommendations, by using the title of the movie.",
		"Final answer:",
		fmt.Sprintf("You must return an array of %d movies, each should include it's title, the movie id (exact match), and a reason for recommending the movie.", n),
	}, "\n")
}

// Tools builds a fresh tool set whose finalize tool hands its answer to
// publish.
func (a *Agent) Tools(publish func([]Item)) *tools.Registry {
	p := a.cfg.Policy
	return tools.NewRegistry(
		&ConsultTool{Oracle: a.oracle, Policy: p},
		&SearchTool{Catalog: a.cfg.Catalog, Policy: p},
		&FinalizeTool{Policy: p, Publish: publish},
	)
}

// Recommend runs the agent on criteria and returns the finalized answer.
// Tool activity is reported to emitter as it happens.
func (a *Agent) Recommend(ctx context.Context, runID, criteria string, emitter events.Emitter) ([]Item, *loop.Response, error) {
	var answer []Item
	registry := a.Tools(func(items []Item) { answer = items })

	resp, err := loop.Run(ctx, loop.Invocation{
		RunID:       runID,
		Model:       a.cfg.AgentModel,
		System:      SystemPrompt(a.cfg.Policy.TargetCount),
		Input:       criteria,
		MaxSteps:    a.cfg.MaxSteps,
		MaxTokens:   a.cfg.MaxTokens,
		TokenBudget: a.cfg.TokenBudget,
	}, a.cfg.Client, registry, a.stop, emitter)
	if err != nil {
		return nil, resp, err
	}
	if answer == nil {
		return nil, resp, ErrNoAnswer
	}
	return answer, resp, nil
}
