// Package loop drives a tool-calling model through repeated
// decide/execute/observe steps until a stop predicate over the run's call
// record holds.
package loop

import (
	"errors"
	"time"

	"github.com/lucrnz/ai-movies-rec-app/internal/llm"
	"github.com/lucrnz/ai-movies-rec-app/internal/tools"
)

// DefaultMaxSteps bounds the number of model turns when an Invocation does not
// set MaxSteps.
const DefaultMaxSteps = 40

var (
	// ErrStepLimit is returned when the model exhausts its turns without the
	// stop predicate becoming true.
	ErrStepLimit = errors.New("loop: step limit reached before the run finished")
	// ErrTokenBudget is returned when the run's token budget is exhausted.
	ErrTokenBudget = errors.New("loop: token budget exhausted")
)

// State is the loop's lifecycle state.
type State string

const (
	StateRunning    State = "running"
	StateTerminated State = "terminated"
)

// StopWhen decides from the call record alone whether the run is over. It is
// evaluated after every tool call and must not have side effects.
type StopWhen func(rec *tools.CallRecord) bool

// ToolRecorded stops as soon as the named tool has been recorded once.
func ToolRecorded(name string) StopWhen {
	return func(rec *tools.CallRecord) bool {
		return rec.Has(name)
	}
}

// All stops when every predicate holds.
func All(preds ...StopWhen) StopWhen {
	return func(rec *tools.CallRecord) bool {
		for _, p := range preds {
			if !p(rec) {
				return false
			}
		}
		return len(preds) > 0
	}
}

// ToolCallRecord is an audit record of a single tool invocation.
type ToolCallRecord struct {
	ID       string         `json:"id"`
	ToolName string         `json:"tool_name"`
	Input    map[string]any `json:"input"`
	Result   tools.Result   `json:"result"`
	Duration time.Duration  `json:"duration"`
}

// Invocation represents a single agent run request.
type Invocation struct {
	RunID       string   `json:"run_id"`
	Model       string   `json:"model"`
	System      string   `json:"system"`
	Input       string   `json:"input"`
	MaxSteps    int      `json:"max_steps"`
	MaxTokens   int      `json:"max_tokens"`
	TokenBudget int      `json:"token_budget"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Response summarizes a finished run.
type Response struct {
	State     State            `json:"state"`
	Calls     []string         `json:"calls"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
	Tokens    llm.TokenUsage   `json:"tokens"`
	Steps     int              `json:"steps"`
	Duration  time.Duration    `json:"duration"`
}
