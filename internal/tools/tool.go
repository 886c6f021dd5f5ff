package tools

import (
	"context"

	"github.com/lucrnz/ai-movies-rec-app/internal/llm"
)

// Tool is a capability exposed to the model. Execute receives the call record
// of the run it belongs to; it must not keep a reference to it after
// returning.
type Tool interface {
	Definition() llm.ToolDefinition
	Execute(ctx context.Context, rec *CallRecord, input map[string]any) (Result, error)
}

// Result is what the model sees after a tool call. A failed precondition is a
// Result with Success false, not a Go error.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Results any    `json:"results,omitempty"`
}

// OK builds a successful result carrying a message.
func OK(msg string) Result {
	return Result{Success: true, Message: msg}
}

// Fail builds a soft failure the model can react to.
func Fail(msg string) Result {
	return Result{Success: false, Message: msg}
}
