// Package tools implements the tool contract and dispatch registry used by the
// agent loop.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/lucrnz/ai-movies-rec-app/internal/llm"
)

// Registry holds tools in registration order and dispatches calls to them.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any tool previously registered under the
// same name.
func (r *Registry) Register(t Tool) {
	name := t.Definition().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Execute dispatches a tool call. Unknown tools, unparseable arguments and
// executor errors all come back as soft failures so the run can continue.
func (r *Registry) Execute(ctx context.Context, rec *CallRecord, call llm.ToolCall) Result {
	t, ok := r.Lookup(call.Name)
	if !ok {
		return Fail(fmt.Sprintf("Unknown tool %q.", call.Name))
	}
	if msg, bad := call.Input["_error"].(string); bad {
		return Fail(msg)
	}

	res, err := t.Execute(ctx, rec, call.Input)
	if err != nil {
		return Fail(err.Error())
	}
	return res
}

// Definitions returns the definitions of all registered tools in registration
// order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}
