// Package events defines the lifecycle notifications an agent run emits and the
// plumbing to fan them out to observers.
package events

import (
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/lucrnz/ai-movies-rec-app/internal/tools"
)

// Type represents the kind of event.
type Type string

const (
	RunStarted   Type = "run.started"
	ToolCalled   Type = "tool.called"
	ToolResult   Type = "tool.result"
	RunCompleted Type = "run.completed"
	RunFailed    Type = "run.failed"
)

// Event is a structured notification emitted by an agent run. Tool events
// carry the tool name and its parameters; ToolResult events also carry the
// result the model received.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Tool      string         `json:"tool,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Result    *tools.Result  `json:"result,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// New creates a new event with the given type and run ID.
func New(eventType Type, runID string) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
	}
}

// WithTool sets the tool name and parameters and returns the event for
// chaining.
func (e *Event) WithTool(name string, params map[string]any) *Event {
	e.Tool = name
	e.Params = params
	return e
}

// WithResult attaches a tool result.
func (e *Event) WithResult(res tools.Result) *Event {
	e.Result = &res
	return e
}

// WithData adds data fields to the event and returns it for chaining.
func (e *Event) WithData(key string, value any) *Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// JSON returns the event serialized as JSON.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// Emitter is the interface for event consumers. Emit is called synchronously
// from the run's goroutine, so slow emitters slow the run.
type Emitter interface {
	Emit(event *Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(*Event)

// Emit calls f(event).
func (f EmitterFunc) Emit(event *Event) { f(event) }

// NoopEmitter discards all events.
type NoopEmitter struct{}

// Emit implements Emitter by discarding the event.
func (NoopEmitter) Emit(*Event) {}

// Multi fans events out to every non-nil emitter in order.
func Multi(emitters ...Emitter) Emitter {
	out := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return multi(out)
}

type multi []Emitter

func (m multi) Emit(event *Event) {
	for _, e := range m {
		e.Emit(event)
	}
}

// CollectorEmitter collects events in memory for testing.
type CollectorEmitter struct {
	mu     sync.Mutex
	events []*Event
}

// Emit appends the event to the collector.
func (c *CollectorEmitter) Emit(event *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns a copy of the collected events.
func (c *CollectorEmitter) Events() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Event(nil), c.events...)
}

// Types returns the collected event types in order.
func (c *CollectorEmitter) Types() []Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Type, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}
