package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/lucrnz/ai-movies-rec-app/internal/events"
	"github.com/lucrnz/ai-movies-rec-app/internal/llm"
	"github.com/lucrnz/ai-movies-rec-app/internal/tools"
)

const nudge = "You must respond by calling one of the available tools."

// Run executes one agent run. It owns a fresh call record for the duration of
// the run, forces a tool call on every model turn and stops executing tools as
// soon as stop reports true. A failing model call aborts the run; failing
// tools do not.
func Run(ctx context.Context, inv Invocation, client llm.Client, registry *tools.Registry, stop StopWhen, emitter events.Emitter) (*Response, error) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r := &run{
		inv:      inv,
		client:   client,
		registry: registry,
		stop:     stop,
		emitter:  emitter,
		rec:      tools.NewCallRecord(),
		budget:   llm.NewBudget(inv.TokenBudget),
		state:    StateRunning,
		start:    time.Now(),
	}

	emitter.Emit(events.New(events.RunStarted, inv.RunID).WithData("model", inv.Model))

	resp, err := r.execute(ctx)
	if err != nil {
		emitter.Emit(events.New(events.RunFailed, inv.RunID).
			WithData("error", err.Error()).
			WithData("steps", r.steps))
		return resp, err
	}

	emitter.Emit(events.New(events.RunCompleted, inv.RunID).
		WithData("steps", resp.Steps).
		WithData("tokens", resp.Tokens.Total()).
		WithData("duration_ms", resp.Duration.Milliseconds()))
	return resp, nil
}

type run struct {
	inv      Invocation
	client   llm.Client
	registry *tools.Registry
	stop     StopWhen
	emitter  events.Emitter

	rec     *tools.CallRecord
	budget  *llm.Budget
	state   State
	steps   int
	records []ToolCallRecord
	start   time.Time
}

func (r *run) execute(ctx context.Context) (*Response, error) {
	maxSteps := r.inv.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	maxTokens := r.inv.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	messages := []llm.Message{{Role: llm.RoleUser, Content: r.inv.Input}}
	defs := r.registry.Definitions()

	for r.state == StateRunning {
		if r.steps >= maxSteps {
			return r.response(), ErrStepLimit
		}
		if err := ctx.Err(); err != nil {
			return r.response(), fmt.Errorf("loop: step %d: %w", r.steps+1, err)
		}
		if err := r.budget.Check(); err != nil {
			return r.response(), fmt.Errorf("%w: %v", ErrTokenBudget, err)
		}
		r.steps++

		resp, err := r.client.Chat(ctx, llm.ChatRequest{
			Model:       r.inv.Model,
			System:      r.inv.System,
			Messages:    messages,
			Tools:       defs,
			ToolChoice:  llm.ToolChoiceRequired,
			MaxTokens:   maxTokens,
			Temperature: r.inv.Temperature,
		})
		if err != nil {
			return r.response(), fmt.Errorf("loop: step %d: %w", r.steps, err)
		}
		r.budget.Charge(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			// Some backends ignore forced tool choice; push the model back.
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
				llm.Message{Role: llm.RoleUser, Content: nudge},
			)
			continue
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result := r.call(ctx, call)
			messages = append(messages, llm.Message{Role: llm.RoleUser, ToolResult: &result})
			if r.stop(r.rec) {
				r.state = StateTerminated
				break
			}
		}
	}

	return r.response(), nil
}

// call executes one tool call and notifies the emitter before and after.
func (r *run) call(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	r.emitter.Emit(events.New(events.ToolCalled, r.inv.RunID).WithTool(call.Name, call.Input))

	started := time.Now()
	res := r.registry.Execute(ctx, r.rec, call)

	r.records = append(r.records, ToolCallRecord{
		ID:       call.ID,
		ToolName: call.Name,
		Input:    call.Input,
		Result:   res,
		Duration: time.Since(started),
	})
	r.emitter.Emit(events.New(events.ToolResult, r.inv.RunID).WithTool(call.Name, call.Input).WithResult(res))

	content, err := json.Marshal(res)
	if err != nil {
		content = []byte(fmt.Sprintf(`{"success":false,"message":%q}`, err.Error()))
	}
	return llm.ToolResult{
		ToolUseID: call.ID,
		Content:   string(content),
		IsError:   !res.Success,
	}
}

func (r *run) response() *Response {
	return &Response{
		State:     r.state,
		Calls:     r.rec.Names(),
		ToolCalls: r.records,
		Tokens:    r.budget.Spent(),
		Steps:     r.steps,
		Duration:  time.Since(r.start),
	}
}
