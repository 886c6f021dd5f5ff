package llm

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// MockResponse is one scripted model turn.
type MockResponse struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason StopReason
	Usage      TokenUsage
	Error      error
}

// MockClient replays a script of turns. Once the script runs out the final
// turn is served again, which lets tests drive a loop into its step limit.
type MockClient struct {
	mu     sync.Mutex
	script []MockResponse
	next   int
	seen   []ChatRequest
}

// NewMockClient creates a client that plays turns in order.
func NewMockClient(turns ...MockResponse) *MockClient {
	return &MockClient{script: turns}
}

// Chat records req and plays the next turn.
func (m *MockClient) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The caller keeps appending to its message slice between turns.
	req.Messages = slices.Clone(req.Messages)
	m.seen = append(m.seen, req)

	if len(m.script) == 0 {
		return nil, errors.New("mock: empty script")
	}
	turn := m.script[min(m.next, len(m.script)-1)]
	if m.next < len(m.script) {
		m.next++
	}
	if turn.Error != nil {
		return nil, turn.Error
	}

	stop := turn.StopReason
	if stop == "" {
		stop = StopEndTurn
		if len(turn.ToolCalls) > 0 {
			stop = StopToolUse
		}
	}
	return &ChatResponse{
		Content:    turn.Content,
		ToolCalls:  slices.Clone(turn.ToolCalls),
		StopReason: stop,
		Usage:      turn.Usage,
	}, nil
}

// Calls returns a copy of every request received so far.
func (m *MockClient) Calls() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.seen)
}

// Reset rewinds the script and forgets recorded requests.
func (m *MockClient) Reset() {
	m.mu.Lock()
	m.next, m.seen = 0, nil
	m.mu.Unlock()
}
