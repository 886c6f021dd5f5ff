package llm

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBudgetExhausted is wrapped by Budget.Check once a run has spent its
// token allowance.
var ErrBudgetExhausted = errors.New("llm: token budget exhausted")

// Budget accumulates the token usage of one agent run. A zero limit never
// runs out.
type Budget struct {
	mu    sync.Mutex
	limit int
	spent TokenUsage
}

// NewBudget returns a budget allowing limit input plus output tokens.
func NewBudget(limit int) *Budget {
	return &Budget{limit: limit}
}

// Charge adds the usage reported for one model turn.
func (b *Budget) Charge(u TokenUsage) {
	b.mu.Lock()
	b.spent.InputTokens += u.InputTokens
	b.spent.OutputTokens += u.OutputTokens
	b.spent.CacheRead += u.CacheRead
	b.spent.CacheWrite += u.CacheWrite
	b.mu.Unlock()
}

// Check reports whether another model turn may start.
func (b *Budget) Check() error {
	if b.limit <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if used := b.spent.Total(); used >= b.limit {
		return fmt.Errorf("%w: spent %d of %d", ErrBudgetExhausted, used, b.limit)
	}
	return nil
}

// Spent returns the usage charged so far.
func (b *Budget) Spent() TokenUsage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}

// Remaining is the allowance left, or -1 when unlimited.
func (b *Budget) Remaining() int {
	if b.limit <= 0 {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return max(b.limit-b.spent.Total(), 0)
}
