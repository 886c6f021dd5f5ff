package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lucrnz/ai-movies-rec-app/internal/catalog"
	"github.com/lucrnz/ai-movies-rec-app/internal/llm"
)

// fakeCatalog serves a fixed set of movies. Ids listed in failing return a
// transport error.
type fakeCatalog struct {
	mu       sync.Mutex
	movies   map[int64]catalog.Details
	failing  map[int64]bool
	hits     int
	searchFn func(query string) (*catalog.SearchPage, error)
	queries  []string
}

func newFakeCatalog(movies ...catalog.Details) *fakeCatalog {
	f := &fakeCatalog{movies: map[int64]catalog.Details{}, failing: map[int64]bool{}}
	for _, m := range movies {
		f.movies[m.ID] = m
	}
	return f
}

func (f *fakeCatalog) Search(_ context.Context, query string, _ int) (*catalog.SearchPage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.searchFn != nil {
		return f.searchFn(query)
	}
	page := &catalog.SearchPage{Page: 1}
	for i := 0; i < f.hits; i++ {
		page.Results = append(page.Results, catalog.Details{ID: int64(i + 1), Title: fmt.Sprintf("%s %d", query, i+1)})
	}
	return page, nil
}

func (f *fakeCatalog) Details(_ context.Context, id int64) (*catalog.Details, error) {
	if f.failing[id] {
		return nil, errors.New("upstream timeout")
	}
	d, ok := f.movies[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &d, nil
}

type fakeOracle struct {
	text  string
	err   error
	calls []int
}

func (o *fakeOracle) Propose(_ context.Context, _ string, count int) (string, error) {
	o.calls = append(o.calls, count)
	return o.text, o.err
}

func reasonFor(i int) string {
	return fmt.Sprintf("Recommended because it explores identity and memory in a fresh way #%02d", i)
}

func itemsFor(n int) []Item {
	out := make([]Item, n)
	for i := range out {
		out[i] = Item{ID: int64(100 + i), Title: fmt.Sprintf("Movie %d", i), Reason: reasonFor(i)}
	}
	return out
}

func answerInput(items []Item) map[string]any {
	list := make([]any, len(items))
	for i, it := range items {
		list[i] = map[string]any{"id": float64(it.ID), "title": it.Title, "reason": it.Reason}
	}
	return map[string]any{"answer": list}
}

func toolCall(id, name string, input map[string]any) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Input: input}
}

func strPtr(s string) *string { return &s }
