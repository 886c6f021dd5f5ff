package recommend

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/lucrnz/ai-movies-rec-app/internal/catalog"
	"github.com/lucrnz/ai-movies-rec-app/internal/tools"
)

// ---------- policy ----------

func TestPolicyQuotas(t *testing.T) {
	tests := []struct {
		policy Policy
		want   int
	}{
		{DefaultPolicy(), 10},
		{Policy{TargetCount: 5, SearchMultiplier: 1.7}, 8},
		{Policy{TargetCount: 10, SearchMultiplier: 1.7}, 17},
		{Policy{TargetCount: 10, SearchMultiplier: 1.5}, 15},
		{Policy{TargetCount: 3, SearchMultiplier: 1}, 3},
	}
	for _, tt := range tests {
		if got := tt.policy.MaxSearches(); got != tt.want {
			t.Errorf("%+v MaxSearches() = %d, want %d", tt.policy, got, tt.want)
		}
		if got := tt.policy.RecommendationCount(); got != tt.want {
			t.Errorf("%+v RecommendationCount() = %d, want %d", tt.policy, got, tt.want)
		}
	}
}

// ---------- searchMovies ----------

func TestSearchQuotaBoundary(t *testing.T) {
	cat := newFakeCatalog()
	cat.hits = 1
	tool := &SearchTool{Catalog: cat, Policy: Policy{TargetCount: 2, SearchMultiplier: 1.5, MaxConsultations: 1}}
	rec := tools.NewCallRecord()
	limit := tool.Policy.MaxSearches()

	for i := 1; i <= limit; i++ {
		res, err := tool.Execute(context.Background(), rec, map[string]any{"query": "alien"})
		if err != nil || !res.Success {
			t.Fatalf("search %d = %+v, %v; want success", i, res, err)
		}
	}

	res, _ := tool.Execute(context.Background(), rec, map[string]any{"query": "alien"})
	if res.Success {
		t.Fatalf("search %d succeeded past the limit", limit+1)
	}
	if res.Message != "You can only search for movies 3 times." {
		t.Errorf("message = %q", res.Message)
	}
	if got := rec.Count(ToolSearch); got != limit+1 {
		t.Errorf("recorded searches = %d, want %d", got, limit+1)
	}
	if len(cat.queries) != limit {
		t.Errorf("catalog searched %d times, want %d", len(cat.queries), limit)
	}
}

func TestSearchResults(t *testing.T) {
	cat := newFakeCatalog()
	cat.hits = 15
	tool := &SearchTool{Catalog: cat, Policy: DefaultPolicy()}

	res, err := tool.Execute(context.Background(), tools.NewCallRecord(), map[string]any{"query": "heat", "page": float64(2)})
	if err != nil {
		t.Fatal(err)
	}
	cands, ok := res.Results.([]catalog.Candidate)
	if !ok || len(cands) != 10 {
		t.Fatalf("Results = %#v, want 10 candidates", res.Results)
	}
	if cands[0].ID != 1 || cands[0].Title != "heat 1" {
		t.Errorf("first candidate = %+v", cands[0])
	}

	cat.hits = 0
	res, _ = tool.Execute(context.Background(), tools.NewCallRecord(), map[string]any{"query": "nothing"})
	if cands, ok := res.Results.([]catalog.Candidate); !res.Success || !ok || cands == nil || len(cands) != 0 {
		t.Errorf("empty search = %+v, want success with empty non-nil results", res)
	}
}

func TestSearchFailures(t *testing.T) {
	cat := newFakeCatalog()
	cat.searchFn = func(string) (*catalog.SearchPage, error) { return nil, errors.New("503 from upstream") }
	tool := &SearchTool{Catalog: cat, Policy: DefaultPolicy()}
	rec := tools.NewCallRecord()

	res, err := tool.Execute(context.Background(), rec, map[string]any{"query": "   "})
	if err != nil || res.Success {
		t.Fatalf("blank query = %+v, %v; want soft failure", res, err)
	}
	if rec.Len() != 0 {
		t.Errorf("invalid input was recorded: %v", rec.Names())
	}

	res, err = tool.Execute(context.Background(), rec, map[string]any{"query": "alien"})
	if err != nil || res.Success || !strings.Contains(res.Message, "503 from upstream") {
		t.Errorf("catalog error = %+v, %v; want soft failure mentioning the cause", res, err)
	}
}

// ---------- consultMovieRecommendations ----------

func TestConsult(t *testing.T) {
	oracle := &fakeOracle{text: "1. Moon (2009) - a lonely clone questions who he is."}
	tool := &ConsultTool{Oracle: oracle, Policy: DefaultPolicy()}
	rec := tools.NewCallRecord()
	input := map[string]any{"movieCriteria": "existential sci-fi about identity"}

	res, _ := tool.Execute(context.Background(), rec, map[string]any{"movieCriteria": "short"})
	if res.Success || res.Message != "Movie criteria should be at least 10 characters" {
		t.Errorf("short criteria = %+v", res)
	}

	for i := 0; i < 2; i++ {
		res, err := tool.Execute(context.Background(), rec, input)
		if err != nil || !res.Success || res.Message != oracle.text {
			t.Fatalf("consult %d = %+v, %v", i+1, res, err)
		}
	}
	res, _ = tool.Execute(context.Background(), rec, input)
	if res.Success || res.Message != "You can only consult movie recommendations 2 times." {
		t.Errorf("third consult = %+v", res)
	}
	if rec.Count(ToolConsult) != 2 {
		t.Errorf("recorded consults = %d, want 2", rec.Count(ToolConsult))
	}
	if len(oracle.calls) != 2 || oracle.calls[0] != 10 {
		t.Errorf("oracle calls = %v, want two requests for 10 movies", oracle.calls)
	}
}

func TestConsultOracleError(t *testing.T) {
	tool := &ConsultTool{Oracle: &fakeOracle{err: errors.New("model overloaded")}, Policy: DefaultPolicy()}
	res, err := tool.Execute(context.Background(), tools.NewCallRecord(), map[string]any{"movieCriteria": "slow burning westerns"})
	if err != nil || res.Success || !strings.Contains(res.Message, "model overloaded") {
		t.Errorf("oracle error = %+v, %v; want soft failure", res, err)
	}
}

// ---------- pickFinalAnswer ----------

func readyRecord(searches int) *tools.CallRecord {
	rec := tools.NewCallRecord()
	rec.Append(ToolConsult)
	for i := 0; i < searches; i++ {
		rec.Append(ToolSearch)
	}
	return rec
}

func TestFinalizePreconditions(t *testing.T) {
	p := DefaultPolicy()
	valid := answerInput(itemsFor(6))

	tests := []struct {
		name string
		rec  func() *tools.CallRecord
		want string
	}{
		{"not consulted", func() *tools.CallRecord {
			rec := tools.NewCallRecord()
			for i := 0; i < 6; i++ {
				rec.Append(ToolSearch)
			}
			return rec
		}, "You must consult movie recommendations before picking the final answer."},
		{"too few searches", func() *tools.CallRecord { return readyRecord(5) },
			"You must search for at least 6 different movies before picking the final answer."},
		{"already finalized", func() *tools.CallRecord {
			rec := tools.NewCallRecord()
			rec.Append(ToolFinalize)
			return rec
		}, "You can only pick the final answer once."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			published := false
			tool := &FinalizeTool{Policy: p, Publish: func([]Item) { published = true }}
			res, err := tool.Execute(context.Background(), tt.rec(), valid)
			if err != nil || res.Success || res.Message != tt.want {
				t.Errorf("Execute() = %+v, %v; want failure %q", res, err, tt.want)
			}
			if published {
				t.Error("answer published despite failure")
			}
		})
	}
}

func TestFinalizeAnswerValidation(t *testing.T) {
	short := itemsFor(6)
	short[2].Reason = "Too short."
	long := itemsFor(6)
	long[0].Reason = strings.Repeat("x", 101)
	dupTitle := itemsFor(6)
	dupTitle[4].Title = "  movie 1 "
	dupID := itemsFor(6)
	dupID[5].ID = dupID[0].ID

	tests := []struct {
		name  string
		input map[string]any
		want  string
	}{
		{"five of six", answerInput(itemsFor(5)), "You must set an array of at least 6 movies"},
		{"missing answer", map[string]any{}, "You must set an array of at least 6 movies"},
		{"short reason", answerInput(short), "answer[2]: Reason should be at least 50 characters"},
		{"long reason", answerInput(long), "answer[0]: Reason should be less than 100 characters"},
		{"duplicate title", answerInput(dupTitle), "You must set an array of unique movies. You cannot recommend the same movie twice."},
		{"duplicate id", answerInput(dupID), "You must set an array of unique movies. You cannot recommend the same movie twice."},
		{"id not a number", map[string]any{"answer": []any{map[string]any{"id": "abc"}}}, "Invalid input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := readyRecord(6)
			tool := &FinalizeTool{Policy: DefaultPolicy()}
			res, err := tool.Execute(context.Background(), rec, tt.input)
			if err != nil || res.Success || !strings.HasPrefix(res.Message, tt.want) {
				t.Errorf("Execute() = %+v, %v; want failure starting %q", res, err, tt.want)
			}
			if rec.Has(ToolFinalize) {
				t.Error("rejected answer was recorded")
			}
		})
	}
}

func TestFinalizeSucceedsOnce(t *testing.T) {
	var published [][]Item
	tool := &FinalizeTool{Policy: DefaultPolicy(), Publish: func(items []Item) { published = append(published, items) }}
	rec := readyRecord(6)
	items := itemsFor(7)

	res, err := tool.Execute(context.Background(), rec, answerInput(items))
	if err != nil || !res.Success || res.Message != "Picked the final answer successfully. Your job is done." {
		t.Fatalf("Execute() = %+v, %v", res, err)
	}
	if len(published) != 1 || len(published[0]) != 7 || published[0][3] != items[3] {
		t.Fatalf("published = %+v", published)
	}

	payloads := []map[string]any{answerInput(items), answerInput(itemsFor(1)), {}, {"answer": "garbage"}}
	for i, p := range payloads {
		res, _ := tool.Execute(context.Background(), rec, p)
		if res.Success || res.Message != "You can only pick the final answer once." {
			t.Errorf("repeat %d = %+v, want the once-only failure", i, res)
		}
	}
	if len(published) != 1 {
		t.Errorf("published %d times, want 1", len(published))
	}
}

func TestCheckAnswerRejectsInjectedDuplicates(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		n := 6 + r.IntN(6)
		items := itemsFor(n)
		if msg := CheckAnswer(items, 6); msg != "" {
			t.Fatalf("distinct answer rejected: %s", msg)
		}

		src, dst := r.IntN(n), r.IntN(n)
		for dst == src {
			dst = r.IntN(n)
		}
		if r.IntN(2) == 0 {
			items[dst].ID = items[src].ID
		} else {
			items[dst].Title = strings.ToUpper(items[src].Title) + " "
		}
		if msg := CheckAnswer(items, 6); !strings.HasPrefix(msg, "You must set an array of unique movies") {
			t.Fatalf("iteration %d: duplicate %d->%d accepted (msg %q)", i, src, dst, msg)
		}
	}
}
