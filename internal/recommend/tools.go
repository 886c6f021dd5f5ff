package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lucrnz/ai-movies-rec-app/internal/catalog"
	"github.com/lucrnz/ai-movies-rec-app/internal/llm"
	"github.com/lucrnz/ai-movies-rec-app/internal/tools"
	"github.com/lucrnz/ai-movies-rec-app/internal/validation"
)

// maxCandidates caps the search hits returned to the model.
const maxCandidates = 10

// Proposer is the oracle capability consumed by the consult tool.
type Proposer interface {
	Propose(ctx context.Context, criteria string, count int) (string, error)
}

// ---------- searchMovies ----------

type searchInput struct {
	Query string `json:"query" validate:"notblank"`
	Page  int    `json:"page" validate:"gte=0"`
}

// SearchTool looks movies up in the catalog by text.
type SearchTool struct {
	Catalog catalog.Client
	Policy  Policy
}

func (t *SearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: ToolSearch,
		Description: fmt.Sprintf(
			"Search TMDB for movies based on a text query. You can only search for movies %d times.",
			t.Policy.MaxSearches()),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Query to search for"},
				"page":  map[string]any{"type": "integer", "description": "Page number to fetch", "default": 1},
			},
			"required": []string{"query"},
		},
	}
}

// Execute records the call before checking the quota, so with a quota of n
// the n-th search is served and the (n+1)-th is refused.
func (t *SearchTool) Execute(ctx context.Context, rec *tools.CallRecord, input map[string]any) (tools.Result, error) {
	var in searchInput
	if res, ok := decodeInput(input, &in); !ok {
		return res, nil
	}
	if in.Page == 0 {
		in.Page = 1
	}

	rec.Append(ToolSearch)
	if limit := t.Policy.MaxSearches(); rec.Count(ToolSearch) > limit {
		return tools.Fail(fmt.Sprintf("You can only search for movies %d times.", limit)), nil
	}

	page, err := t.Catalog.Search(ctx, in.Query, in.Page)
	if err != nil {
		if ctx.Err() != nil {
			return tools.Result{}, ctx.Err()
		}
		return tools.Fail(fmt.Sprintf("Failed to search for movies: %v", err)), nil
	}
	return tools.Result{Success: true, Results: page.Candidates(maxCandidates)}, nil
}

// ---------- consultMovieRecommendations ----------

type consultInput struct {
	MovieCriteria string `json:"movieCriteria" validate:"min=10"`
}

// ConsultTool asks the oracle for suggestions.
type ConsultTool struct {
	Oracle Proposer
	Policy Policy
}

func (t *ConsultTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolConsult,
		Description: "Consult movie recommendations based on natural language movie criteria.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"movieCriteria": map[string]any{
					"type":        "string",
					"minLength":   10,
					"description": "Movie criteria in natural language. Example: 'I want to watch a movie about a detective solving a case.'",
				},
			},
			"required": []string{"movieCriteria"},
		},
	}
}

// Execute checks the quota before recording, so a refused consultation does
// not count.
func (t *ConsultTool) Execute(ctx context.Context, rec *tools.CallRecord, input map[string]any) (tools.Result, error) {
	var in consultInput
	if res, ok := decodeInput(input, &in); !ok {
		return res, nil
	}

	if limit := t.Policy.MaxConsultations; rec.Count(ToolConsult) >= limit {
		return tools.Fail(fmt.Sprintf("You can only consult movie recommendations %d times.", limit)), nil
	}
	rec.Append(ToolConsult)

	text, err := t.Oracle.Propose(ctx, in.MovieCriteria, t.Policy.RecommendationCount())
	if err != nil {
		if ctx.Err() != nil {
			return tools.Result{}, ctx.Err()
		}
		return tools.Fail(fmt.Sprintf("Failed to consult movie recommendations: %v", err)), nil
	}
	return tools.OK(text), nil
}

// ---------- pickFinalAnswer ----------

type finalizeInput struct {
	Answer []Item `json:"answer" validate:"dive"`
}

// FinalizeTool accepts the run's answer. It is the only way a result leaves
// a run: on success the answer is handed to Publish.
type FinalizeTool struct {
	Policy  Policy
	Publish func([]Item)
}

func (t *FinalizeTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolFinalize,
		Description: "Pick the final answer from the agent",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"answer": map[string]any{
					"type":     "array",
					"minItems": t.Policy.TargetCount,
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"id":    map[string]any{"type": "integer", "description": "TMDB movie id"},
							"title": map[string]any{"type": "string", "description": "Movie title"},
							"reason": map[string]any{
								"type":        "string",
								"description": "Reason for recommending the movie",
								"minLength":   50,
								"maxLength":   100,
							},
						},
						"required": []string{"id", "title", "reason"},
					},
				},
			},
			"required": []string{"answer"},
		},
	}
}

// Execute checks, in order: not finalized yet, oracle consulted, enough
// searches, then the answer itself.
func (t *FinalizeTool) Execute(_ context.Context, rec *tools.CallRecord, input map[string]any) (tools.Result, error) {
	target := t.Policy.TargetCount

	switch {
	case rec.Has(ToolFinalize):
		return tools.Fail("You can only pick the final answer once."), nil
	case !rec.Has(ToolConsult):
		return tools.Fail("You must consult movie recommendations before picking the final answer."), nil
	case rec.Count(ToolSearch) < target:
		return tools.Fail(fmt.Sprintf(
			"You must search for at least %d different movies before picking the final answer.", target)), nil
	}

	var in finalizeInput
	if res, ok := decodeInput(input, &in); !ok {
		return res, nil
	}
	if msg := CheckAnswer(in.Answer, target); msg != "" {
		return tools.Fail(msg), nil
	}

	rec.Append(ToolFinalize)
	if t.Publish != nil {
		t.Publish(append([]Item(nil), in.Answer...))
	}
	return tools.OK("Picked the final answer successfully. Your job is done."), nil
}

// CheckAnswer returns why answer is not an acceptable final answer of target
// movies, or "" when it is.
func CheckAnswer(answer []Item, target int) string {
	if len(answer) < target {
		return fmt.Sprintf("You must set an array of at least %d movies", target)
	}
	if err := validation.ValidateStruct(finalizeInput{Answer: answer}); err != nil {
		return validationMessage(err)
	}

	ids := make(map[int64]struct{}, len(answer))
	titles := make(map[string]struct{}, len(answer))
	for _, it := range answer {
		ids[it.ID] = struct{}{}
		titles[normalizeTitle(it.Title)] = struct{}{}
	}
	if len(ids) != len(answer) || len(titles) != len(answer) {
		return "You must set an array of unique movies. You cannot recommend the same movie twice."
	}
	return ""
}

// ---------- input decoding ----------

var inputMessages = map[string]string{
	"movieCriteria.min": "Movie criteria should be at least 10 characters",
	"reason.min":        "Reason should be at least 50 characters",
	"reason.max":        "Reason should be less than 100 characters",
}

// decodeInput converts the model's arguments into dst and validates them. On
// failure it returns the result to hand back to the model.
func decodeInput(input map[string]any, dst any) (tools.Result, bool) {
	raw, err := json.Marshal(input)
	if err != nil {
		return tools.Fail(fmt.Sprintf("Invalid input: %v", err)), false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return tools.Fail(fmt.Sprintf("Invalid input: %v", err)), false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		return tools.Fail(validationMessage(err)), false
	}
	return tools.Result{}, true
}

func validationMessage(err error) string {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return "Invalid input: " + err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		prefix, name := "", fe.Field
		if i := strings.LastIndex(fe.Field, "."); i >= 0 {
			prefix, name = fe.Field[:i]+": ", fe.Field[i+1:]
		}
		if msg, ok := inputMessages[name+"."+fe.Tag]; ok {
			msgs = append(msgs, prefix+msg)
			continue
		}
		msgs = append(msgs, fe.Message)
	}
	return strings.Join(msgs, "; ")
}
