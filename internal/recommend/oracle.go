package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lucrnz/ai-movies-rec-app/internal/llm"
)

// Oracle asks a language model for free-text movie suggestions. Its answer is
// prose; grounding titles to catalog ids is left to the agent's searches.
type Oracle struct {
	client    llm.Client
	model     string
	maxTokens int
}

// NewOracle creates an oracle backed by model on client.
func NewOracle(client llm.Client, model string) *Oracle {
	return &Oracle{client: client, model: model, maxTokens: 2048}
}

// OraclePrompt is the system instruction for a request of count movies.
func OraclePrompt(count int) string {
	return strings.Join([]string{
		"You are a movie recommendation export. You should help the user find movies that match the given criteria.",
		fmt.Sprintf("You should recommend %d movies.", count),
		"You should always give a reason why you are recommending the movie.",
		"You never recommend the same movie twice.",
		"Be brief and to the point. Do not use markdown formatting or tables. Do not ask follow up questions.",
	}, "\n")
}

// Propose returns the model's suggestions for criteria.
func (o *Oracle) Propose(ctx context.Context, criteria string, count int) (string, error) {
	resp, err := o.client.Chat(ctx, llm.ChatRequest{
		Model:      o.model,
		System:     OraclePrompt(count),
		Messages:   []llm.Message{{Role: llm.RoleUser, Content: criteria}},
		ToolChoice: llm.ToolChoiceAuto,
		MaxTokens:  o.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("oracle: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", errors.New("oracle: empty response")
	}
	return text, nil
}
