// Package llm is the LLM client external collaborator: one call in, the
// response text out. It is grounded on the repository's earlier
// one-shot "DefaultClaudeFn" pattern, re-expressed against a typed SDK
// client instead of shelling out.
package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lucasnoah/forgebot/internal/workflow"
)

// Completion is the result of a single generate call.
type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Client wraps an Anthropic API client with the module's model default and
// a per-call token cap.
type Client struct {
	api       anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewClient builds a Client. An empty apiKey relies on the SDK's default
// ANTHROPIC_API_KEY environment lookup.
func NewClient(apiKey, model string) *Client {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5)
	}
	return &Client{
		api:       anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: 4096,
	}
}

// Generate issues a single-turn message and returns the text of the
// response.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("generate: empty response")
	}
	var out string
	for _, block := range resp.Content {
		out += block.Text
	}
	return out, nil
}

// Usage adapts the client's last-known token accounting onto the
// workflow package's cost metrics type. Kept as a pure function so
// handlers can thread usage through without the client holding mutable
// per-run state.
func Usage(promptTokens, completionTokens int64) *workflow.CostMetrics {
	return &workflow.CostMetrics{
		PromptTokens:     int(promptTokens),
		CompletionTokens: int(completionTokens),
	}
}
