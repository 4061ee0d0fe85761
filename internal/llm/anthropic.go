package llm

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicProvider sends the drift prompt to Claude through the Messages API.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(model, apiKey string) Provider {
	return &anthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// anthropicParams builds the request. The system prompt carries the schema
// and thinking directive; the user turn carries signals and feedback.
func anthropicParams(model, systemPrompt, userPrompt string, maxTokens int, temperature float64) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(tokenBudget(maxTokens)),
		Temperature: anthropic.Float(temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
}

func (p *anthropicProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropicParams(p.model, systemPrompt, userPrompt, maxTokens, temperature))
	if err != nil {
		return "", fmt.Errorf("anthropic %s: %w", p.model, err)
	}

	parts := make([]string, 0, len(msg.Content))
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	// A reply cut at max_tokens is still returned; the JSON check fails on it
	// and the repair pass asks again.
	return joinText("anthropic", p.model, parts)
}
