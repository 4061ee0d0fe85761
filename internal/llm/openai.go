package llm

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openaiProvider sends the drift prompt through Chat Completions in JSON mode.
type openaiProvider struct {
	client openai.Client
	model  string
}

func newOpenAIProvider(model, apiKey string) Provider {
	return &openaiProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// openaiParams builds the request. JSON object mode keeps the reply free of
// prose around the judgment; the prompt names JSON, as that mode requires.
func openaiParams(model, systemPrompt, userPrompt string, maxTokens int, temperature float64) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(model),
		MaxCompletionTokens: openai.Int(int64(tokenBudget(maxTokens))),
		Temperature:         openai.Float(temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}
}

func (p *openaiProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openaiParams(p.model, systemPrompt, userPrompt, maxTokens, temperature))
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", p.model, err)
	}
	parts := make([]string, 0, 1)
	if len(resp.Choices) > 0 {
		parts = append(parts, resp.Choices[0].Message.Content)
	}
	return joinText("openai", p.model, parts)
}
