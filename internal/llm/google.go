package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	googleoption "google.golang.org/api/option"
)

// googleProvider sends the drift prompt to Gemini on the global endpoint.
// The client is opened per call so the run's context bounds the connection.
type googleProvider struct {
	apiKey string
	model  string
}

func newGoogleProvider(model, apiKey string) Provider {
	return &googleProvider{apiKey: apiKey, model: model}
}

// geminiSafety turns off the filters that otherwise cut off analyses of
// ordinary project chatter.
var geminiSafety = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
}

// configureGemini applies the drift request settings to m: JSON output, the
// system instruction, output budget and temperature.
func configureGemini(m *genai.GenerativeModel, systemPrompt string, maxTokens int, temperature float64) {
	m.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	m.SetMaxOutputTokens(int32(tokenBudget(maxTokens)))
	m.SetTemperature(float32(temperature))
	m.SafetySettings = geminiSafety
	m.ResponseMIMEType = "application/json"
}

func (p *googleProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(p.apiKey))
	if err != nil {
		return "", fmt.Errorf("gemini %s: client: %w", p.model, err)
	}
	defer client.Close()

	m := client.GenerativeModel(p.model)
	configureGemini(m, systemPrompt, maxTokens, temperature)

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", p.model, err)
	}

	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				parts = append(parts, string(t))
			}
		}
		// The first candidate with content is the answer.
		if len(parts) > 0 {
			break
		}
	}
	return joinText("gemini", p.model, parts)
}
