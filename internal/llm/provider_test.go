package llm

import (
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestTokenBudget(t *testing.T) {
	cases := map[int]int{0: defaultMaxTokens, -5: defaultMaxTokens, 512: 512}
	for in, want := range cases {
		if got := tokenBudget(in); got != want {
			t.Errorf("tokenBudget(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestJoinText(t *testing.T) {
	got, err := joinText("gemini", "m", []string{`{"analysis_id":`, `"x"}`})
	if err != nil || got != `{"analysis_id":"x"}` {
		t.Errorf("joinText = %q, %v", got, err)
	}
	for _, parts := range [][]string{nil, {""}, {"  ", "\n"}} {
		if _, err := joinText("openai", "m", parts); !errors.Is(err, errNoText) {
			t.Errorf("joinText(%q) error = %v, want errNoText", parts, err)
		}
	}
}

func TestAnthropicParams_UnsetMaxTokensUsesDefault(t *testing.T) {
	p := anthropicParams("claude-sonnet-4-5", "sys", "user", 0, 0.1)
	if p.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", p.MaxTokens, defaultMaxTokens)
	}
	if len(p.System) != 1 || p.System[0].Text != "sys" {
		t.Errorf("System = %+v", p.System)
	}
	if len(p.Messages) != 1 {
		t.Errorf("Messages = %d, want 1", len(p.Messages))
	}
	if got := anthropicParams("m", "s", "u", 300, 0).MaxTokens; got != 300 {
		t.Errorf("explicit MaxTokens = %d, want 300", got)
	}
}

func TestOpenAIParams_JSONMode(t *testing.T) {
	p := openaiParams("gpt-4.1", "sys", "user", 0, 0.1)
	if p.ResponseFormat.OfJSONObject == nil {
		t.Error("JSON object response format not requested")
	}
	if p.MaxCompletionTokens.Value != defaultMaxTokens {
		t.Errorf("MaxCompletionTokens = %d, want %d", p.MaxCompletionTokens.Value, defaultMaxTokens)
	}
	if len(p.Messages) != 2 {
		t.Errorf("Messages = %d, want system and user", len(p.Messages))
	}
}

func TestConfigureGemini(t *testing.T) {
	m := &genai.GenerativeModel{}
	configureGemini(m, "sys", 0, 0.25)

	if m.ResponseMIMEType != "application/json" {
		t.Errorf("ResponseMIMEType = %q", m.ResponseMIMEType)
	}
	if m.MaxOutputTokens == nil || *m.MaxOutputTokens != defaultMaxTokens {
		t.Errorf("MaxOutputTokens = %v, want %d", m.MaxOutputTokens, defaultMaxTokens)
	}
	if m.Temperature == nil || *m.Temperature != 0.25 {
		t.Errorf("Temperature = %v", m.Temperature)
	}
	if m.SystemInstruction == nil || len(m.SystemInstruction.Parts) != 1 {
		t.Fatalf("SystemInstruction = %+v", m.SystemInstruction)
	}
	if txt, ok := m.SystemInstruction.Parts[0].(genai.Text); !ok || string(txt) != "sys" {
		t.Errorf("system part = %#v", m.SystemInstruction.Parts[0])
	}
	if len(m.SafetySettings) != 4 {
		t.Errorf("SafetySettings = %d, want 4", len(m.SafetySettings))
	}
}
