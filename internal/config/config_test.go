package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fakeEnv(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if c.PerRunTimeout != 25*time.Second || c.EnsembleTimeout != 90*time.Second || c.MinSuccesses != 2 {
		t.Errorf("unexpected dispatcher defaults: %+v", c)
	}
	if c.Temperature != 0.1 {
		t.Errorf("temperature = %v, want 0.1", c.Temperature)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driftradar.yaml")
	yml := `provider: anthropic
per_run_timeout: 10s
ensemble_timeout: 30s
addr: ":9090"
log_format: json
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	c := Default()
	if err := c.mergeFile(path); err != nil {
		t.Fatalf("mergeFile: %v", err)
	}
	if c.Provider != "anthropic" || c.Addr != ":9090" || c.LogFormat != "json" {
		t.Errorf("yaml values not applied: %+v", c)
	}
	if c.PerRunTimeout != 10*time.Second || c.EnsembleTimeout != 30*time.Second {
		t.Errorf("durations = %v/%v", c.PerRunTimeout, c.EnsembleTimeout)
	}
	if c.Model != "claude-sonnet-4-5" {
		t.Errorf("provider switch should pick that provider's default model, got %q", c.Model)
	}
	if c.DataDir != "data" {
		t.Errorf("unset fields should keep defaults, data_dir = %q", c.DataDir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("provider: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.applyEnv(fakeEnv(map[string]string{
		"GEMINI_API_KEY":              "g-key",
		"GEMINI_MODEL":                "gemini-3-flash-preview",
		"GEMINI_LOCATION":             "europe-west2",
		"DRIFTRADAR_PER_RUN_TIMEOUT":  "5s",
		"DRIFTRADAR_MIN_SUCCESSES":    "3",
		"DRIFTRADAR_FALLBACK_MODELS":  "a, b,,c",
		"PORT":                        "7000",
		"DRIFTRADAR_TEMPERATURE":      "0.3",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "collector:4317",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if c.APIKey != "g-key" || c.Model != "gemini-3-flash-preview" || c.Location != "europe-west2" {
		t.Errorf("compat variables not applied: %+v", c)
	}
	if c.PerRunTimeout != 5*time.Second || c.MinSuccesses != 3 || c.Temperature != 0.3 {
		t.Errorf("typed variables not applied: %+v", c)
	}
	if strings.Join(c.FallbackModels, ",") != "a,b,c" {
		t.Errorf("fallback models = %v", c.FallbackModels)
	}
	if c.Addr != ":7000" {
		t.Errorf("addr = %q, want :7000 from PORT", c.Addr)
	}
	if c.OTLPEndpoint != "collector:4317" {
		t.Errorf("otlp endpoint = %q", c.OTLPEndpoint)
	}
}

func TestApplyEnv_ProviderSpecificKey(t *testing.T) {
	c := Default()
	err := c.applyEnv(fakeEnv(map[string]string{
		"DRIFTRADAR_PROVIDER": "OpenAI",
		"GEMINI_API_KEY":      "wrong",
		"OPENAI_API_KEY":      "o-key",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if c.Provider != "openai" || c.APIKey != "o-key" || c.Model != "gpt-4.1" {
		t.Errorf("provider switch: %+v", c)
	}
}

func TestApplyEnv_BadValue(t *testing.T) {
	c := Default()
	if err := c.applyEnv(fakeEnv(map[string]string{"DRIFTRADAR_ENSEMBLE_TIMEOUT": "soon"})); err == nil {
		t.Error("expected duration parse error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider = "bedrock" }},
		{"min successes below two", func(c *Config) { c.MinSuccesses = 1 }},
		{"ensemble shorter than run", func(c *Config) { c.EnsembleTimeout = time.Second }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"empty model", func(c *Config) { c.Model = "" }},
	}
	for _, tc := range cases {
		c := Default()
		tc.mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestWarnings_PreviewModelNonGlobal(t *testing.T) {
	c := Default()
	c.APIKey = "k"
	if w := c.Warnings(); len(w) != 0 {
		t.Errorf("default config with key should not warn, got %v", w)
	}
	c.Location = "europe-west2"
	w := c.Warnings()
	if len(w) != 1 || !strings.Contains(w[0], "global") {
		t.Errorf("expected preview/location warning, got %v", w)
	}
}

func TestSetProvider(t *testing.T) {
	c := Default()
	c.SetProvider(" Anthropic ")
	if c.Provider != "anthropic" || c.Model != "claude-sonnet-4-5" {
		t.Errorf("SetProvider: %+v", c)
	}
	if len(c.FallbackModels) != 1 || c.FallbackModels[0] != "claude-haiku-4-5" {
		t.Errorf("fallbacks = %v", c.FallbackModels)
	}
	c.Model = "custom"
	c.SetProvider("anthropic")
	if c.Model != "custom" {
		t.Error("same provider should not reset the model")
	}
}
