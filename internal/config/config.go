// Package config builds the runtime configuration: built-in defaults, then an
// optional YAML file, then environment variables. CLI flags are applied last
// by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DRIFTRADAR_"

// Config is the explicit configuration object handed to every component.
type Config struct {
	Provider       string   `yaml:"provider" validate:"oneof=google anthropic openai"`
	Model          string   `yaml:"model" validate:"required"`
	FallbackModels []string `yaml:"fallback_models"`
	// Location is informational for the Gemini API, which is global.
	Location    string  `yaml:"location"`
	APIKey      string  `yaml:"-"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gte=256"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`

	PerRunTimeout   time.Duration `yaml:"per_run_timeout" validate:"gt=0"`
	EnsembleTimeout time.Duration `yaml:"ensemble_timeout" validate:"gt=0,gtefield=PerRunTimeout"`
	MinSuccesses    int           `yaml:"min_successes" validate:"gte=2"`

	Addr      string  `yaml:"addr" validate:"required"`
	DataDir   string  `yaml:"data_dir" validate:"required"`
	StaticDir string  `yaml:"static_dir"`
	DemoPath  string  `yaml:"demo_path"`
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" validate:"gte=0"`

	LogLevel      string `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat     string `yaml:"log_format" validate:"oneof=text json"`
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`

	ServiceName string `yaml:"service_name"`
	GitSHA      string `yaml:"-"`
	BuildTime   string `yaml:"-"`
}

// defaultModels holds the primary model and its fallbacks per provider.
var defaultModels = map[string][]string{
	"google":    {"gemini-3-pro-preview", "gemini-3-pro", "gemini-3-flash-preview"},
	"anthropic": {"claude-sonnet-4-5", "claude-haiku-4-5"},
	"openai":    {"gpt-4.1", "gpt-4.1-mini"},
}

// Default returns the built-in configuration.
func Default() Config {
	models := defaultModels["google"]
	return Config{
		Provider:        "google",
		Model:           models[0],
		FallbackModels:  append([]string{}, models[1:]...),
		Location:        "global",
		MaxTokens:       8192,
		Temperature:     0.1,
		PerRunTimeout:   25 * time.Second,
		EnsembleTimeout: 90 * time.Second,
		MinSuccesses:    2,
		Addr:            ":8080",
		DataDir:         "data",
		StaticDir:       "static",
		DemoPath:        "testdata/demo/sample-output.json",
		LogLevel:        "info",
		LogFormat:       "text",
		TraceExporter:   "none",
		OTLPEndpoint:    "localhost:4317",
		ServiceName:     "intent-drift-radar",
		GitSHA:          "unknown",
		BuildTime:       "unknown",
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped when
// path is empty) and then with the environment. A path that does not exist is
// an error; the caller asked for it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: file %s not found", path)
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	providerBefore := c.Provider
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	modelGiven, fallbacksGiven := modelSet(data)
	c.reconcileModels(providerBefore, modelGiven, fallbacksGiven)
	return nil
}

// modelSet reports whether the YAML document names model or fallback_models.
func modelSet(data []byte) (model, fallbacks bool) {
	var doc map[string]any
	if yaml.Unmarshal(data, &doc) != nil {
		return false, false
	}
	_, model = doc["model"]
	_, fallbacks = doc["fallback_models"]
	return model, fallbacks
}

// reconcileModels swaps in the new provider's default models when the
// provider changed and the models were left at the old provider's defaults.
func (c *Config) reconcileModels(providerBefore string, modelGiven, fallbacksGiven bool) {
	if c.Provider == providerBefore {
		return
	}
	models, ok := defaultModels[c.Provider]
	if !ok {
		return
	}
	if !modelGiven {
		c.Model = models[0]
	}
	if !fallbacksGiven {
		c.FallbackModels = append([]string{}, models[1:]...)
	}
}

// SetProvider switches provider, swapping in its default models when the
// current ones are the old provider's defaults. Callers overriding the model
// set it afterwards.
func (c *Config) SetProvider(name string) {
	before := c.Provider
	c.Provider = strings.ToLower(strings.TrimSpace(name))
	c.reconcileModels(before, false, false)
}

// LookupFunc matches os.LookupEnv so tests can supply a fake environment.
type LookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup LookupFunc) error {
	get := func(keys ...string) (string, bool) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}

	providerBefore := c.Provider
	if v, ok := get(EnvPrefix + "PROVIDER"); ok {
		c.Provider = strings.ToLower(v)
	}
	_, modelGiven := get(EnvPrefix+"MODEL", "GEMINI_MODEL")
	_, fallbacksGiven := get(EnvPrefix + "FALLBACK_MODELS")
	c.reconcileModels(providerBefore, modelGiven, fallbacksGiven)

	if v, ok := get(EnvPrefix+"MODEL", "GEMINI_MODEL"); ok {
		c.Model = v
	}
	if v, ok := get(EnvPrefix + "FALLBACK_MODELS"); ok {
		c.FallbackModels = splitList(v)
	}
	if v, ok := get(EnvPrefix+"LOCATION", "GEMINI_LOCATION"); ok {
		c.Location = v
	}
	if v, ok := get(append([]string{EnvPrefix + "API_KEY"}, apiKeyEnv(c.Provider)...)...); ok {
		c.APIKey = v
	}

	var err error
	setInt := func(key string, dst *int) {
		if v, ok := get(key); ok && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("config: %s: %w", key, perr)
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := get(key); ok && err == nil {
			f, perr := strconv.ParseFloat(v, 64)
			if perr != nil {
				err = fmt.Errorf("config: %s: %w", key, perr)
				return
			}
			*dst = f
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := get(key); ok && err == nil {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = fmt.Errorf("config: %s: %w", key, perr)
				return
			}
			*dst = d
		}
	}
	setString := func(dst *string, keys ...string) {
		if v, ok := get(keys...); ok {
			*dst = v
		}
	}

	setInt(EnvPrefix+"MAX_TOKENS", &c.MaxTokens)
	setFloat(EnvPrefix+"TEMPERATURE", &c.Temperature)
	setDuration(EnvPrefix+"PER_RUN_TIMEOUT", &c.PerRunTimeout)
	setDuration(EnvPrefix+"ENSEMBLE_TIMEOUT", &c.EnsembleTimeout)
	setInt(EnvPrefix+"MIN_SUCCESSES", &c.MinSuccesses)
	setFloat(EnvPrefix+"RATE_LIMIT", &c.RateLimit)
	setInt(EnvPrefix+"RATE_BURST", &c.RateBurst)
	if err != nil {
		return err
	}

	if v, ok := get(EnvPrefix + "ADDR"); ok {
		c.Addr = v
	} else if port, ok := get("PORT"); ok {
		c.Addr = ":" + port
	}
	setString(&c.DataDir, EnvPrefix+"DATA_DIR")
	setString(&c.StaticDir, EnvPrefix+"STATIC_DIR")
	setString(&c.DemoPath, EnvPrefix+"DEMO_PATH")
	setString(&c.LogLevel, EnvPrefix+"LOG_LEVEL")
	setString(&c.LogFormat, EnvPrefix+"LOG_FORMAT")
	setString(&c.TraceExporter, EnvPrefix+"TRACE_EXPORTER", "OTEL_TRACES_EXPORTER")
	setString(&c.OTLPEndpoint, EnvPrefix+"OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&c.ServiceName, EnvPrefix+"SERVICE_NAME", "SERVICE_NAME")
	setString(&c.GitSHA, "GIT_SHA")
	setString(&c.BuildTime, "BUILD_TIME")
	return nil
}

// apiKeyEnv lists the provider-specific API key variables, most specific first.
func apiKeyEnv(provider string) []string {
	switch provider {
	case "anthropic":
		return []string{"ANTHROPIC_API_KEY"}
	case "openai":
		return []string{"OPENAI_API_KEY"}
	default:
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var validate = validator.New()

// Validate checks field constraints. It does not require an API key: the
// server still serves the demo without one.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Warnings returns non-fatal misconfigurations worth logging at startup.
func (c Config) Warnings() []string {
	var w []string
	if strings.Contains(strings.ToLower(c.Model), "preview") && !strings.EqualFold(c.Location, "global") {
		w = append(w, fmt.Sprintf(
			"preview model %q is configured with location %q; preview models are global-only and may return 404, set location to global",
			c.Model, c.Location))
	}
	if c.APIKey == "" {
		w = append(w, fmt.Sprintf("no API key found for provider %q; live analysis will fail with %s",
			c.Provider, "API_KEY_MISSING"))
	}
	return w
}
