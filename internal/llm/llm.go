// Package llm handles LLM provider communication, prompt construction,
// response validation, and the single repair attempt for one drift analysis.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/drift"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/logging"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/profile"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// repairInstruction prefixes the prompt of the single repair attempt.
const repairInstruction = "Return ONLY valid JSON matching the schema. No markdown. No extra text."

// Provider is the interface for LLM backends.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// NewProvider is the factory for creating LLM providers. It is a package-level
// variable so tests can replace it with a mock without modifying the call site.
// Tests must restore the original value; use t.Cleanup to do so safely.
var NewProvider func(providerName, model, apiKey string) (Provider, error) = defaultNewProvider

// CorrectionRecorder is told about every guardrail correction applied to a
// model response. Optional.
type CorrectionRecorder interface {
	RecordCorrection(guardrail string)
}

// Options configures an Analyzer.
type Options struct {
	Provider       string
	Model          string
	FallbackModels []string
	APIKey         string
	MaxTokens      int
	Temperature    float64
	Debug          bool
}

// ValidationError records a single validation failure on an LLM response.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Analyzer runs one drift analysis per call. It is safe for concurrent use.
type Analyzer struct {
	opts     Options
	recorder CorrectionRecorder
	logger   *slog.Logger
}

// NewAnalyzer returns an Analyzer. A missing API key is not an error here;
// it surfaces as schema.ErrAPIKeyMissing on the first Analyze call.
func NewAnalyzer(opts Options, rec CorrectionRecorder) *Analyzer {
	return &Analyzer{opts: opts, recorder: rec, logger: logging.New("llm")}
}

// Ready reports schema.ErrAPIKeyMissing when no API key is configured.
func (a *Analyzer) Ready() error {
	if a.opts.APIKey == "" {
		return schema.ErrAPIKeyMissing
	}
	return nil
}

// Analyze builds the prompt, calls the model, validates the response and
// performs one repair attempt if validation fails. The returned judgment
// carries runID as its analysis_id and has been through the guardrails.
func (a *Analyzer) Analyze(ctx context.Context, req schema.AnalyzeRequest, runID string) (*schema.Judgment, error) {
	if err := a.Ready(); err != nil {
		return nil, err
	}

	settings := req.EffectiveSettings()
	prof := profile.ForLevel(settings.ThinkingLevel)
	sysPrompt := buildSystemPrompt(prof)
	userPrompt := buildUserPrompt(req)

	if a.opts.Debug {
		a.logger.Debug("prompt", slog.String("run_id", runID), slog.String("system", sysPrompt), slog.String("user", userPrompt))
	}
	a.logger.Info("calling model",
		slog.String("run_id", runID),
		slog.String("provider", a.opts.Provider),
		slog.String("model", a.opts.Model),
		slog.String("thinking_level", string(settings.ThinkingLevel)),
		slog.Int("signals", len(req.Signals)),
		slog.Int("feedback", len(req.Feedback)))

	raw, model, err := a.complete(ctx, a.opts.Model, sysPrompt, userPrompt)
	if err != nil {
		return nil, classifyCallError(ctx, "complete", err)
	}

	j, validationErrs := ValidateResponse(raw, runID)
	if j != nil {
		return a.finish(*j, runID, model)
	}
	a.logger.Warn("model output invalid, attempting repair",
		slog.String("run_id", runID), slog.Int("errors", len(validationErrs)))

	// One repair attempt against the model that answered.
	repairPrompt := buildRepairPrompt(userPrompt, raw, validationErrs)
	raw2, err := a.call(ctx, model, sysPrompt, repairPrompt)
	if err != nil {
		return nil, classifyCallError(ctx, "repair complete", err)
	}

	j2, validationErrs2 := ValidateResponse(raw2, runID)
	if j2 != nil {
		return a.finish(*j2, runID, model)
	}

	a.logger.Error("model output invalid after repair",
		slog.String("run_id", runID), slog.String("raw", truncate(raw2, 500)))
	return nil, schema.NewError(schema.CodeModelOutputInvalid,
		fmt.Sprintf("response does not match schema: %s", joinErrors(validationErrs2)), nil)
}

// finish applies the guardrails to a validated judgment.
func (a *Analyzer) finish(j schema.Judgment, runID, model string) (*schema.Judgment, error) {
	out, corrections, err := drift.Apply(j)
	if err != nil {
		return nil, schema.NewError(schema.CodeModelOutputInvalid, "postprocess failed", err)
	}
	if a.recorder != nil {
		for _, c := range corrections {
			a.recorder.RecordCorrection(string(c))
		}
	}
	a.logger.Info("analysis complete",
		slog.String("run_id", runID),
		slog.String("model", model),
		slog.Bool("drift_detected", out.DriftDetected),
		slog.Float64("confidence", out.Confidence))
	return &out, nil
}

// complete calls the provider for model. When the model does not exist it
// retries once with the first configured fallback that differs from it. It
// returns the raw text and the model that produced it.
func (a *Analyzer) complete(ctx context.Context, model, sysPrompt, userPrompt string) (string, string, error) {
	raw, err := a.call(ctx, model, sysPrompt, userPrompt)
	if err == nil || !isModelNotFound(err) {
		return raw, model, err
	}

	fallback := ""
	for _, m := range a.opts.FallbackModels {
		if m != "" && m != model {
			fallback = m
			break
		}
	}
	if fallback == "" {
		return "", model, fmt.Errorf("model %s not found and no fallback configured: %w", model, err)
	}
	a.logger.Warn("model not found, retrying with fallback",
		slog.String("model", model), slog.String("fallback", fallback))

	raw, err = a.call(ctx, fallback, sysPrompt, userPrompt)
	if err != nil {
		return "", fallback, fmt.Errorf("fallback model %s: %w", fallback, err)
	}
	return raw, fallback, nil
}

// call builds a provider for model and performs one completion.
func (a *Analyzer) call(ctx context.Context, model, sysPrompt, userPrompt string) (string, error) {
	prov, err := NewProvider(a.opts.Provider, model, a.opts.APIKey)
	if err != nil {
		return "", fmt.Errorf("create provider: %w", err)
	}
	return prov.Complete(ctx, sysPrompt, userPrompt, a.opts.MaxTokens, a.opts.Temperature)
}

// classifyCallError maps a provider failure onto the error taxonomy.
func classifyCallError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return schema.NewError(schema.CodeModelTimeout, "model request timed out", err)
	}
	return fmt.Errorf("llm: %s: %w", op, err)
}

// ── Response validation ─────────────────────────────────────────────────────

// fenceRe matches a markdown code fence block (``` or ~~~) with an optional
// language tag and captures the content between the fences.
var fenceRe = regexp.MustCompile("(?s)^(?:`{3}|~{3})[^\\n]*\\n(.*?)(?:`{3}|~{3})\\s*$")

// openFenceRe matches only an opening fence line, for truncated responses.
var openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[^\\n]*\\n")

// stripMarkdownFences removes leading/trailing markdown code fences that
// models sometimes wrap around JSON output.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// extractObject returns the text between the first '{' and the last '}', or
// s unchanged when there is no such span.
func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return s
	}
	return s[start : end+1]
}

// invalidJSONEscapeRe matches a backslash followed by any character that is
// not a valid JSON string escape character.
var invalidJSONEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

func fixInvalidJSONEscapes(s string) string {
	return invalidJSONEscapeRe.ReplaceAllString(s, `\\$1`)
}

// requiredKeys must be present in every model response. analysis_id is
// excluded because it is always overwritten.
var requiredKeys = []string{
	"baseline_intent", "current_intent", "drift_detected", "confidence",
	"drift_direction", "evidence", "reasoning_cards", "drift_signature",
}

// decodeLenient tries the raw text, then the embedded object, then the
// escape-fixed object.
func decodeLenient(raw string) (map[string]json.RawMessage, string, error) {
	var fields map[string]json.RawMessage
	err := json.Unmarshal([]byte(raw), &fields)
	if err == nil {
		return fields, raw, nil
	}
	for _, candidate := range []string{extractObject(raw), fixInvalidJSONEscapes(extractObject(raw))} {
		if json.Unmarshal([]byte(candidate), &fields) == nil {
			return fields, candidate, nil
		}
	}
	return nil, "", err
}

// ValidateResponse parses and validates the raw model response. The returned
// judgment has analysis_id forced to analysisID. A nil judgment means the
// response must be repaired; the errors say why.
func ValidateResponse(raw, analysisID string) (*schema.Judgment, []ValidationError) {
	var errs []ValidationError

	fields, body, err := decodeLenient(stripMarkdownFences(raw))
	if err != nil {
		return nil, []ValidationError{{Field: "json_parse", Message: err.Error()}}
	}

	for _, k := range requiredKeys {
		if v, ok := fields[k]; !ok || string(v) == "null" {
			errs = append(errs, ValidationError{Field: "required_field", Message: k + " is missing"})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	var j schema.Judgment
	if err := json.Unmarshal([]byte(body), &j); err != nil {
		return nil, []ValidationError{{Field: "json_decode", Message: err.Error()}}
	}
	j.AnalysisID = analysisID

	if len(j.ReasoningCards) == 0 {
		errs = append(errs, ValidationError{Field: "reasoning_cards", Message: "reasoning_cards is missing or empty"})
	}
	if j.Confidence < 0 || j.Confidence > schema.MaxConfidence {
		errs = append(errs, ValidationError{
			Field:   "confidence",
			Message: fmt.Sprintf("confidence %v outside [0, %v]", j.Confidence, schema.MaxConfidence),
		})
	}
	if strings.TrimSpace(j.BaselineIntent.Title) == "" || strings.TrimSpace(j.CurrentIntent.Title) == "" {
		errs = append(errs, ValidationError{Field: "intent", Message: "baseline_intent.title and current_intent.title are required"})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &j, nil
}

// ── Prompts ─────────────────────────────────────────────────────────────────

// buildRepairPrompt constructs the repair message. It includes the original
// user prompt and the previous invalid response so the model has full context.
func buildRepairPrompt(originalUserPrompt, previousResponse string, errs []ValidationError) string {
	var sb strings.Builder
	sb.WriteString(repairInstruction)
	sb.WriteString("\n\n")
	sb.WriteString(originalUserPrompt)
	sb.WriteString("\n\nYour previous response was:\n")
	sb.WriteString(previousResponse)
	sb.WriteString("\n\nThat response was invalid. Errors:\n")
	for _, e := range errs {
		fmt.Fprintf(&sb, "  - %s\n", e.Error())
	}
	sb.WriteString("\nPlease output only the corrected JSON conforming to the schema. Do not repeat the error.")
	return sb.String()
}

func joinErrors(errs []ValidationError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Field + ": " + e.Message
	}
	return strings.Join(parts, "; ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ── Provider dispatch ────────────────────────────────────────────────────────

// defaultNewProvider dispatches to the appropriate provider implementation.
func defaultNewProvider(providerName, model, apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, schema.ErrAPIKeyMissing
	}
	switch strings.ToLower(providerName) {
	case "google", "gemini", "":
		return newGoogleProvider(model, apiKey), nil
	case "anthropic":
		return newAnthropicProvider(model, apiKey), nil
	case "openai":
		return newOpenAIProvider(model, apiKey), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", providerName)
	}
}
