package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/llm"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

const signalsFile = "../../testdata/demo/signals.json"

// mockProvider answers every call with the same response.
type mockProvider struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (m *mockProvider) Complete(_ context.Context, _, _ string, _ int, _ float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func injectMock(t *testing.T, mp *mockProvider) {
	t.Helper()
	orig := llm.NewProvider
	llm.NewProvider = func(_, _, _ string) (llm.Provider, error) { return mp, nil }
	t.Cleanup(func() { llm.NewProvider = orig })
}

func sampleResponse(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("../../testdata/demo/sample-output.json")
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	return string(b)
}

// testEnv isolates configuration from the host environment.
func testEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "DRIFTRADAR_PROVIDER", "DRIFTRADAR_MODEL", "GEMINI_MODEL"} {
		t.Setenv(k, "")
	}
	t.Setenv("DRIFTRADAR_API_KEY", "test-key")
	t.Setenv("DRIFTRADAR_DATA_DIR", t.TempDir())
	t.Setenv("DRIFTRADAR_DEMO_PATH", "../../testdata/demo/sample-output.json")
	t.Setenv("DRIFTRADAR_LOG_LEVEL", "error")
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	testEnv(t)
	a, err := newApp(&globalFlags{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	return a
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func TestAnalyze_Single(t *testing.T) {
	injectMock(t, &mockProvider{response: sampleResponse(t)})
	a := newTestApp(t)

	var out bytes.Buffer
	err := runAnalyze(context.Background(), a, analyzeFlags{signals: signalsFile, format: "json"}, nil, &out)
	if err != nil {
		t.Fatalf("runAnalyze: %v", err)
	}
	var j schema.Judgment
	if err := json.Unmarshal(out.Bytes(), &j); err != nil {
		t.Fatalf("parse output: %v\n%s", err, out.String())
	}
	if j.AnalysisID == "" || j.AnalysisID == "demo" {
		t.Errorf("analysis id should be freshly assigned, got %q", j.AnalysisID)
	}
	if !strings.HasPrefix(j.DriftSignature, schema.SignaturePrefix) {
		t.Errorf("signature = %q", j.DriftSignature)
	}
}

func TestAnalyze_StdinAndMarkdown(t *testing.T) {
	injectMock(t, &mockProvider{response: sampleResponse(t)})
	a := newTestApp(t)

	in := strings.NewReader(`[{"day":"Day 1","type":"declaration","content":"Build a planner."}]`)
	var out bytes.Buffer
	if err := runAnalyze(context.Background(), a, analyzeFlags{signals: "-", format: "markdown"}, in, &out); err != nil {
		t.Fatalf("runAnalyze: %v", err)
	}
	if !strings.HasPrefix(out.String(), "## Intent Drift Report") {
		t.Errorf("expected markdown, got:\n%s", out.String())
	}
}

func TestAnalyze_MarkdownJournal(t *testing.T) {
	injectMock(t, &mockProvider{response: sampleResponse(t)})
	a := newTestApp(t)

	in := strings.NewReader("## Day 1\n- declaration: Build a planner.\n\n## Day 2\n- action: Opened a template shop.\n")
	var out bytes.Buffer
	if err := runAnalyze(context.Background(), a, analyzeFlags{signals: "-", format: "json"}, in, &out); err != nil {
		t.Fatalf("runAnalyze: %v", err)
	}
	if !strings.Contains(out.String(), `"analysis_id"`) {
		t.Errorf("expected a judgment, got:\n%s", out.String())
	}

	err := runAnalyze(context.Background(), a, analyzeFlags{signals: "-", format: "json"}, strings.NewReader("no days here"), &bytes.Buffer{})
	if exitCode(err) != exitCodeBadInput {
		t.Errorf("journal without signals exit = %d, want %d", exitCode(err), exitCodeBadInput)
	}
}

func TestAnalyze_Ensemble(t *testing.T) {
	mp := &mockProvider{response: sampleResponse(t)}
	injectMock(t, mp)
	a := newTestApp(t)

	outFile := filepath.Join(t.TempDir(), "out.json")
	f := analyzeFlags{signals: signalsFile, ensemble: true, modes: []string{"low", " HIGH "}, format: "json", out: outFile}
	if err := runAnalyze(context.Background(), a, f, nil, &bytes.Buffer{}); err != nil {
		t.Fatalf("runAnalyze: %v", err)
	}
	b, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}
	var resp schema.EnsembleResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if strings.Join(resp.Meta.Modes, ",") != "low,high" || len(resp.Analyses) != 2 {
		t.Errorf("unexpected ensemble: modes=%v analyses=%d", resp.Meta.Modes, len(resp.Analyses))
	}
	if resp.Agreement.DriftDetectedVotes.True != 2 {
		t.Errorf("votes = %+v", resp.Agreement.DriftDetectedVotes)
	}
	if mp.calls != 2 {
		t.Errorf("provider calls = %d, want 2", mp.calls)
	}
}

func TestAnalyze_ExitCodes(t *testing.T) {
	cases := []struct {
		name string
		mp   *mockProvider
		f    analyzeFlags
		want int
	}{
		{"missing signals flag", &mockProvider{}, analyzeFlags{format: "json"}, exitCodeBadInput},
		{"missing file", &mockProvider{}, analyzeFlags{signals: "nope.json", format: "json"}, exitCodeBadInput},
		{"bad format", &mockProvider{}, analyzeFlags{signals: signalsFile, format: "html"}, exitCodeBadInput},
		{"bad thinking level", &mockProvider{}, analyzeFlags{signals: signalsFile, thinkingLevel: "deep"}, exitCodeBadInput},
		{"provider error", &mockProvider{err: fmt.Errorf("simulated API error")}, analyzeFlags{signals: signalsFile, format: "json"}, exitCodeAPIError},
		{"invalid output", &mockProvider{response: "not json at all"}, analyzeFlags{signals: signalsFile, format: "json"}, exitCodeBadOutput},
		{"ensemble insufficient", &mockProvider{response: "not json"}, analyzeFlags{signals: signalsFile, ensemble: true, format: "json"}, exitCodeAPIError},
		{"fail on drift", nil, analyzeFlags{signals: signalsFile, format: "json", failOnDrift: true}, exitCodeDrift},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mp := c.mp
			if mp == nil {
				mp = &mockProvider{response: sampleResponse(t)}
			}
			injectMock(t, mp)
			a := newTestApp(t)
			err := runAnalyze(context.Background(), a, c.f, nil, &bytes.Buffer{})
			if got := exitCode(err); got != c.want {
				t.Errorf("exit code = %d, want %d (err: %v)", got, c.want, err)
			}
		})
	}
}

func TestAnalyze_MissingAPIKey(t *testing.T) {
	mp := &mockProvider{response: sampleResponse(t)}
	injectMock(t, mp)
	testEnv(t)
	t.Setenv("DRIFTRADAR_API_KEY", "")
	a, err := newApp(&globalFlags{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	err = runAnalyze(context.Background(), a, analyzeFlags{signals: signalsFile, format: "json"}, nil, &bytes.Buffer{})
	if exitCode(err) != exitCodeAPIError || !errors.Is(err, schema.ErrAPIKeyMissing) {
		t.Errorf("expected API key error with exit %d, got %v", exitCodeAPIError, err)
	}
	if mp.calls != 0 {
		t.Error("provider should not be called without a key")
	}
}

func TestFeedback_AddAndList(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	if err := runFeedbackAdd(a, schema.FeedbackEntry{AnalysisID: "a-1", Verdict: schema.VerdictReject, Comment: "wrong"}, &out); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.HasPrefix(out.String(), "saved a-1 reject at ") {
		t.Errorf("add output = %q", out.String())
	}

	err := runFeedbackAdd(a, schema.FeedbackEntry{AnalysisID: "a-1", Verdict: "maybe"}, &out)
	if exitCode(err) != exitCodeBadInput {
		t.Errorf("invalid verdict exit = %d", exitCode(err))
	}

	out.Reset()
	if err := runFeedbackList(a, "json", &out); err != nil {
		t.Fatalf("list: %v", err)
	}
	var list struct {
		Feedback []schema.FeedbackEntry `json:"feedback"`
	}
	if err := json.Unmarshal(out.Bytes(), &list); err != nil {
		t.Fatalf("parse list: %v", err)
	}
	if len(list.Feedback) != 1 || list.Feedback[0].Comment != "wrong" {
		t.Errorf("list = %+v", list.Feedback)
	}
}

func TestRootCommand_Version(t *testing.T) {
	testEnv(t)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--provider", "openai"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"driftradar dev", "provider: openai", "model: gpt-4.1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("version output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRootCommand_BadConfigFile(t *testing.T) {
	testEnv(t)
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"version", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	if code := exitCode(root.Execute()); code != exitCodeBadInput {
		t.Errorf("exit code = %d, want %d", code, exitCodeBadInput)
	}
}
