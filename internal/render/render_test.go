package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

func sampleJudgment() *schema.Judgment {
	q := "Is the template shop a side project?"
	return &schema.Judgment{
		AnalysisID:     "abc-123",
		BaselineIntent: schema.IntentBlock{Title: "Study planner", Detail: "EdTech app for students"},
		CurrentIntent:  schema.IntentBlock{Title: "Template shop", Detail: "Selling Notion templates"},
		DriftDetected:  true,
		Confidence:     0.62,
		DriftDirection: "EdTech → Creator",
		Evidence: []schema.EvidenceItem{
			{Day: "Day 1", Reason: "declared goal"},
			{Day: "Day 4", Reason: "pricing | templates"},
		},
		ReasoningCards: []schema.ReasoningCard{
			{Title: "Temporal Compression", Body: "The shift happened in four days.", Refs: []string{"Day 1", "Day 4"}},
		},
		DriftSignature: "IDR:v1|dir=STUDY_PLANNER>TEMPLATE_SHOP|span=4d|e=2|conf=0.62",
		OneQuestion:    &q,
	}
}

func sampleEnsemble() *schema.EnsembleResponse {
	j := sampleJudgment()
	return &schema.EnsembleResponse{
		AnalysisID: "abc-123",
		Analyses:   []schema.Judgment{*j, *j},
		Consensus:  *j,
		Agreement: schema.Agreement{
			DriftDetectedVotes: schema.DriftVotes{True: 2, False: 0},
			ConfidenceMin:      0.55,
			ConfidenceMax:      0.70,
			DirectionVotes:     []schema.DirectionVote{{Value: "EdTech → Creator", Count: 2}},
			EvidenceAgreement: schema.EvidenceAgreement{
				ThreeOfThree: []schema.EvidenceItem{{Day: "Day 1", Reason: "declared goal"}},
				TwoOfThree:   []schema.EvidenceItem{},
				OneOfThree:   []schema.EvidenceItem{{Day: "Day 3", Reason: "asked about Gumroad"}},
			},
		},
		Meta: schema.EnsembleMeta{
			Modes:      []string{"low", "medium", "high"},
			DurationMS: 1234,
			Partial:    true,
			Errors:     []schema.RunFailure{{Mode: "high", Code: schema.CodeModelTimeout, Message: "run timed out after 25s"}},
		},
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatJSON, "JSON": FormatJSON, "md": FormatMarkdown, "terminal": FormatText}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("html"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	j := sampleJudgment()
	b, err := JSON(j)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var got schema.Judgment
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.DriftSignature != j.DriftSignature || len(got.ReasoningCards) != 1 {
		t.Errorf("round trip lost data: %+v", got)
	}
}

func TestJSON_Nil(t *testing.T) {
	if _, err := JSON(nil); err == nil {
		t.Error("expected error for nil")
	}
}

func TestJudgmentMarkdown(t *testing.T) {
	md := JudgmentMarkdown(sampleJudgment())
	for _, want := range []string{
		"## Intent Drift Report",
		"**Drift detected:** yes",
		"**Confidence:** 0.62",
		"`IDR:v1|dir=STUDY_PLANNER>TEMPLATE_SHOP|span=4d|e=2|conf=0.62`",
		"- **Day 4**: pricing \\| templates",
		"<strong>Temporal Compression</strong>",
		"_Refs: Day 1, Day 4_",
		"**Question:** Is the template shop a side project?",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if JudgmentMarkdown(nil) != "" {
		t.Error("nil judgment should render empty")
	}
}

func TestEnsembleMarkdown(t *testing.T) {
	md := EnsembleMarkdown(sampleEnsemble())
	for _, want := range []string{
		"**Modes:** low, medium, high",
		"**Partial:** yes",
		"**Drift votes:** 2 yes / 0 no",
		"**Confidence range:** 0.55 to 0.70",
		"#### Direction votes",
		"EdTech → Creator",
		"#### Evidence agreement",
		"asked about Gumroad",
		"#### Failed runs",
		"MODEL_TIMEOUT",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("ensemble markdown missing %q:\n%s", want, md)
		}
	}
}

func TestEnsembleMarkdown_NoEvidenceTableWhenEmpty(t *testing.T) {
	r := sampleEnsemble()
	r.Agreement.EvidenceAgreement = schema.EvidenceAgreement{}
	r.Meta.Errors = nil
	md := EnsembleMarkdown(r)
	if strings.Contains(md, "Evidence agreement") || strings.Contains(md, "Failed runs") {
		t.Errorf("empty sections should be omitted:\n%s", md)
	}
}

func TestTerminal(t *testing.T) {
	out := JudgmentTerminal(sampleJudgment())
	for _, want := range []string{"Intent Drift Radar", "Drift detected", "Evidence", "Temporal Compression", "refs: Day 1, Day 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("terminal output missing %q:\n%s", want, out)
		}
	}

	ens := EnsembleTerminal(sampleEnsemble())
	for _, want := range []string{"Agreement", "2 yes / 0 no", "partial", "MODEL_TIMEOUT"} {
		if !strings.Contains(ens, want) {
			t.Errorf("ensemble terminal output missing %q:\n%s", want, ens)
		}
	}
}

func TestDispatchByFormat(t *testing.T) {
	j := sampleJudgment()
	out, err := Judgment(j, FormatJSON)
	if err != nil || !strings.Contains(out, `"analysis_id": "abc-123"`) {
		t.Errorf("Judgment json = %q, %v", out, err)
	}
	out, err = Ensemble(sampleEnsemble(), FormatMarkdown)
	if err != nil || !strings.HasPrefix(out, "## Intent Drift Report (ensemble)") {
		t.Errorf("Ensemble markdown = %q, %v", out, err)
	}
}

func TestFeedback(t *testing.T) {
	entries := []schema.FeedbackEntry{
		{AnalysisID: "a-1", Verdict: schema.VerdictConfirm, Comment: "right", CreatedAt: "2026-01-02T03:04:05.000000Z"},
	}
	out, err := Feedback(entries, FormatJSON)
	if err != nil || !strings.Contains(out, `"feedback"`) || !strings.Contains(out, `"a-1"`) {
		t.Errorf("json feedback = %q, %v", out, err)
	}
	empty, _ := Feedback(nil, FormatJSON)
	if !strings.Contains(empty, `"feedback": []`) {
		t.Errorf("empty json feedback = %q", empty)
	}
	text, _ := Feedback(entries, FormatText)
	for _, want := range []string{"a-1", "confirm", "right"} {
		if !strings.Contains(text, want) {
			t.Errorf("text feedback missing %q:\n%s", want, text)
		}
	}
}
