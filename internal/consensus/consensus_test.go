package consensus

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

func run(conf float64, detected bool, direction string, evidence ...schema.EvidenceItem) schema.Judgment {
	return schema.Judgment{
		AnalysisID:     "run",
		BaselineIntent: schema.IntentBlock{Title: "EdTech app", Detail: "planner"},
		CurrentIntent:  schema.IntentBlock{Title: "Creator tools", Detail: "templates"},
		DriftDetected:  detected,
		Confidence:     conf,
		DriftDirection: direction,
		Evidence:       evidence,
		ReasoningCards: []schema.ReasoningCard{{Title: "Shift", Body: "b", Refs: []string{"Day 1"}}},
		DriftSignature: "IDR:v1|x",
	}
}

func ev(day, reason string) schema.EvidenceItem {
	return schema.EvidenceItem{Day: day, Reason: reason}
}

func TestCompute_InsufficientResults(t *testing.T) {
	for _, in := range [][]schema.Judgment{nil, {run(0.5, true, "A")}} {
		_, _, err := Compute(in, "x")
		if !errors.Is(err, schema.ErrInsufficientResults) {
			t.Errorf("Compute(%d judgments) error = %v, want ErrInsufficientResults", len(in), err)
		}
	}
}

func TestCompute_ConfidenceStats(t *testing.T) {
	in := []schema.Judgment{
		run(0.95, true, "A"),
		run(0.80, true, "A"),
		run(0.70, true, "A"),
	}
	got, agr, err := Compute(in, "c-1")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got.Confidence != 0.80 {
		t.Errorf("consensus confidence = %v, want 0.80", got.Confidence)
	}
	if agr.ConfidenceMin != 0.70 || agr.ConfidenceMax != 0.95 {
		t.Errorf("min/max = %v/%v, want 0.70/0.95", agr.ConfidenceMin, agr.ConfidenceMax)
	}
	if got.AnalysisID != "c-1" {
		t.Errorf("analysis_id = %q", got.AnalysisID)
	}
}

func TestCompute_ConfidenceEvenCountAveragesAndClamps(t *testing.T) {
	_, agr, _ := Compute([]schema.Judgment{run(0.9, true, "A"), run(1.2, true, "A")}, "x")
	if agr.ConfidenceMax != 0.95 {
		t.Errorf("confidence_max = %v, want clamped 0.95", agr.ConfidenceMax)
	}
	got, _, _ := Compute([]schema.Judgment{run(0.4, true, "A"), run(0.6, true, "A")}, "x")
	if d := got.Confidence - 0.5; d > 1e-9 || d < -1e-9 {
		t.Errorf("median of [0.4 0.6] = %v, want 0.5", got.Confidence)
	}
}

func TestCompute_DriftVotes(t *testing.T) {
	cases := []struct {
		name  string
		votes []bool
		want  bool
	}{
		{"two of three", []bool{true, true, false}, true},
		{"one of three", []bool{true, false, false}, false},
		{"two-run split", []bool{true, false}, false},
		{"two-run agree", []bool{true, true}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var in []schema.Judgment
			for _, v := range c.votes {
				in = append(in, run(0.5, v, "A"))
			}
			got, agr, err := Compute(in, "x")
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if got.DriftDetected != c.want {
				t.Errorf("drift_detected = %v, want %v", got.DriftDetected, c.want)
			}
			if agr.DriftDetectedVotes.True+agr.DriftDetectedVotes.False != len(c.votes) {
				t.Errorf("votes = %+v", agr.DriftDetectedVotes)
			}
		})
	}
}

func TestCompute_MedianRunSuppliesIntentsAndCards(t *testing.T) {
	low := run(0.3, true, "A")
	mid := run(0.6, true, "A")
	mid.BaselineIntent.Title = "Median base"
	mid.ReasoningCards = []schema.ReasoningCard{{Title: "Median card", Refs: []string{"Day 2"}}}
	q := "Still on track?"
	mid.OneQuestion = &q
	high := run(0.9, true, "A")

	got, _, err := Compute([]schema.Judgment{high, low, mid}, "x")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got.BaselineIntent.Title != "Median base" {
		t.Errorf("baseline from wrong run: %q", got.BaselineIntent.Title)
	}
	if got.ReasoningCards[0].Title != "Median card" {
		t.Errorf("cards from wrong run: %+v", got.ReasoningCards)
	}
	if got.OneQuestion == nil || *got.OneQuestion != q {
		t.Errorf("one_question = %v", got.OneQuestion)
	}
	got.ReasoningCards[0].Refs[0] = "mutated"
	if mid.ReasoningCards[0].Refs[0] != "Day 2" {
		t.Error("consensus shares card refs with the median run")
	}
}

func TestCompute_DirectionVotes(t *testing.T) {
	in := []schema.Judgment{
		run(0.3, true, " EdTech → Creator "),
		run(0.5, true, "EdTech → Creator"),
		run(0.7, true, "EdTech → Agency"),
	}
	got, agr, _ := Compute(in, "x")
	want := []schema.DirectionVote{
		{Value: "EdTech → Creator", Count: 2},
		{Value: "EdTech → Agency", Count: 1},
	}
	if diff := cmp.Diff(want, agr.DirectionVotes); diff != "" {
		t.Errorf("direction votes mismatch (-want +got):\n%s", diff)
	}
	if got.DriftDirection != "EdTech → Creator" {
		t.Errorf("drift_direction = %q", got.DriftDirection)
	}
}

func TestCompute_DirectionWithoutMajorityUsesMedianRun(t *testing.T) {
	in := []schema.Judgment{
		run(0.3, true, "B"),
		run(0.5, true, "C"),
		run(0.7, true, "A"),
	}
	got, agr, _ := Compute(in, "x")
	if got.DriftDirection != "C" {
		t.Errorf("drift_direction = %q, want median run's C", got.DriftDirection)
	}
	if agr.DirectionVotes[0].Value != "A" {
		t.Errorf("ties should sort by value, got %+v", agr.DirectionVotes)
	}
}

func TestCompute_EvidenceBuckets(t *testing.T) {
	in := []schema.Judgment{
		run(0.3, true, "A", ev("Day 1", "Declared goal"), ev("Day 3", "pricing question"), ev("Day 5", "solo")),
		run(0.5, true, "A", ev("day 1", "declared goal "), ev("Day 3", "Pricing question")),
		run(0.7, true, "A", ev("Day 1", "declared goal")),
	}
	got, agr, err := Compute(in, "x")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := schema.EvidenceAgreement{
		ThreeOfThree: []schema.EvidenceItem{ev("Day 1", "Declared goal")},
		TwoOfThree:   []schema.EvidenceItem{ev("Day 3", "pricing question")},
		OneOfThree:   []schema.EvidenceItem{ev("Day 5", "solo")},
	}
	if diff := cmp.Diff(want, agr.EvidenceAgreement); diff != "" {
		t.Errorf("evidence agreement mismatch (-want +got):\n%s", diff)
	}
	if len(got.Evidence) != 3 || got.Evidence[0].Day != "Day 1" || got.Evidence[2].Day != "Day 5" {
		t.Errorf("consensus evidence = %+v", got.Evidence)
	}
}

func TestCompute_TwoRunsFullAgreement(t *testing.T) {
	in := []schema.Judgment{
		run(0.4, true, "A", ev("Day 2", "x")),
		run(0.6, true, "A", ev("Day 2", "x")),
	}
	_, agr, _ := Compute(in, "x")
	if len(agr.EvidenceAgreement.ThreeOfThree) != 1 || len(agr.EvidenceAgreement.TwoOfThree) != 0 {
		t.Errorf("count == N should be full agreement: %+v", agr.EvidenceAgreement)
	}
}

func TestCompute_MinorityEvidenceCapped(t *testing.T) {
	var many []schema.EvidenceItem
	for _, d := range []string{"Day 1", "Day 2", "Day 3", "Day 4", "Day 5", "Day 6", "Day 7"} {
		many = append(many, ev(d, "unique"))
	}
	in := []schema.Judgment{run(0.4, true, "A", many...), run(0.6, true, "A")}
	got, agr, _ := Compute(in, "x")
	if len(agr.EvidenceAgreement.OneOfThree) != 7 {
		t.Errorf("one_of_three should list all 7, got %d", len(agr.EvidenceAgreement.OneOfThree))
	}
	if len(got.Evidence) != 5 || got.Evidence[4].Day != "Day 5" {
		t.Errorf("consensus evidence should keep first 5 minority items, got %+v", got.Evidence)
	}
}

func TestCompute_Signature(t *testing.T) {
	in := []schema.Judgment{
		run(0.95, true, "A", ev("Day 1", "a"), ev("Day 6", "b")),
		run(0.80, true, "A", ev("Day 1", "a")),
		run(0.70, true, "A"),
	}
	in[1].BaselineIntent.Title = "Study >> planner"
	got, _, err := Compute(in, "x")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := "IDR:v1|dir=STUDY__PLANNER>CREATOR_TOOLS|span=6d|e=2|conf=0.80"
	if got.DriftSignature != want {
		t.Errorf("signature = %q, want %q", got.DriftSignature, want)
	}
	if strings.Contains(got.DriftSignature, ">>") {
		t.Errorf("signature contains >>: %q", got.DriftSignature)
	}
}

func TestCompute_EmptyCardsOnMedianRunFails(t *testing.T) {
	mid := run(0.5, true, "A")
	mid.ReasoningCards = nil
	_, _, err := Compute([]schema.Judgment{run(0.2, true, "A"), mid, run(0.9, true, "A")}, "x")
	if !errors.Is(err, schema.ErrEmptyReasoningCards) {
		t.Errorf("error = %v, want ErrEmptyReasoningCards", err)
	}
}

// permutations returns every ordering of in.
func permutations(in []schema.Judgment) [][]schema.Judgment {
	if len(in) <= 1 {
		return [][]schema.Judgment{append([]schema.Judgment(nil), in...)}
	}
	var out [][]schema.Judgment
	for i := range in {
		rest := make([]schema.Judgment, 0, len(in)-1)
		rest = append(rest, in[:i]...)
		rest = append(rest, in[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]schema.Judgment{in[i]}, p...))
		}
	}
	return out
}

func assertOrderIndependent(t *testing.T, in []schema.Judgment) schema.Judgment {
	t.Helper()
	want, wantAgr, err := Compute(in, "x")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for _, p := range permutations(in) {
		got, agr, err := Compute(p, "x")
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("consensus depends on input order (-first +permuted):\n%s", diff)
		}
		if diff := cmp.Diff(wantAgr, agr); diff != "" {
			t.Errorf("agreement depends on input order (-first +permuted):\n%s", diff)
		}
	}
	return want
}

func TestCompute_InputOrderDoesNotMatter(t *testing.T) {
	low := run(0.55, true, "A", ev("Day 2", "low only"), ev("Day 1", "Shared goal"))
	low.AnalysisID = "x-low"
	mid := run(0.70, false, "B", ev("Day 1", "shared goal"), ev("Day 4", "mid only"))
	mid.AnalysisID = "x-medium"
	mid.BaselineIntent.Title = "Median base"
	high := run(0.85, true, "A", ev("Day 3", "high only"), ev("Day 1", "shared goal"))
	high.AnalysisID = "x-high"

	got := assertOrderIndependent(t, []schema.Judgment{low, mid, high})
	if got.BaselineIntent.Title != "Median base" {
		t.Errorf("baseline from wrong run: %q", got.BaselineIntent.Title)
	}
	want := []schema.EvidenceItem{
		ev("Day 1", "Shared goal"),
		ev("Day 2", "low only"),
		ev("Day 4", "mid only"),
		ev("Day 3", "high only"),
	}
	if diff := cmp.Diff(want, got.Evidence); diff != "" {
		t.Errorf("evidence should follow ascending confidence (-want +got):\n%s", diff)
	}
}

func TestCompute_ConfidenceTieBrokenByAnalysisID(t *testing.T) {
	var in []schema.Judgment
	for _, mode := range []string{"medium", "high", "low"} {
		j := run(0.6, true, "A", ev("Day 1", mode))
		j.AnalysisID = "x-" + mode
		j.BaselineIntent.Title = mode
		in = append(in, j)
	}
	got := assertOrderIndependent(t, in)
	// Sorted ids: x-high, x-low, x-medium; the median run is x-low.
	if got.BaselineIntent.Title != "low" {
		t.Errorf("median run = %q, want low", got.BaselineIntent.Title)
	}
	if got.Evidence[0].Reason != "high" {
		t.Errorf("evidence should start with x-high's item, got %+v", got.Evidence)
	}
}
