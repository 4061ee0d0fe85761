// Package drift provides the deterministic guardrails applied to every
// Judgment before it is released, and the drift signature builder.
// No LLM calls are made here.
package drift

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/logging"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// TemporalCompressionTitle is the reasoning card whose refs are repaired.
const TemporalCompressionTitle = "Temporal Compression"

// Correction names a guardrail that changed a Judgment.
type Correction string

const (
	CorrectionSignature      Correction = "signature"
	CorrectionTemporalRefs   Correction = "temporal_compression_refs"
	maxSlugLen                          = 20
	defaultSpanDays                     = 1
	signatureConfidenceDigit            = 2
)

// NormalizeSignature collapses every ">>" to ">" and ensures the result
// starts with schema.SignaturePrefix. The empty string becomes the bare prefix.
func NormalizeSignature(sig string) string {
	for strings.Contains(sig, ">>") {
		sig = strings.ReplaceAll(sig, ">>", ">")
	}
	if !strings.HasPrefix(sig, schema.SignaturePrefix) {
		sig = schema.SignaturePrefix + sig
	}
	return sig
}

// EnsureReasoningCards fails with schema.ErrEmptyReasoningCards when cards
// is empty. It is the one guardrail that rejects instead of repairing.
func EnsureReasoningCards(cards []schema.ReasoningCard) error {
	if len(cards) == 0 {
		return schema.ErrEmptyReasoningCards
	}
	return nil
}

// EvidenceDays returns the distinct evidence day labels in first-seen order.
func EvidenceDays(evidence []schema.EvidenceItem) []string {
	days := make([]string, 0, len(evidence))
	seen := make(map[string]bool, len(evidence))
	for _, e := range evidence {
		if seen[e.Day] {
			continue
		}
		seen[e.Day] = true
		days = append(days, e.Day)
	}
	return days
}

// FixTemporalCompressionRefs fills the refs of the "Temporal Compression"
// card from the judgment's own evidence days when the refs are empty or name
// no Day. The card body is never touched. When the evidence has no days the
// card is left as is. The returned bool reports whether anything changed.
func FixTemporalCompressionRefs(j schema.Judgment) (schema.Judgment, bool) {
	out := j.Clone()
	days := EvidenceDays(j.Evidence)
	if len(days) == 0 {
		return out, false
	}

	changed := false
	for i, card := range out.ReasoningCards {
		if card.Title != TemporalCompressionTitle || refsMentionDay(card.Refs) {
			continue
		}
		if equalStrings(card.Refs, days) {
			continue
		}
		out.ReasoningCards[i].Refs = append([]string{}, days...)
		changed = true
	}
	return out, changed
}

func refsMentionDay(refs []string) bool {
	for _, r := range refs {
		if strings.Contains(r, "Day") {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Apply runs the guardrails in their fixed order (reject on empty cards,
// normalize signature, repair temporal-compression refs) and returns the
// repaired copy together with the corrections that fired. Apply is
// idempotent: Apply(Apply(j)) yields the same judgment and no corrections.
func Apply(j schema.Judgment) (schema.Judgment, []Correction, error) {
	if err := EnsureReasoningCards(j.ReasoningCards); err != nil {
		return schema.Judgment{}, nil, err
	}

	var corrections []Correction
	out := j.Clone()

	if sig := NormalizeSignature(out.DriftSignature); sig != out.DriftSignature {
		out.DriftSignature = sig
		corrections = append(corrections, CorrectionSignature)
	}

	out, fixed := FixTemporalCompressionRefs(out)
	if fixed {
		corrections = append(corrections, CorrectionTemporalRefs)
	}

	if len(corrections) > 0 {
		logger := logging.New("guardrail")
		for _, c := range corrections {
			logger.Info("guardrail correction applied",
				slog.String("guardrail", string(c)),
				slog.String("analysis_id", out.AnalysisID))
		}
	}
	return out, corrections, nil
}

// Postprocess is Apply without the correction list.
func Postprocess(j schema.Judgment) (schema.Judgment, error) {
	out, _, err := Apply(j)
	return out, err
}

// ── Signature ────────────────────────────────────────────────────────────────

var dayNumberRe = regexp.MustCompile(`\d+`)

// InferSpanDays returns the largest day number found in the evidence day
// labels ("Day 5" → 5), or 1 when none parse.
func InferSpanDays(evidence []schema.EvidenceItem) int {
	maxDay := 0
	for _, e := range evidence {
		m := dayNumberRe.FindString(e.Day)
		if m == "" {
			continue
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if n > maxDay {
			maxDay = n
		}
	}
	if maxDay == 0 {
		return defaultSpanDays
	}
	return maxDay
}

var slugStripRe = regexp.MustCompile(`[^A-Z0-9_]`)

// Slug turns an intent title into a signature token: uppercase, spaces to
// underscores, cut to 20 characters, then anything outside [A-Z0-9_]
// removed. An empty result becomes "X".
func Slug(s string) string {
	t := []rune(strings.ReplaceAll(strings.ToUpper(s), " ", "_"))
	if len(t) > maxSlugLen {
		t = t[:maxSlugLen]
	}
	out := slugStripRe.ReplaceAllString(string(t), "")
	if out == "" {
		return "X"
	}
	return out
}

// BuildSignature derives a fresh drift signature from a judgment's own
// fields: IDR:v1|dir=BASE>CURR|span=Nd|e=N|conf=0.xx.
func BuildSignature(j schema.Judgment) string {
	conf := math.Min(schema.MaxConfidence, j.Confidence)
	sig := fmt.Sprintf("%sdir=%s>%s|span=%dd|e=%d|conf=%.*f",
		schema.SignaturePrefix,
		Slug(j.BaselineIntent.Title),
		Slug(j.CurrentIntent.Title),
		InferSpanDays(j.Evidence),
		len(j.Evidence),
		signatureConfidenceDigit, conf,
	)
	return NormalizeSignature(sig)
}
