// Package profile defines the thinking-level profiles that modulate prompt
// construction. Each profile carries a Directive block that is inserted into
// the prompt ahead of the signals.
package profile

import (
	"fmt"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// Profile describes how deeply the model should reason for one thinking level.
type Profile struct {
	Level       schema.ThinkingLevel
	Description string
	Directive   string
	// MaxEvidence caps the evidence items the directive asks for. Zero means
	// no cap is requested.
	MaxEvidence int
}

// builtins is the registry of thinking-level profiles keyed by level.
var builtins = map[schema.ThinkingLevel]Profile{
	schema.ThinkingLow: {
		Level:       schema.ThinkingLow,
		Description: "Fast pass; short cards and at most three evidence items.",
		Directive: "Thinking Level: LOW\n" +
			"- Keep evidence to max 3 items, citing only the clearest signals.\n" +
			"- Each reasoning card body is 1–2 sentences.\n" +
			"- Prefer a direct verdict over hedging.",
		MaxEvidence: 3,
	},
	schema.ThinkingMedium: {
		Level:       schema.ThinkingMedium,
		Description: "Default depth; follows the base instructions only.",
		Directive: "Thinking Level: MEDIUM\n" +
			"- No extra constraints beyond the instructions above.",
	},
	schema.ThinkingHigh: {
		Level:       schema.ThinkingHigh,
		Description: "Deep pass; fuller cards and up to five evidence items.",
		Directive: "Thinking Level: HIGH\n" +
			"- Include up to 5 evidence items spanning the whole timeline.\n" +
			"- Each reasoning card body is 2–4 sentences.\n" +
			"- Reasoning cards together must cite at least 2 distinct Day references in refs.\n" +
			"- Weigh alternative explanations before settling on drift_detected.",
		MaxEvidence: 5,
	},
}

// Load returns the profile for the named level or an error if the name is
// unknown.
func Load(name string) (Profile, error) {
	level, ok := schema.ParseThinkingLevel(name)
	if !ok {
		return Profile{}, fmt.Errorf("profile: unknown thinking level %q (available: low, medium, high)", name)
	}
	return builtins[level], nil
}

// ForLevel returns the profile for level, falling back to medium for
// anything unrecognised.
func ForLevel(level schema.ThinkingLevel) Profile {
	if p, ok := builtins[level]; ok {
		return p
	}
	return builtins[schema.ThinkingMedium]
}
