package llm

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/profile"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

//go:embed prompt.md
var promptTemplate string

// feedbackIDLen is how much of a prior analysis id is shown to the model.
const feedbackIDLen = 8

// buildSystemPrompt assembles the system prompt: the base template followed by
// the thinking-level directive.
func buildSystemPrompt(prof profile.Profile) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(promptTemplate))
	sb.WriteString("\n\n")
	sb.WriteString(prof.Directive)
	return sb.String()
}

// buildUserPrompt assembles the timeline, the window sizes and any prior
// feedback.
func buildUserPrompt(req schema.AnalyzeRequest) string {
	settings := req.EffectiveSettings()
	var sb strings.Builder

	fmt.Fprintf(&sb, "Baseline window: first %d signals. Current window: last %d signals.\n\n",
		settings.BaselineWindowSize, settings.CurrentWindowSize)
	sb.WriteString(formatSignals(req.Signals))

	if fb := formatFeedback(req.Feedback); fb != "" {
		sb.WriteString("\n\n")
		sb.WriteString(fb)
	}

	sb.WriteString("\n\nProduce the JSON analysis now.")
	return sb.String()
}

// formatSignals renders "Signals:" followed by one "<day>: <content>" line per
// signal, in the order given.
func formatSignals(signals []schema.Signal) string {
	if len(signals) == 0 {
		return ""
	}
	lines := make([]string, 0, len(signals)+1)
	lines = append(lines, "Signals:")
	for _, s := range signals {
		lines = append(lines, s.Day+": "+s.Content)
	}
	return strings.Join(lines, "\n")
}

// formatFeedback renders prior verdicts, or "" when there are none.
func formatFeedback(feedback []schema.FeedbackEntry) string {
	if len(feedback) == 0 {
		return ""
	}
	lines := []string{"Prior feedback:"}
	for _, f := range feedback {
		label := "rejected"
		if f.Verdict == schema.VerdictConfirm {
			label = "confirmed"
		}
		id := f.AnalysisID
		if r := []rune(id); len(r) > feedbackIDLen {
			id = string(r[:feedbackIDLen])
		}
		lines = append(lines, fmt.Sprintf("- Analysis %s...: %s", id, label))
		if f.Comment != "" {
			lines = append(lines, "  Comment: "+f.Comment)
		}
	}
	return strings.Join(lines, "\n")
}
