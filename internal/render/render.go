// Package render produces output from a judgment or a full ensemble response.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// Format selects an output rendering.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts json, markdown (or md) and text (or terminal).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "terminal":
		return FormatText, nil
	}
	return "", fmt.Errorf("render: unknown format %q (want json, markdown or text)", s)
}

// JSON produces a pretty-printed JSON representation of v.
func JSON(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("render: nil value")
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// Judgment renders a single judgment in format f.
func Judgment(j *schema.Judgment, f Format) (string, error) {
	switch f {
	case FormatMarkdown:
		return JudgmentMarkdown(j), nil
	case FormatText:
		return JudgmentTerminal(j), nil
	default:
		b, err := JSON(j)
		return string(b), err
	}
}

// Ensemble renders an ensemble response in format f.
func Ensemble(r *schema.EnsembleResponse, f Format) (string, error) {
	switch f {
	case FormatMarkdown:
		return EnsembleMarkdown(r), nil
	case FormatText:
		return EnsembleTerminal(r), nil
	default:
		b, err := JSON(r)
		return string(b), err
	}
}

// JudgmentMarkdown produces a GitHub-flavoured Markdown summary of j.
func JudgmentMarkdown(j *schema.Judgment) string {
	if j == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Intent Drift Report\n\n")
	writeJudgmentBody(&sb, j)
	return sb.String()
}

// EnsembleMarkdown adds the agreement tables and run metadata to the
// consensus summary.
func EnsembleMarkdown(r *schema.EnsembleResponse) string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Intent Drift Report (ensemble)\n\n")
	fmt.Fprintf(&sb, "**Modes:** %s | **Duration:** %dms", strings.Join(r.Meta.Modes, ", "), r.Meta.DurationMS)
	if r.Meta.Partial {
		sb.WriteString(" | **Partial:** yes")
	}
	sb.WriteString("\n\n")
	writeJudgmentBody(&sb, &r.Consensus)

	a := r.Agreement
	sb.WriteString("### Agreement\n\n")
	fmt.Fprintf(&sb, "**Drift votes:** %d yes / %d no  \n", a.DriftDetectedVotes.True, a.DriftDetectedVotes.False)
	fmt.Fprintf(&sb, "**Confidence range:** %.2f to %.2f\n\n", a.ConfidenceMin, a.ConfidenceMax)

	if len(a.DirectionVotes) > 0 {
		sb.WriteString("#### Direction votes\n\n")
		sb.WriteString(directionTable(a.DirectionVotes).RenderMarkdown())
		sb.WriteString("\n\n")
	}

	if ev := evidenceTable(a.EvidenceAgreement); ev != nil {
		sb.WriteString("#### Evidence agreement\n\n")
		sb.WriteString(ev.RenderMarkdown())
		sb.WriteString("\n\n")
	}

	if len(r.Meta.Errors) > 0 {
		sb.WriteString("#### Failed runs\n\n")
		sb.WriteString(failureTable(r.Meta.Errors).RenderMarkdown())
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func writeJudgmentBody(sb *strings.Builder, j *schema.Judgment) {
	detected := "no"
	if j.DriftDetected {
		detected = "yes"
	}
	fmt.Fprintf(sb, "**Drift detected:** %s  \n", detected)
	fmt.Fprintf(sb, "**Confidence:** %.2f  \n", j.Confidence)
	if j.DriftDirection != "" {
		fmt.Fprintf(sb, "**Direction:** %s  \n", mdEscape(j.DriftDirection))
	}
	fmt.Fprintf(sb, "**Signature:** `%s`\n\n", j.DriftSignature)

	fmt.Fprintf(sb, "**Baseline:** %s. %s  \n", mdEscape(j.BaselineIntent.Title), mdEscape(j.BaselineIntent.Detail))
	fmt.Fprintf(sb, "**Current:** %s. %s\n\n", mdEscape(j.CurrentIntent.Title), mdEscape(j.CurrentIntent.Detail))

	if len(j.Evidence) > 0 {
		sb.WriteString("### Evidence\n\n")
		for _, e := range j.Evidence {
			fmt.Fprintf(sb, "- **%s**: %s\n", e.Day, mdEscape(e.Reason))
		}
		sb.WriteString("\n")
	}

	if len(j.ReasoningCards) > 0 {
		sb.WriteString("### Reasoning\n\n")
		for _, c := range j.ReasoningCards {
			fmt.Fprintf(sb, "<details>\n<summary><strong>%s</strong></summary>\n\n%s\n\n", c.Title, c.Body)
			if len(c.Refs) > 0 {
				fmt.Fprintf(sb, "_Refs: %s_\n\n", strings.Join(c.Refs, ", "))
			}
			sb.WriteString("</details>\n\n")
		}
	}

	if j.OneQuestion != nil && *j.OneQuestion != "" {
		fmt.Fprintf(sb, "**Question:** %s\n\n", mdEscape(*j.OneQuestion))
	}
}

func directionTable(votes []schema.DirectionVote) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Direction", "Runs"})
	for _, v := range votes {
		t.AppendRow(table.Row{v.Value, v.Count})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	return t
}

// evidenceTable returns nil when no bucket has items.
func evidenceTable(ea schema.EvidenceAgreement) table.Writer {
	buckets := []struct {
		label string
		items []schema.EvidenceItem
	}{
		{"all runs", ea.ThreeOfThree},
		{"two runs", ea.TwoOfThree},
		{"one run", ea.OneOfThree},
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Agreement", "Day", "Reason"})
	rows := 0
	for _, b := range buckets {
		for _, e := range b.items {
			t.AppendRow(table.Row{b.label, e.Day, e.Reason})
			rows++
		}
	}
	if rows == 0 {
		return nil
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 80}})
	return t
}

func failureTable(failures []schema.RunFailure) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Mode", "Code", "Message"})
	for _, f := range failures {
		t.AppendRow(table.Row{f.Mode, string(f.Code), f.Message})
	}
	return t
}

// mdEscape replaces characters that would break inline Markdown.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
