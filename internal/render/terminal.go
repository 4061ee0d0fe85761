package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C7A89")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	labelStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	driftStyle = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	errorStyle = lipgloss.NewStyle().Foreground(colorError)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)
)

// panelWidth is the wrap width of panel content.
const panelWidth = 78

// JudgmentTerminal renders j as bordered panels for an interactive terminal.
// Colors degrade to plain text when the output is not a TTY.
func JudgmentTerminal(j *schema.Judgment) string {
	if j == nil {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left, judgmentPanels(j)...) + "\n"
}

// EnsembleTerminal renders the consensus plus an agreement panel.
func EnsembleTerminal(r *schema.EnsembleResponse) string {
	if r == nil {
		return ""
	}
	panels := judgmentPanels(&r.Consensus)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Agreement") + "\n")
	a := r.Agreement
	fmt.Fprintf(&b, "%s %d yes / %d no\n", labelStyle.Render("Drift votes:"), a.DriftDetectedVotes.True, a.DriftDetectedVotes.False)
	fmt.Fprintf(&b, "%s %.2f to %.2f\n", labelStyle.Render("Confidence:"), a.ConfidenceMin, a.ConfidenceMax)
	if len(a.DirectionVotes) > 0 {
		t := directionTable(a.DirectionVotes)
		t.SetStyle(table.StyleLight)
		b.WriteString(t.Render() + "\n")
	}
	if ev := evidenceTable(a.EvidenceAgreement); ev != nil {
		ev.SetStyle(table.StyleLight)
		b.WriteString(ev.Render() + "\n")
	}
	meta := fmt.Sprintf("modes %s | %dms", strings.Join(r.Meta.Modes, ","), r.Meta.DurationMS)
	if r.Meta.Partial {
		meta += " | partial"
	}
	b.WriteString(mutedStyle.Render(meta))
	for _, f := range r.Meta.Errors {
		b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("%s: %s %s", f.Mode, f.Code, f.Message)))
	}
	panels = append(panels, panelStyle.Render(b.String()))
	return lipgloss.JoinVertical(lipgloss.Left, panels...) + "\n"
}

func judgmentPanels(j *schema.Judgment) []string {
	var head strings.Builder
	head.WriteString(titleStyle.Render("Intent Drift Radar") + "\n")
	verdict := "No drift"
	style := labelStyle
	if j.DriftDetected {
		verdict = "Drift detected"
		style = driftStyle
	}
	fmt.Fprintf(&head, "%s  %s %.2f\n", style.Render(verdict), labelStyle.Render("confidence"), j.Confidence)
	if j.DriftDirection != "" {
		fmt.Fprintf(&head, "%s %s\n", labelStyle.Render("Direction:"), j.DriftDirection)
	}
	fmt.Fprintf(&head, "%s %s: %s\n", labelStyle.Render("Baseline:"), j.BaselineIntent.Title, j.BaselineIntent.Detail)
	fmt.Fprintf(&head, "%s %s: %s\n", labelStyle.Render("Current:"), j.CurrentIntent.Title, j.CurrentIntent.Detail)
	head.WriteString(mutedStyle.Render(j.DriftSignature))

	panels := []string{panelStyle.Width(panelWidth).Render(head.String())}

	if len(j.Evidence) > 0 {
		var b strings.Builder
		b.WriteString(titleStyle.Render("Evidence"))
		for _, e := range j.Evidence {
			fmt.Fprintf(&b, "\n%s %s", labelStyle.Render(e.Day), e.Reason)
		}
		panels = append(panels, panelStyle.Width(panelWidth).Render(b.String()))
	}

	for _, c := range j.ReasoningCards {
		body := titleStyle.Render(c.Title) + "\n" + c.Body
		if len(c.Refs) > 0 {
			body += "\n" + mutedStyle.Render("refs: "+strings.Join(c.Refs, ", "))
		}
		panels = append(panels, panelStyle.Width(panelWidth).Render(body))
	}

	if j.OneQuestion != nil && *j.OneQuestion != "" {
		panels = append(panels, panelStyle.Width(panelWidth).Render(labelStyle.Render("Question: ")+*j.OneQuestion))
	}
	return panels
}
