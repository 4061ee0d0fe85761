package render

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// Feedback renders stored feedback entries. JSON output wraps them as
// {"feedback": [...]}, matching the HTTP listing.
func Feedback(entries []schema.FeedbackEntry, f Format) (string, error) {
	if f == FormatJSON {
		if entries == nil {
			entries = []schema.FeedbackEntry{}
		}
		b, err := JSON(map[string][]schema.FeedbackEntry{"feedback": entries})
		return string(b), err
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Created", "Analysis", "Verdict", "Comment"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.CreatedAt, e.AnalysisID, string(e.Verdict), e.Comment})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 4, WidthMax: 60}})
	if f == FormatMarkdown {
		return t.RenderMarkdown(), nil
	}
	t.SetStyle(table.StyleLight)
	return t.Render(), nil
}
