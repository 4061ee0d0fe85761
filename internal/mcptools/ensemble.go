package mcptools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/radar"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/render"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// EnsembleTool handles the drift_ensemble MCP tool.
type EnsembleTool struct {
	svc *radar.Service
}

// NewEnsembleTool creates an EnsembleTool.
func NewEnsembleTool(svc *radar.Service) *EnsembleTool {
	return &EnsembleTool{svc: svc}
}

// Definition returns the MCP tool definition for drift_ensemble.
func (t *EnsembleTool) Definition() mcp.Tool {
	return mcp.NewTool("drift_ensemble",
		mcp.WithDescription(
			"Run the analysis at several reasoning depths in parallel and return a consensus judgment with agreement statistics. "+
				"Needs at least two successful runs.",
		),
		signalsArg(),
		mcp.WithString("modes",
			mcp.Description("Comma-separated reasoning depths to run (default: low,medium,high)."),
		),
		formatArg(),
	)
}

// Handle processes the drift_ensemble tool call.
func (t *EnsembleTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ar, err := parseRequest(req)
	if err != nil {
		return mcp.NewToolResultError("invalid signals: " + err.Error()), nil
	}
	er := schema.EnsembleRequest{
		Signals:  ar.Signals,
		Settings: ar.Settings,
		Feedback: ar.Feedback,
		Modes:    splitModes(req.GetString("modes", "")),
	}
	resp, err := t.svc.Ensemble(ctx, er)
	if err != nil {
		return errorResult("ensemble failed", err), nil
	}
	out, err := render.Ensemble(resp, formatOf(req))
	if err != nil {
		return errorResult("rendering failed", err), nil
	}
	return mcp.NewToolResultText(out), nil
}

func splitModes(s string) []string {
	var modes []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			modes = append(modes, strings.ToLower(m))
		}
	}
	return modes
}
