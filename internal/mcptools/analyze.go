package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/radar"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/render"
)

// AnalyzeTool handles the drift_analyze MCP tool.
type AnalyzeTool struct {
	svc *radar.Service
}

// NewAnalyzeTool creates an AnalyzeTool.
func NewAnalyzeTool(svc *radar.Service) *AnalyzeTool {
	return &AnalyzeTool{svc: svc}
}

// Definition returns the MCP tool definition for drift_analyze.
func (t *AnalyzeTool) Definition() mcp.Tool {
	return mcp.NewTool("drift_analyze",
		mcp.WithDescription("Run one intent drift analysis over a timeline of signals and return the judgment."),
		signalsArg(),
		thinkingArg(),
		formatArg(),
	)
}

// Handle processes the drift_analyze tool call.
func (t *AnalyzeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ar, err := parseRequest(req)
	if err != nil {
		return mcp.NewToolResultError("invalid signals: " + err.Error()), nil
	}
	j, err := t.svc.Analyze(ctx, ar)
	if err != nil {
		return errorResult("analysis failed", err), nil
	}
	out, err := render.Judgment(j, formatOf(req))
	if err != nil {
		return errorResult("rendering failed", err), nil
	}
	return mcp.NewToolResultText(out), nil
}
