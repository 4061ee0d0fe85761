package mcptools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/radar"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// FeedbackTool handles the drift_feedback MCP tool.
type FeedbackTool struct {
	svc *radar.Service
}

// NewFeedbackTool creates a FeedbackTool.
func NewFeedbackTool(svc *radar.Service) *FeedbackTool {
	return &FeedbackTool{svc: svc}
}

// Definition returns the MCP tool definition for drift_feedback.
func (t *FeedbackTool) Definition() mcp.Tool {
	return mcp.NewTool("drift_feedback",
		mcp.WithDescription("Record whether a past analysis was right. Feedback can be passed to later analyses as prior context."),
		mcp.WithString("analysis_id",
			mcp.Required(),
			mcp.Description("The analysis_id of the judgment being rated."),
		),
		mcp.WithString("verdict",
			mcp.Required(),
			mcp.Description("confirm if the drift call was right, reject if not."),
			mcp.Enum("confirm", "reject"),
		),
		mcp.WithString("comment",
			mcp.Description("Optional free-text comment."),
		),
	)
}

// Handle processes the drift_feedback tool call.
func (t *FeedbackTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	saved, err := t.svc.AddFeedback(schema.FeedbackEntry{
		AnalysisID: req.GetString("analysis_id", ""),
		Verdict:    schema.FeedbackVerdict(req.GetString("verdict", "")),
		Comment:    req.GetString("comment", ""),
	})
	if err != nil {
		return errorResult("feedback not saved", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Feedback saved: %s %s at %s.", saved.AnalysisID, saved.Verdict, saved.CreatedAt)), nil
}
