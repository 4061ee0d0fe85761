// Package mcptools exposes drift analysis as MCP tools over stdio.
//
// Each tool is a struct holding the radar.Service, with Definition()
// returning the mcp.Tool schema and Handle() serving the call. Tool failures
// are reported as tool-level errors, never as protocol errors.
package mcptools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/radar"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/render"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/timeline"
)

// NewServer registers every tool on a fresh MCP server.
func NewServer(svc *radar.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"intent-drift-radar",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	analyze := NewAnalyzeTool(svc)
	s.AddTool(analyze.Definition(), analyze.Handle)

	ens := NewEnsembleTool(svc)
	s.AddTool(ens.Definition(), ens.Handle)

	fb := NewFeedbackTool(svc)
	s.AddTool(fb.Definition(), fb.Handle)

	return s
}

const instructions = `Intent Drift Radar compares a user's originally stated goal with their recent behaviour.
Pass a timeline as the "signals" argument: a JSON array of {"day","type","content"} objects in chronological order.
Use drift_analyze for one run, drift_ensemble for a consensus across reasoning depths, and drift_feedback to confirm or reject a past analysis.`

// signalsArg documents the shared signals parameter.
func signalsArg() mcp.ToolOption {
	return mcp.WithString("signals",
		mcp.Required(),
		mcp.Description(`Timeline as JSON (an array of {"day","type","content"} or an object {"signals": [...], "settings": {...}, "feedback": [...]}) or as a Markdown journal with one heading per day and one list item per signal.`),
	)
}

func formatArg() mcp.ToolOption {
	return mcp.WithString("format",
		mcp.Description("Result format: markdown (default) or json."),
		mcp.Enum("markdown", "json"),
	)
}

func thinkingArg() mcp.ToolOption {
	return mcp.WithString("thinking_level",
		mcp.Description("Reasoning depth for a single run. Overrides settings in the signals document."),
		mcp.Enum("low", "medium", "high"),
	)
}

// parseRequest decodes the signals argument and applies the thinking level
// override.
func parseRequest(req mcp.CallToolRequest) (schema.AnalyzeRequest, error) {
	raw := req.GetString("signals", "")
	if strings.TrimSpace(raw) == "" {
		return schema.AnalyzeRequest{}, fmt.Errorf("signals is required")
	}
	ar, err := timeline.Decode([]byte(raw))
	if err != nil {
		return schema.AnalyzeRequest{}, err
	}
	if lvl := req.GetString("thinking_level", ""); lvl != "" {
		level, ok := schema.ParseThinkingLevel(lvl)
		if !ok {
			return schema.AnalyzeRequest{}, fmt.Errorf("unknown thinking_level %q", lvl)
		}
		settings := ar.EffectiveSettings()
		settings.ThinkingLevel = level
		ar.Settings = &settings
	}
	return ar, nil
}

func formatOf(req mcp.CallToolRequest) render.Format {
	if strings.EqualFold(req.GetString("format", ""), "json") {
		return render.FormatJSON
	}
	return render.FormatMarkdown
}

// errorResult renders err with its code so the calling model can react.
func errorResult(prefix string, err error) *mcp.CallToolResult {
	if code := schema.CodeOf(err); code != "" {
		return mcp.NewToolResultError(fmt.Sprintf("%s [%s]: %v", prefix, code, err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}
