// Package mcp provides the monthly MCP server, exposing the launch
// engine, the run history, and the resolved environment as tools.
package mcp

import (
	_ "embed"

	"github.com/deixis/monthly"
	"github.com/deixis/monthly/internal/config"
	"github.com/deixis/monthly/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	cfg    *config.Config
	store  report.Store
	anchor string
}

// NewServer creates an MCP server with all monthly tools registered.
// anchorDir is the directory containing the launcher and the analysis
// scripts; every run is anchored there.
func NewServer(cfg *config.Config, store report.Store, anchorDir string) *mcp.Server {
	h := &handler{cfg: cfg, store: store, anchor: anchorDir}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "monthly", Version: monthly.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "flow_run",
		Description: `Run the monthly cash-flow analysis pipeline and report the outcome.

Runs the configured scripts in the launcher's anchor directory with the
virtual environment resolved explicitly. Output is captured, the run is
recorded for flow_history, and failures are classified (could not start
vs. script failed).`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "flow_history",
		Description: "List recent analysis runs with per-step outcomes.",
	}, h.historyHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "flow_env",
		Description: "Describe the resolved launch environment: anchor directory, interpreter, workbook, pipeline steps.",
	}, h.envHandler)

	return s
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
