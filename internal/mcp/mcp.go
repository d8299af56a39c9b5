// Package mcp provides the rat MCP server, exposing differential runs
// and failure drill-down as tools.
package mcp

import (
	_ "embed"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/reznakt/rat"
	"github.com/reznakt/rat/internal/config"
	"github.com/reznakt/rat/internal/report"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	cfg   *config.Config
	store report.Store
}

// NewServer creates an MCP server with the rat tools registered.
func NewServer(cfg *config.Config, store report.Store) *mcp.Server {
	h := &handler{cfg: cfg, store: store}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "rat", Version: rat.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "rat_run",
		Description: `Run randomized differential trials against two executables.

Both targets receive the same generated stdin payload and arguments each trial;
their exit code, stdout, and stderr are compared byte-for-byte on the enabled
fields. Stops at the first divergence unless exhaustive=true. Results are
stored for drill-down via rat_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "rat_inspect",
		Description: `Drill into a failing trial from a rat_run result.

Use the run_id from the rat_run output. Returns the exact stdin payload,
argument list, and both targets' full results, sufficient to reproduce the
failing case by hand.`,
	}, h.inspectHandler)

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
