package mcp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/reznakt/rat/internal/report"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from a rat_run result"`
	Trial int    `json:"trial,omitempty" jsonschema:"trial index to inspect; defaults to the first failing trial"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	if len(result.Failures) == 0 {
		return textResult(fmt.Sprintf("Run %s passed all %d trials; nothing to inspect.", params.RunID, result.Trials))
	}

	rec := result.Failures[0]
	if params.Trial > 0 {
		found := false
		for _, f := range result.Failures {
			if f.Index == params.Trial {
				rec, found = f, true
				break
			}
		}
		if !found {
			return errorResult(fmt.Sprintf("Run %s has no recorded failure at trial %d.", params.RunID, params.Trial))
		}
	}

	return textResult(formatInspect(result, rec))
}

func formatInspect(result *report.RunResult, rec report.TrialRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s\n", result.ID)
	fmt.Fprintf(&b, "Trial %d: %s\n", rec.Index, describeFailure(rec))
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "stdin: %s\n", strconv.Quote(string(rec.Stdin)))
	fmt.Fprintf(&b, "args:  %q\n", rec.Args)

	for _, side := range []report.SideRecord{rec.A, rec.B} {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "%s:\n", side.Path)
		if side.Failure != "" {
			if side.Signal != "" {
				fmt.Fprintf(&b, "  failure: %s (%s)\n", side.Failure, side.Signal)
			} else {
				fmt.Fprintf(&b, "  failure: %s\n", side.Failure)
			}
			continue
		}
		fmt.Fprintf(&b, "  exit code: %d\n", side.ExitCode)
		fmt.Fprintf(&b, "  stdout: %s\n", strconv.Quote(string(side.Stdout)))
		fmt.Fprintf(&b, "  stderr: %s\n", strconv.Quote(string(side.Stderr)))
		if side.Truncated {
			fmt.Fprintln(&b, "  (output truncated at the configured cap)")
		}
	}

	return b.String()
}
