package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/reznakt/rat/internal/compare"
	"github.com/reznakt/rat/internal/gen"
	"github.com/reznakt/rat/internal/harness"
	"github.com/reznakt/rat/internal/report"
	"github.com/reznakt/rat/internal/runner"
)

type runParams struct {
	ExecA      string   `json:"exec_a" jsonschema:"path to the reference executable"`
	ExecB      string   `json:"exec_b" jsonschema:"path to the candidate executable"`
	Trials     int      `json:"trials,omitempty" jsonschema:"number of trials to run; 0 uses the configured default"`
	Timeout    string   `json:"timeout,omitempty" jsonschema:"per-execution timeout as a Go duration (e.g. 1s, 500ms)"`
	Compare    string   `json:"compare,omitempty" jsonschema:"comma-separated fields to compare: exit_code, stdout, stderr. Defaults to the configuration (all fields)."`
	Exhaustive bool     `json:"exhaustive,omitempty" jsonschema:"run every trial and collect all failures instead of stopping at the first"`
	Generator  []string `json:"generator,omitempty" jsonschema:"argv of an external generator program printing one JSON case {stdin, args} per invocation. Defaults to the built-in random generator."`
	Seed       uint64   `json:"seed,omitempty" jsonschema:"seed for the built-in random generator"`
}

// defaultMCPTrials bounds a rat_run call when no trial count is given;
// an unbounded run makes no sense over a tool call.
const defaultMCPTrials = 100

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if params.ExecA == "" || params.ExecB == "" {
		return errorResult("exec_a and exec_b are required")
	}

	timeout := h.cfg.Timeout()
	if params.Timeout != "" {
		d, err := time.ParseDuration(params.Timeout)
		if err != nil || d <= 0 {
			return errorResult(fmt.Sprintf("invalid timeout %q", params.Timeout))
		}
		timeout = d
	}

	var policy compare.Policy
	var err error
	if params.Compare != "" {
		policy, err = compare.ParseFields(params.Compare)
	} else {
		policy, err = h.cfg.Policy()
	}
	if err != nil {
		return errorResult(err.Error())
	}

	r := &runner.Runner{Timeout: timeout, MaxOutput: h.cfg.MaxOutputBytes()}

	var generator harness.Generator
	if len(params.Generator) > 0 {
		generator = &gen.Command{Argv: params.Generator, Runner: r}
	} else {
		generator = gen.NewRand(params.Seed, h.cfg.MaxStdin())
	}

	hns, err := harness.New(harness.Config{
		ExecA:      params.ExecA,
		ExecB:      params.ExecB,
		Generator:  generator,
		Policy:     policy,
		Runner:     r,
		Exhaustive: params.Exhaustive,
	})
	if err != nil {
		return errorResult(err.Error())
	}

	trials := params.Trials
	if trials <= 0 {
		if trials = h.cfg.Trials; trials <= 0 {
			trials = defaultMCPTrials
		}
	}

	rep, err := hns.Run(ctx, trials)
	if err != nil {
		return errorResult(fmt.Sprintf("run failed: %v", err))
	}

	result := report.FromReport(rep, policy)
	_ = h.store.Save(result)

	return textResult(formatRun(result))
}

func formatRun(result *report.RunResult) string {
	var b strings.Builder

	if result.Passed {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s\n", result.ID)
	fmt.Fprintf(&b, "Targets: %s vs %s\n", result.ExecA, result.ExecB)
	fmt.Fprintf(&b, "Compared: %s\n", strings.Join(result.Fields, ", "))
	fmt.Fprintf(&b, "Trials: %d\n", result.Trials)
	fmt.Fprintln(&b)

	if result.Passed {
		fmt.Fprintln(&b, "All trials passed.")
		return b.String()
	}

	fmt.Fprintf(&b, "Divergences: %d\n", len(result.Failures))
	for _, f := range result.Failures {
		fmt.Fprintf(&b, "  trial %d: %s\n", f.Index, describeFailure(f))
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Inspect with rat_inspect(run_id=%q).\n", result.ID)

	return b.String()
}

// describeFailure gives a one-line cause for a failing trial.
func describeFailure(f report.TrialRecord) string {
	for _, side := range []report.SideRecord{f.A, f.B} {
		if side.Failure == "" {
			continue
		}
		msg := fmt.Sprintf("%s %s", side.Path, side.Failure)
		if side.Signal != "" {
			msg += " (" + side.Signal + ")"
		}
		return msg
	}
	return "differs on " + strings.Join(f.Diff, ", ")
}
