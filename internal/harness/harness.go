// Package harness drives repeated differential trials against a pair
// of target executables: generate a case, run both targets on it, and
// compare the outcomes.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/reznakt/rat/internal/compare"
	"github.com/reznakt/rat/internal/runner"
)

// Input is one generated test case: a stdin payload plus the argument
// list, delivered identically to both targets within a trial.
type Input struct {
	Stdin []byte
	Args  []string
}

// Generator produces one Input per trial. An error from Next is
// treated as a bug in the generator and aborts the whole run.
// Implementations live in internal/gen.
type Generator interface {
	Next(ctx context.Context) (Input, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context) (Input, error)

func (f GeneratorFunc) Next(ctx context.Context) (Input, error) { return f(ctx) }

// ProcessRunner executes one target against one case.
// Implemented by runner.Runner.
type ProcessRunner interface {
	Run(ctx context.Context, path string, args []string, stdin []byte) (*runner.Result, error)
}

// Side holds one target's outcome within a trial: either a Result or
// a run-level Failure, never both.
type Side struct {
	Path    string
	Result  *runner.Result
	Failure *runner.Failure
}

// Trial records one generate-execute-execute-compare cycle.
type Trial struct {
	Index  int // 1-based
	Input  Input
	A, B   Side
	Passed bool
}

// Report aggregates a whole run. Passed is true iff every executed
// trial passed. Failures holds each failing Trial in full, so a
// caller can reproduce the case by hand; in fail-fast mode it holds
// at most one entry.
type Report struct {
	ID       string
	ExecA    string
	ExecB    string
	Trials   int
	Passed   bool
	Failures []Trial
}

// Config configures a Harness.
type Config struct {
	ExecA, ExecB string
	Generator    Generator
	Policy       compare.Policy
	Runner       ProcessRunner // defaults to a zero runner.Runner
	Exhaustive   bool          // collect every failure instead of stopping at the first
	OnTrial      func(Trial)   // optional hook, called after each trial records
}

// Harness orchestrates trials against a fixed target pair.
type Harness struct {
	cfg Config
}

// New validates the configuration and builds a Harness. Both target
// paths must name regular files, the generator must be set, and the
// policy must enable at least one comparison field.
func New(cfg Config) (*Harness, error) {
	for _, path := range []string{cfg.ExecA, cfg.ExecB} {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("target %q: not a regular file", path)
		}
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if len(cfg.Policy.Fields()) == 0 {
		return nil, errors.New("comparison policy must enable at least one field")
	}
	if cfg.Runner == nil {
		cfg.Runner = &runner.Runner{}
	}
	return &Harness{cfg: cfg}, nil
}

// Run executes up to n trials, or loops until a failing trial when
// n <= 0. The loop stops early on the first failure unless the
// harness is exhaustive and n is bounded, and on context
// cancellation. An unbounded run always ends at its first failure;
// there is no exhaustion point for it to run to.
//
// Per-trial failures (divergence, launch failure, timeout, crash) are
// recorded in the Report. Only generator errors and cancellation
// surface as an error, in which case the Report is nil.
func (h *Harness) Run(ctx context.Context, n int) (*Report, error) {
	rep := &Report{
		ID:     uuid.New().String(),
		ExecA:  h.cfg.ExecA,
		ExecB:  h.cfg.ExecB,
		Passed: true,
	}

	for i := 1; n <= 0 || i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		in, err := h.cfg.Generator.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("generator: %w", err)
		}

		trial, err := h.trial(ctx, i, in)
		if err != nil {
			return nil, err
		}

		rep.Trials = i
		if !trial.Passed {
			rep.Passed = false
			rep.Failures = append(rep.Failures, trial)
		}
		if h.cfg.OnTrial != nil {
			h.cfg.OnTrial(trial)
		}
		if !trial.Passed && (!h.cfg.Exhaustive || n <= 0) {
			break
		}
	}

	return rep, nil
}

// trial runs both targets on the same input and compares the
// outcomes. A run-level failure on either side fails the trial
// outright, regardless of the policy: a crash or timeout is never
// equivalent to anything.
func (h *Harness) trial(ctx context.Context, index int, in Input) (Trial, error) {
	trial := Trial{Index: index, Input: in}

	var err error
	if trial.A, err = h.execute(ctx, h.cfg.ExecA, in); err != nil {
		return trial, err
	}
	if trial.B, err = h.execute(ctx, h.cfg.ExecB, in); err != nil {
		return trial, err
	}

	if trial.A.Failure == nil && trial.B.Failure == nil {
		trial.Passed = compare.Equal(trial.A.Result, trial.B.Result, h.cfg.Policy)
	}
	return trial, nil
}

func (h *Harness) execute(ctx context.Context, path string, in Input) (Side, error) {
	side := Side{Path: path}
	res, err := h.cfg.Runner.Run(ctx, path, in.Args, in.Stdin)
	if err != nil {
		var f *runner.Failure
		if errors.As(err, &f) {
			side.Failure = f
			return side, nil
		}
		// Cancellation or an irrecoverable spawn error.
		return side, err
	}
	side.Result = res
	return side, nil
}
