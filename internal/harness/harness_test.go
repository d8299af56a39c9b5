package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reznakt/rat/internal/compare"
	"github.com/reznakt/rat/internal/runner"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func staticGen(stdin string, args ...string) Generator {
	return GeneratorFunc(func(context.Context) (Input, error) {
		return Input{Stdin: []byte(stdin), Args: args}, nil
	})
}

func newHarness(t *testing.T, cfg Config) *Harness {
	t.Helper()
	if cfg.Policy.Fields() == nil {
		cfg.Policy = compare.Policy{ExitCode: true, Stdout: true, Stderr: true}
	}
	if cfg.Runner == nil {
		cfg.Runner = &runner.Runner{Timeout: 10 * time.Second}
	}
	h, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func TestNew_Validation(t *testing.T) {
	dir := t.TempDir()
	ok := writeScript(t, dir, "ok.sh", "exit 0")

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing target", Config{
			ExecA: filepath.Join(dir, "missing"), ExecB: ok,
			Generator: staticGen(""), Policy: compare.Policy{Stdout: true},
		}},
		{"target is a directory", Config{
			ExecA: dir, ExecB: ok,
			Generator: staticGen(""), Policy: compare.Policy{Stdout: true},
		}},
		{"nil generator", Config{
			ExecA: ok, ExecB: ok, Policy: compare.Policy{Stdout: true},
		}},
		{"degenerate policy", Config{
			ExecA: ok, ExecB: ok, Generator: staticGen(""),
		}},
	}
	for _, tt := range tests {
		if _, err := New(tt.cfg); err == nil {
			t.Errorf("%s: New succeeded, want error", tt.name)
		}
	}
}

func TestRun_SelfEquivalence(t *testing.T) {
	dir := t.TempDir()
	echo := writeScript(t, dir, "echo.sh", "cat")

	h := newHarness(t, Config{ExecA: echo, ExecB: echo, Generator: staticGen("payload")})
	rep, err := h.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Passed {
		t.Error("Passed = false for identical targets, want true")
	}
	if rep.Trials != 10 {
		t.Errorf("Trials = %d, want 10", rep.Trials)
	}
	if len(rep.Failures) != 0 {
		t.Errorf("Failures = %d, want 0", len(rep.Failures))
	}
}

func TestRun_ExitCodeDivergence(t *testing.T) {
	dir := t.TempDir()
	a := writeScript(t, dir, "a.sh", "echo ok; exit 0")
	b := writeScript(t, dir, "b.sh", "echo ok; exit 1")

	h := newHarness(t, Config{
		ExecA: a, ExecB: b, Generator: staticGen(""),
		Policy: compare.Policy{ExitCode: true, Stdout: true},
	})
	rep, err := h.Run(context.Background(), 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Passed {
		t.Error("Passed = true, want false")
	}
	// Fail-fast: the first trial diverges and stops the loop.
	if rep.Trials != 1 {
		t.Errorf("Trials = %d, want 1", rep.Trials)
	}
	if len(rep.Failures) != 1 {
		t.Fatalf("Failures = %d, want 1", len(rep.Failures))
	}
	f := rep.Failures[0]
	if f.A.Result.ExitCode != 0 || f.B.Result.ExitCode != 1 {
		t.Errorf("exit codes = %d vs %d, want 0 vs 1", f.A.Result.ExitCode, f.B.Result.ExitCode)
	}
}

func TestRun_DisabledFieldIgnored(t *testing.T) {
	dir := t.TempDir()
	a := writeScript(t, dir, "a.sh", "echo ok; exit 0")
	b := writeScript(t, dir, "b.sh", "echo ok; exit 1")

	h := newHarness(t, Config{
		ExecA: a, ExecB: b, Generator: staticGen(""),
		Policy: compare.Policy{Stdout: true},
	})
	rep, err := h.Run(context.Background(), 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Passed {
		t.Error("Passed = false under stdout-only policy, want true")
	}
	if rep.Trials != 5 {
		t.Errorf("Trials = %d, want 5", rep.Trials)
	}
}

func TestRun_Exhaustive(t *testing.T) {
	dir := t.TempDir()
	a := writeScript(t, dir, "a.sh", "echo a")
	b := writeScript(t, dir, "b.sh", "echo b")

	h := newHarness(t, Config{
		ExecA: a, ExecB: b, Generator: staticGen(""),
		Policy:     compare.Policy{Stdout: true},
		Exhaustive: true,
	})
	rep, err := h.Run(context.Background(), 3)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Trials != 3 {
		t.Errorf("Trials = %d, want 3", rep.Trials)
	}
	if len(rep.Failures) != 3 {
		t.Errorf("Failures = %d, want 3", len(rep.Failures))
	}
}

func TestRun_SameInputBothSides(t *testing.T) {
	dir := t.TempDir()
	echo := writeScript(t, dir, "echo.sh", `cat; printf '%s' "$@"`)

	// A fresh payload every trial: the run can only pass if each
	// trial delivers the identical input to both targets.
	i := 0
	gen := GeneratorFunc(func(context.Context) (Input, error) {
		i++
		return Input{
			Stdin: []byte(fmt.Sprintf("payload-%d", i)),
			Args:  []string{fmt.Sprintf("arg-%d", i)},
		}, nil
	})

	h := newHarness(t, Config{ExecA: echo, ExecB: echo, Generator: gen})
	rep, err := h.Run(context.Background(), 20)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Passed {
		t.Error("Passed = false, want true: input was not identical across sides")
	}
}

func TestRun_UntilFailure(t *testing.T) {
	dir := t.TempDir()
	a := writeScript(t, dir, "a.sh", "cat")
	b := writeScript(t, dir, "b.sh", `in=$(cat); if [ "$in" = "case-5" ]; then echo diverged; else printf '%s' "$in"; fi`)

	i := 0
	gen := GeneratorFunc(func(context.Context) (Input, error) {
		i++
		return Input{Stdin: fmt.Appendf(nil, "case-%d", i)}, nil
	})

	h := newHarness(t, Config{
		ExecA: a, ExecB: b, Generator: gen,
		Policy: compare.Policy{Stdout: true},
	})
	rep, err := h.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Passed {
		t.Error("Passed = true, want false")
	}
	if rep.Trials != 5 {
		t.Errorf("Trials = %d, want 5", rep.Trials)
	}
	if len(rep.Failures) != 1 || string(rep.Failures[0].Input.Stdin) != "case-5" {
		t.Errorf("Failures = %+v, want the case-5 trial", rep.Failures)
	}
}

func TestRun_UnboundedExhaustiveStopsAtFailure(t *testing.T) {
	dir := t.TempDir()
	a := writeScript(t, dir, "a.sh", "echo a")
	b := writeScript(t, dir, "b.sh", "echo b")

	// Exhaustive collection has no exhaustion point in unbounded
	// mode; the first failing trial must still end the run.
	h := newHarness(t, Config{
		ExecA: a, ExecB: b, Generator: staticGen(""),
		Policy:     compare.Policy{Stdout: true},
		Exhaustive: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rep, err := h.Run(ctx, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep == nil {
		t.Fatal("report = nil, want the collected failure")
	}
	if rep.Passed {
		t.Error("Passed = true, want false")
	}
	if rep.Trials != 1 {
		t.Errorf("Trials = %d, want 1", rep.Trials)
	}
	if len(rep.Failures) != 1 {
		t.Errorf("Failures = %d, want 1", len(rep.Failures))
	}
}

func TestRun_TimeoutIsTrialFailure(t *testing.T) {
	dir := t.TempDir()
	a := writeScript(t, dir, "a.sh", "echo ok")
	b := writeScript(t, dir, "b.sh", "sleep 30")

	h := newHarness(t, Config{
		ExecA: a, ExecB: b, Generator: staticGen("X"),
		Policy: compare.Policy{Stdout: true},
		Runner: &runner.Runner{Timeout: 200 * time.Millisecond},
	})

	start := time.Now()
	rep, err := h.Run(context.Background(), 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("run did not terminate within a bounded time")
	}
	if rep.Passed {
		t.Error("Passed = true, want false")
	}
	f := rep.Failures[0]
	if f.B.Failure == nil || f.B.Failure.Kind != runner.TimedOut {
		t.Errorf("B failure = %+v, want kind %q", f.B.Failure, runner.TimedOut)
	}
}

func TestRun_CrashFailsEvenWithExitCodeDisabled(t *testing.T) {
	dir := t.TempDir()
	a := writeScript(t, dir, "a.sh", "exit 0")
	b := writeScript(t, dir, "b.sh", "kill -ABRT $$")

	// Stdout-only policy, and both targets print nothing. The crash
	// must still fail the trial.
	h := newHarness(t, Config{
		ExecA: a, ExecB: b, Generator: staticGen(""),
		Policy: compare.Policy{Stdout: true},
	})
	rep, err := h.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Passed {
		t.Error("Passed = true, want false: a crash is never equivalent")
	}
	f := rep.Failures[0]
	if f.B.Failure == nil || f.B.Failure.Kind != runner.Crashed {
		t.Errorf("B failure = %+v, want kind %q", f.B.Failure, runner.Crashed)
	}
}

func TestRun_LaunchFailureIsTrialFailure(t *testing.T) {
	dir := t.TempDir()
	a := writeScript(t, dir, "a.sh", "exit 0")
	b := filepath.Join(dir, "b.sh")
	// Exists as a regular file, but not executable.
	if err := os.WriteFile(b, []byte("#!/bin/sh\nexit 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := newHarness(t, Config{ExecA: a, ExecB: b, Generator: staticGen("")})
	rep, err := h.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Passed {
		t.Error("Passed = true, want false")
	}
	f := rep.Failures[0]
	if f.B.Failure == nil || f.B.Failure.Kind != runner.LaunchFailed {
		t.Errorf("B failure = %+v, want kind %q", f.B.Failure, runner.LaunchFailed)
	}
}

func TestRun_GeneratorErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	ok := writeScript(t, dir, "ok.sh", "exit 0")

	genErr := errors.New("boom")
	gen := GeneratorFunc(func(context.Context) (Input, error) {
		return Input{}, genErr
	})

	h := newHarness(t, Config{ExecA: ok, ExecB: ok, Generator: gen})
	rep, err := h.Run(context.Background(), 5)
	if !errors.Is(err, genErr) {
		t.Fatalf("error = %v, want wrapped %v", err, genErr)
	}
	if rep != nil {
		t.Errorf("report = %+v, want nil on generator failure", rep)
	}
}

func TestRun_Cancellation(t *testing.T) {
	dir := t.TempDir()
	echo := writeScript(t, dir, "echo.sh", "cat")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	h := newHarness(t, Config{ExecA: echo, ExecB: echo, Generator: staticGen("x")})
	_, err := h.Run(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestRun_OnTrialHook(t *testing.T) {
	dir := t.TempDir()
	echo := writeScript(t, dir, "echo.sh", "cat")

	var seen []int
	h := newHarness(t, Config{
		ExecA: echo, ExecB: echo, Generator: staticGen("x"),
		OnTrial: func(tr Trial) { seen = append(seen, tr.Index) },
	})
	if _, err := h.Run(context.Background(), 3); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("hook saw %v, want [1 2 3]", seen)
	}
}
