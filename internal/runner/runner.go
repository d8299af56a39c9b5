// Package runner executes a single target program against one test
// case, feeding it a stdin payload, enforcing a timeout, and capturing
// its observable behaviour as raw bytes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// DefaultMaxOutput caps each captured stream when MaxOutput is unset.
const DefaultMaxOutput = 1 << 20 // 1 MB

// Runner executes target programs. Timeout bounds each run; zero
// means no limit. MaxOutput caps each captured stream in bytes.
type Runner struct {
	Timeout   time.Duration
	MaxOutput int
}

// Run executes path with args, writes stdin to the child's standard
// input and closes it, and waits for the child to exit. Stdout and
// stderr are captured byte-for-byte, with no text decoding.
//
// A normal exit, zero or not, yields a Result. A run-level failure
// (missing binary, timeout, death by signal) yields a *Failure error.
// On every path, including timeout and cancellation, the child is
// killed and reaped before Run returns.
func (r *Runner) Run(ctx context.Context, path string, args []string, stdin []byte) (*Result, error) {
	if path == "" {
		return nil, fmt.Errorf("empty executable path")
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	maxOutput := r.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	outW := &limitWriter{buf: &stdout, limit: maxOutput}
	errW := &limitWriter{buf: &stderr, limit: maxOutput}
	cmd.Stdout = outW
	cmd.Stderr = errW

	// Bounds the wait after a kill, so a grandchild holding the output
	// pipes open cannot stall the trial loop.
	cmd.WaitDelay = 2 * time.Second

	runErr := cmd.Run()

	result := &Result{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: outW.truncated || errW.truncated,
	}

	if runErr == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(runErr, exec.ErrWaitDelay):
		// The child itself exited; only its pipes were left open.
		result.ExitCode = cmd.ProcessState.ExitCode()
		return result, nil

	case errors.As(runErr, &exitErr):
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Failure{Kind: TimedOut, Path: path, Err: runErr}
		}
		if ctx.Err() != nil {
			// External cancellation; the child has been killed.
			return nil, ctx.Err()
		}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return nil, &Failure{
				Kind:   Crashed,
				Path:   path,
				Signal: ws.Signal().String(),
				Err:    runErr,
			}
		}
		result.ExitCode = exitErr.ExitCode()
		return result, nil

	case ctx.Err() != nil:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Failure{Kind: TimedOut, Path: path, Err: runErr}
		}
		return nil, ctx.Err()

	default:
		// Binary missing, not executable, or otherwise unlaunchable.
		return nil, &Failure{Kind: LaunchFailed, Path: path, Err: runErr}
	}
}

// limitWriter writes up to limit bytes to buf, then silently discards
// the rest. truncated is set only when bytes are actually dropped;
// output that exactly fills the cap is complete.
type limitWriter struct {
	buf       *bytes.Buffer
	limit     int
	truncated bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		if len(p) > 0 {
			w.truncated = true
		}
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Write only what fits, but report all bytes as consumed
		// to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		w.truncated = true
		return len(p), nil
	}
	return w.buf.Write(p)
}
