package runner

import "fmt"

// Kind classifies a run-level failure. A failure is distinct from a
// deliberate nonzero exit, which is an ordinary Result.
type Kind string

const (
	// LaunchFailed means the executable could not be started at all:
	// missing file, no exec permission, or a spawn error.
	LaunchFailed Kind = "launch-failed"
	// TimedOut means the process outlived its timeout and was killed.
	TimedOut Kind = "timed-out"
	// Crashed means the process was terminated by a signal.
	Crashed Kind = "crashed"
)

// Failure reports that a run produced no usable Result.
type Failure struct {
	Kind   Kind
	Path   string // the executable that failed
	Signal string // terminating signal name, set for Crashed only
	Err    error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case TimedOut:
		return fmt.Sprintf("%s timed out", f.Path)
	case Crashed:
		return fmt.Sprintf("%s crashed with %s", f.Path, f.Signal)
	default:
		return fmt.Sprintf("launching %s: %v", f.Path, f.Err)
	}
}

func (f *Failure) Unwrap() error { return f.Err }
