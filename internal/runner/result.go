package runner

// Result holds the observable behaviour of one completed program run.
type Result struct {
	ExitCode  int    // process exit code
	Stdout    []byte // captured stdout (may be truncated)
	Stderr    []byte // captured stderr (may be truncated)
	Truncated bool   // true if either stream exceeded the size cap
}
