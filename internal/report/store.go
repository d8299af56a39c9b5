// Package report provides structured retention and retrieval of
// differential run results, so a failing case can be drilled into
// after the run summary has been delivered.
package report

import (
	"github.com/reznakt/rat/internal/compare"
	"github.com/reznakt/rat/internal/harness"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult is the stored form of a harness run.
type RunResult struct {
	ID       string        `json:"id"`
	ExecA    string        `json:"exec_a"`
	ExecB    string        `json:"exec_b"`
	Fields   []string      `json:"fields"` // compared fields
	Trials   int           `json:"trials"`
	Passed   bool          `json:"passed"`
	Failures []TrialRecord `json:"failures,omitempty"`
}

// TrialRecord holds one failing trial with everything needed to
// reproduce it by hand: the exact stdin payload, the argument list,
// and both sides' outcomes.
type TrialRecord struct {
	Index int        `json:"index"`
	Stdin []byte     `json:"stdin"`
	Args  []string   `json:"args,omitempty"`
	A     SideRecord `json:"a"`
	B     SideRecord `json:"b"`
	Diff  []string   `json:"diff,omitempty"` // differing fields; empty when a side failed
}

// SideRecord holds one target's outcome within a failing trial.
type SideRecord struct {
	Path      string `json:"path"`
	ExitCode  int    `json:"exit_code"`
	Stdout    []byte `json:"stdout"`
	Stderr    []byte `json:"stderr"`
	Truncated bool   `json:"truncated,omitempty"`
	Failure   string `json:"failure,omitempty"` // launch-failed, timed-out, crashed
	Signal    string `json:"signal,omitempty"`  // terminating signal, crashed only
}

// FromReport converts a harness report into its stored form.
func FromReport(rep *harness.Report, policy compare.Policy) *RunResult {
	result := &RunResult{
		ID:     rep.ID,
		ExecA:  rep.ExecA,
		ExecB:  rep.ExecB,
		Fields: policy.Fields(),
		Trials: rep.Trials,
		Passed: rep.Passed,
	}
	for _, trial := range rep.Failures {
		rec := TrialRecord{
			Index: trial.Index,
			Stdin: trial.Input.Stdin,
			Args:  trial.Input.Args,
			A:     sideRecord(trial.A),
			B:     sideRecord(trial.B),
		}
		if trial.A.Failure == nil && trial.B.Failure == nil {
			rec.Diff = compare.Diff(trial.A.Result, trial.B.Result, policy)
		}
		result.Failures = append(result.Failures, rec)
	}
	return result
}

func sideRecord(s harness.Side) SideRecord {
	rec := SideRecord{Path: s.Path}
	if s.Failure != nil {
		rec.Failure = string(s.Failure.Kind)
		rec.Signal = s.Failure.Signal
		return rec
	}
	rec.ExitCode = s.Result.ExitCode
	rec.Stdout = s.Result.Stdout
	rec.Stderr = s.Result.Stderr
	rec.Truncated = s.Result.Truncated
	return rec
}
