// Package compare decides equivalence between two execution results
// under an enabled-fields policy.
package compare

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/reznakt/rat/internal/runner"
)

// Policy selects which result fields participate in comparison.
// Construct with NewPolicy or ParseFields; the zero Policy is invalid.
type Policy struct {
	ExitCode bool
	Stdout   bool
	Stderr   bool
}

// NewPolicy builds a Policy. At least one field must be enabled; a
// policy comparing nothing would declare every pair of results equal.
func NewPolicy(exitCode, stdout, stderr bool) (Policy, error) {
	if !exitCode && !stdout && !stderr {
		return Policy{}, errors.New("comparison policy must enable at least one field")
	}
	return Policy{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}, nil
}

// ParseFields builds a Policy from a comma-separated field list, e.g.
// "exit_code,stdout". Recognised names: exit_code (alias exit),
// stdout, stderr.
func ParseFields(s string) (Policy, error) {
	var p Policy
	for _, name := range strings.Split(s, ",") {
		switch strings.TrimSpace(name) {
		case "exit_code", "exit":
			p.ExitCode = true
		case "stdout":
			p.Stdout = true
		case "stderr":
			p.Stderr = true
		case "":
		default:
			return Policy{}, fmt.Errorf("unknown comparison field %q", name)
		}
	}
	return NewPolicy(p.ExitCode, p.Stdout, p.Stderr)
}

// Fields returns the names of the enabled fields.
func (p Policy) Fields() []string {
	var fields []string
	if p.ExitCode {
		fields = append(fields, "exit_code")
	}
	if p.Stdout {
		fields = append(fields, "stdout")
	}
	if p.Stderr {
		fields = append(fields, "stderr")
	}
	return fields
}

// Equal reports whether a and b agree on every field enabled in p.
// Disabled fields are ignored entirely.
func Equal(a, b *runner.Result, p Policy) bool {
	return len(Diff(a, b, p)) == 0
}

// Diff returns the names of the enabled fields on which a and b
// differ. Exit codes compare as integers; stdout and stderr compare
// byte-for-byte.
func Diff(a, b *runner.Result, p Policy) []string {
	var fields []string
	if p.ExitCode && a.ExitCode != b.ExitCode {
		fields = append(fields, "exit_code")
	}
	if p.Stdout && !bytes.Equal(a.Stdout, b.Stdout) {
		fields = append(fields, "stdout")
	}
	if p.Stderr && !bytes.Equal(a.Stderr, b.Stderr) {
		fields = append(fields, "stderr")
	}
	return fields
}
