// Package gen provides test-case generators for the harness: a fixed
// case, seeded random payloads, and an external generator program.
package gen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/reznakt/rat/internal/harness"
)

// Static always yields the same case. The zero Static yields the
// empty case: no stdin, no arguments.
type Static struct {
	Input harness.Input
}

func (s Static) Next(context.Context) (harness.Input, error) {
	return s.Input, nil
}

// DefaultMaxStdin bounds the payload length of a Rand generator when
// no limit is configured.
const DefaultMaxStdin = 4096

// payload bytes drawn by Rand: printable ASCII plus newline, so a
// failing case can be re-fed to the targets by hand.
const randAlphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789 .,;:-_+*/=()[]{}\n"

// Rand yields random stdin payloads of random length, deterministic
// per seed. It generates no arguments. Not safe for concurrent use.
type Rand struct {
	rng    *rand.Rand
	maxLen int
}

// NewRand builds a Rand seeded with seed. A zero seed is replaced by
// a time-derived one, so repeated runs explore different cases; a
// failing case is always recorded in full, so reproduction does not
// depend on the seed. maxLen bounds the payload length; values <= 0
// fall back to DefaultMaxStdin.
func NewRand(seed uint64, maxLen int) *Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxStdin
	}
	return &Rand{
		rng:    rand.New(rand.NewPCG(seed, seed)),
		maxLen: maxLen,
	}
}

func (r *Rand) Next(context.Context) (harness.Input, error) {
	b := make([]byte, r.rng.IntN(r.maxLen+1))
	for i := range b {
		b[i] = randAlphabet[r.rng.IntN(len(randAlphabet))]
	}
	return harness.Input{Stdin: b}, nil
}

// Command obtains cases from an external generator program. On each
// trial the program is run with no stdin and must print a single JSON
// case to stdout:
//
//	{"stdin": "payload", "args": ["--flag", "value"]}
//
// Any misbehaviour of the program (failure to launch, a nonzero
// exit, undecodable output) is reported as an error and aborts
// the run.
type Command struct {
	Argv   []string // generator program and its fixed arguments
	Runner harness.ProcessRunner
}

type jsonCase struct {
	Stdin string   `json:"stdin"`
	Args  []string `json:"args"`
}

func (c *Command) Next(ctx context.Context) (harness.Input, error) {
	if len(c.Argv) == 0 {
		return harness.Input{}, errors.New("empty generator argv")
	}

	res, err := c.Runner.Run(ctx, c.Argv[0], c.Argv[1:], nil)
	if err != nil {
		return harness.Input{}, fmt.Errorf("running %s: %w", c.Argv[0], err)
	}
	if res.ExitCode != 0 {
		return harness.Input{}, fmt.Errorf("%s exited %d: %s", c.Argv[0], res.ExitCode, res.Stderr)
	}

	var jc jsonCase
	if err := json.Unmarshal(res.Stdout, &jc); err != nil {
		return harness.Input{}, fmt.Errorf("decoding case from %s: %w", c.Argv[0], err)
	}
	return harness.Input{Stdin: []byte(jc.Stdin), Args: jc.Args}, nil
}
