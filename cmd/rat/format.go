package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"

	"github.com/reznakt/rat/internal/report"
)

var (
	headFail   = color.New(color.FgRed, color.Bold)
	headOK     = color.New(color.FgGreen, color.Bold)
	headTarget = color.New(color.FgBlue, color.Bold)
	headField  = color.New(color.FgMagenta, color.Bold)
	headOut    = color.New(color.FgYellow, color.Bold)
	valueBad   = color.New(color.FgRed)
	valueGood  = color.New(color.FgGreen)
)

// printFailureReport writes the human-readable divergence dump: the
// triggering input and both targets' full results, enough to re-run
// the case by hand.
func printFailureReport(w io.Writer, result *report.RunResult) {
	headFail.Fprintf(w, "\nFalsified after %d trial(s)!\n\n", result.Trials)

	for i, rec := range result.Failures {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printTrial(w, rec)
	}
}

func printTrial(w io.Writer, rec report.TrialRecord) {
	headOK.Fprintf(w, "trial %d\n\n", rec.Index)

	headOK.Fprintln(w, "stdin:")
	fmt.Fprintf(w, "%s\n\n", strconv.Quote(string(rec.Stdin)))

	headOK.Fprintln(w, "args:")
	fmt.Fprintf(w, "%q\n\n", rec.Args)

	for _, side := range []report.SideRecord{rec.A, rec.B} {
		printSide(w, side)
	}
}

func printSide(w io.Writer, side report.SideRecord) {
	headTarget.Fprintf(w, "%s:\n\n", side.Path)

	if side.Failure != "" {
		headField.Fprint(w, "failure: ")
		if side.Signal != "" {
			valueBad.Fprintf(w, "%s (%s)\n\n", side.Failure, side.Signal)
		} else {
			valueBad.Fprintf(w, "%s\n\n", side.Failure)
		}
		return
	}

	headField.Fprint(w, "exit code: ")
	if side.ExitCode != 0 {
		valueBad.Fprintf(w, "%d\n\n", side.ExitCode)
	} else {
		valueGood.Fprintf(w, "%d\n\n", side.ExitCode)
	}

	headOut.Fprintln(w, "stdout:")
	fmt.Fprintf(w, "%s\n\n", strconv.Quote(string(side.Stdout)))

	headFail.Fprintln(w, "stderr:")
	fmt.Fprintf(w, "%s\n\n", strconv.Quote(string(side.Stderr)))

	if side.Truncated {
		fmt.Fprintln(w, "(output truncated at the configured cap)")
	}
}
