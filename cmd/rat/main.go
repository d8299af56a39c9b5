// Command rat runs randomized differential tests against a pair of
// executables believed to be behaviorally equivalent.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/schollz/progressbar/v3"

	"github.com/reznakt/rat"
	"github.com/reznakt/rat/internal/compare"
	"github.com/reznakt/rat/internal/config"
	"github.com/reznakt/rat/internal/gen"
	"github.com/reznakt/rat/internal/harness"
	ratmcp "github.com/reznakt/rat/internal/mcp"
	"github.com/reznakt/rat/internal/report"
	"github.com/reznakt/rat/internal/runner"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("rat: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(rat.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "rat: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: rat <command> [flags]

Commands:
  run         Run differential trials against two executables
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "rat <command> -h" for command-specific flags.`)
}

// --- run ---

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	execA := fs.String("a", "", "path to the reference executable")
	execB := fs.String("b", "", "path to the candidate executable")
	trialsFlag := fs.Int("n", -1, "number of trials; 0 runs until failure (default from config)")
	timeoutFlag := fs.Duration("timeout", 0, "per-execution timeout (e.g. 1s, 500ms)")
	compareFlag := fs.String("compare", "", "fields to compare: exit_code,stdout,stderr")
	exhaustive := fs.Bool("exhaustive", false, "run every trial and collect all failures")
	genFlag := fs.String("gen", "", "external generator program, space-separated argv")
	seedFlag := fs.Uint64("seed", 0, "seed for the built-in random generator")
	jsonFlag := fs.Bool("json", false, "output the run report as JSON")
	quiet := fs.Bool("q", false, "suppress the progress bar")
	_ = fs.Parse(args)

	// Targets may also be given as two positional arguments.
	if *execA == "" && *execB == "" && fs.NArg() == 2 {
		*execA = fs.Arg(0)
		*execB = fs.Arg(1)
	}
	if *execA == "" || *execB == "" {
		return errors.New("two target executables are required (-a and -b, or two positional paths)")
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}
	cfg, err := config.Load(wd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	timeout := cfg.Timeout()
	if *timeoutFlag > 0 {
		timeout = *timeoutFlag
	}

	var policy compare.Policy
	if *compareFlag != "" {
		policy, err = compare.ParseFields(*compareFlag)
	} else {
		policy, err = cfg.Policy()
	}
	if err != nil {
		return err
	}

	r := &runner.Runner{Timeout: timeout, MaxOutput: cfg.MaxOutputBytes()}

	genArgv := strings.Fields(*genFlag)
	if len(genArgv) == 0 {
		genArgv = cfg.Generator.Argv
	}
	seed := *seedFlag
	if seed == 0 {
		seed = cfg.Generator.Seed
	}

	var generator harness.Generator
	if len(genArgv) > 0 {
		generator = &gen.Command{Argv: genArgv, Runner: r}
	} else {
		generator = gen.NewRand(seed, cfg.MaxStdin())
	}

	trials := *trialsFlag
	if trials < 0 {
		trials = cfg.Trials
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var bar *progressbar.ProgressBar
	if !*quiet && !*jsonFlag {
		bar = newTrialBar(trials)
	}

	h, err := harness.New(harness.Config{
		ExecA:      *execA,
		ExecB:      *execB,
		Generator:  generator,
		Policy:     policy,
		Runner:     r,
		Exhaustive: *exhaustive || cfg.Exhaustive,
		OnTrial: func(harness.Trial) {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})
	if err != nil {
		return err
	}

	rep, err := h.Run(ctx, trials)
	if bar != nil {
		_ = bar.Close()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("interrupted")
		}
		return err
	}

	result := report.FromReport(rep, policy)

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else if result.Passed {
		color.New(color.FgGreen, color.Bold).Fprintf(os.Stdout, "\nAll %d trial(s) passed\n", result.Trials)
	} else {
		printFailureReport(os.Stderr, result)
	}

	if !result.Passed {
		os.Exit(1)
	}
	return nil
}

func newTrialBar(trials int) *progressbar.ProgressBar {
	total := trials
	if total <= 0 {
		total = -1 // spinner for unbounded runs
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("trials"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
	)
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(ratmcp.Instructions)
		return nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}
	cfg, err := config.Load(wd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store := report.NewLRUStore(5, report.NewDiskStore())
	server := ratmcp.NewServer(cfg, store)

	if *httpAddr != "" {
		return serveHTTP(ctx, server, *httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
