// Command monthly launches the monthly cash-flow analysis from the
// directory containing the executable. A bare invocation (double-click
// or scheduled task) runs the analysis with the historical behavior:
// banner, pipeline, banner, optional pause, exit 0.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/deixis/monthly"
	"github.com/deixis/monthly/internal/anchor"
	"github.com/deixis/monthly/internal/config"
	"github.com/deixis/monthly/internal/console"
	"github.com/deixis/monthly/internal/launch"
	monmcp "github.com/deixis/monthly/internal/mcp"
	"github.com/deixis/monthly/internal/pyenv"
	"github.com/deixis/monthly/internal/report"
	"github.com/deixis/monthly/internal/runner"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("monthly: ")

	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 {
		switch {
		case args[0] == "-h" || args[0] == "--help":
			usage()
			return
		case strings.HasPrefix(args[0], "-"):
			// Bare flags belong to run, so `monthly -strict` works.
		default:
			cmd = args[0]
			args = args[1:]
		}
	}

	var err error
	switch cmd {
	case "run":
		err = runMain(args)
	case "env":
		err = envMain(args)
	case "history":
		err = historyMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(monthly.Version)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "monthly: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: monthly [command] [flags]

Commands:
  run         Run the analysis pipeline (default when no command is given)
  env         Show the resolved launch environment
  history     List recent runs
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "monthly <command> -h" for command-specific flags.`)
}

// --- run ---

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	strictFlag := fs.Bool("strict", false, "classify failures and propagate a meaningful exit code")
	pauseFlag := fs.String("pause", "", "pause before exit: auto, always, never (overrides config)")
	noPauseFlag := fs.Bool("no-pause", false, "shorthand for -pause=never")
	timeoutFlag := fs.Duration("timeout", 0, "bound each script's run time (e.g. 30m)")
	keepTempFlag := fs.Bool("keep-temp", false, "keep intermediate CSV/JSON files")
	targetFlag := fs.String("target", "", "run a single script instead of the configured pipeline")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dir, err := anchor.Dir()
	if err != nil {
		return err
	}
	if err := anchor.Enter(dir); err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *targetFlag != "" {
		cfg.Target = *targetFlag
	}
	if *keepTempFlag {
		cfg.KeepTemp = true
	}
	if *timeoutFlag > 0 {
		cfg.RawTimeout = timeoutFlag.String()
	}

	env := pyenv.Resolve(dir, cfg.Venv, cfg.Interpreter)

	r := &runner.Runner{
		Workspace: dir,
		Timeout:   cfg.Timeout(),
		Env:       env.Environ(os.Environ()),
	}

	eng := &launch.Engine{
		Config: cfg,
		Runner: r,
		Env:    env,
		Anchor: dir,
		Strict: *strictFlag,
	}

	res := eng.Run(ctx)

	store := report.NewLRUStore(5, report.NewDiskStore(filepath.Join(dir, config.DefaultRunsDir)))
	if err := store.Save(res.Record); err != nil {
		log.Printf("saving run record: %v", err)
	}

	if shouldPause(cfg, *pauseFlag, *noPauseFlag) {
		console.AwaitKeypress(os.Stdout, os.Stdin)
	}

	if *strictFlag {
		if code := res.ExitCode(); code != 0 {
			os.Exit(code)
		}
	}
	return nil
}

// shouldPause decides whether to wait for the operator before exiting.
// Flags win over config; auto pauses only when stdin is a terminal, so
// scheduled runs never hang.
func shouldPause(cfg *config.Config, pauseFlag string, noPause bool) bool {
	mode := cfg.PauseMode()
	if pauseFlag != "" {
		mode = pauseFlag
	}
	if noPause {
		mode = config.PauseNever
	}
	switch mode {
	case config.PauseAlways:
		return true
	case config.PauseNever:
		return false
	default:
		return console.Interactive()
	}
}

// --- env ---

func envMain(args []string) error {
	fs := flag.NewFlagSet("env", flag.ExitOnError)
	_ = fs.Parse(args)

	dir, err := anchor.Dir()
	if err != nil {
		return err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	env := pyenv.Resolve(dir, cfg.Venv, cfg.Interpreter)

	fmt.Printf("Anchor:      %s\n", dir)
	if env.Found() {
		fmt.Printf("Virtualenv:  %s\n", env.Root)
	} else {
		fmt.Println("Virtualenv:  not found (system interpreter fallback)")
	}
	if env.Interpreter != "" {
		fmt.Printf("Interpreter: %s\n", env.Interpreter)
	} else {
		fmt.Println("Interpreter: none found")
	}

	workbook := cfg.WorkbookName()
	if info, err := os.Stat(filepath.Join(dir, workbook)); err == nil {
		fmt.Printf("Workbook:    %s (last modified %s)\n", workbook, info.ModTime().Format("2006-01-02 15:04"))
	} else {
		fmt.Printf("Workbook:    %s (MISSING)\n", workbook)
	}

	fmt.Println("Steps:")
	for _, s := range cfg.PipelineSteps() {
		line := fmt.Sprintf("  %-10s %s", s.Name, s.Script)
		if s.Required {
			line += "  [required]"
		}
		if s.OnlyIf != "" {
			line += "  [requires " + s.OnlyIf + "]"
		}
		fmt.Println(line)
	}
	return nil
}

// --- history ---

func historyMain(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limitFlag := fs.Int("n", 10, "number of runs to show")
	_ = fs.Parse(args)

	dir, err := anchor.Dir()
	if err != nil {
		return err
	}

	store := report.NewDiskStore(filepath.Join(dir, config.DefaultRunsDir))
	recs, err := store.List(*limitFlag)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(recs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	for _, rec := range recs {
		fmt.Print(formatHistoryCLI(rec))
		fmt.Println()
	}
	return nil
}

func formatHistoryCLI(rec *report.RunRecord) string {
	var b []byte
	w := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
	}

	status := "ok"
	if rec.Failed() {
		status = "FAIL"
	}
	id := rec.ID
	if len(id) > 8 {
		id = id[:8]
	}
	w("%s  %s  %s\n", rec.Start.Format("2006-01-02 15:04"), id, status)

	if rec.WorkbookMissing {
		w("  workbook %q missing\n", rec.Workbook)
	}
	for _, s := range rec.Steps {
		switch s.Status {
		case report.StatusDone:
			w("  %-10s ok\n", s.Name)
		case report.StatusFailed:
			if s.Detail != "" {
				w("  %-10s FAIL (%s)\n", s.Name, s.Detail)
			} else {
				w("  %-10s FAIL (exit %d)\n", s.Name, s.ExitCode)
			}
		case report.StatusNoStart:
			w("  %-10s could not start\n", s.Name)
		case report.StatusSkipped:
			w("  %-10s -\n", s.Name)
		}
	}
	return string(b)
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(monmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr)
}

func serve(ctx context.Context, httpAddr string) error {
	dir, err := anchor.Dir()
	if err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	disk := report.NewDiskStore(filepath.Join(dir, config.DefaultRunsDir))
	store := report.NewLRUStore(5, disk)

	server := monmcp.NewServer(cfg, store, dir)

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
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
