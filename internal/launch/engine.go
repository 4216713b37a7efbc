// Package launch sequences a monthly analysis run: opening banner,
// workbook check, environment-aware script invocations, temp-file
// cleanup, and the fixed completion banner. It is consumed by both the
// CLI and the MCP server.
package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/deixis/monthly/internal/config"
	"github.com/deixis/monthly/internal/console"
	"github.com/deixis/monthly/internal/pyenv"
	"github.com/deixis/monthly/internal/report"
	"github.com/deixis/monthly/internal/runner"
	"github.com/google/uuid"
)

// CommandRunner executes commands within the anchor directory.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// Engine holds shared dependencies for a launch.
type Engine struct {
	Config *config.Config
	Runner CommandRunner
	Env    *pyenv.Descriptor
	Anchor string    // directory containing the launcher; scripts resolve against it
	Out    io.Writer // operator console; defaults to os.Stdout

	// Strict switches on outcome reporting. The default reproduces the
	// historical launcher: failures leave only whatever the failing
	// script printed itself, and the flow runs to the completion banner
	// regardless.
	Strict bool
}

// Result holds the outcome of one launch.
type Result struct {
	Record    *report.RunRecord
	FailedIdx int // index of the first failing step; -1 when none failed
}

// ExitCode returns the strict-mode process exit code: 0 clean, 1 when a
// script ran and failed, 3 when the analysis could not start at all
// (workbook abort, missing interpreter, or missing script).
func (r *Result) ExitCode() int {
	rec := r.Record
	if rec.Aborted {
		return 3
	}
	if f := rec.FirstFailure(); f != nil {
		if f.Status == report.StatusNoStart {
			return 3
		}
		return 1
	}
	return 0
}

// Run executes the launch sequence. Every run attempts each step at
// most once, in order, and always reaches the completion banner; Run
// itself never fails. The caller decides what to do with the record.
func (e *Engine) Run(ctx context.Context) *Result {
	out := e.out()
	start := time.Now()

	rec := &report.RunRecord{
		ID:          uuid.New().String(),
		Start:       start,
		Strict:      e.Strict,
		Interpreter: e.Env.Interpreter,
		VenvFound:   e.Env.Found(),
		Workbook:    e.Config.WorkbookName(),
	}

	console.StartBanner(out, start)

	e.checkWorkbook(rec, out)

	if e.Strict && !e.Env.Found() {
		fmt.Fprintf(out, "\nVirtual environment not found next to the launcher; using %s\n", interpreterLabel(e.Env))
	}

	steps := e.Config.PipelineSteps()
	rec.Steps = make([]report.StepRecord, len(steps))
	for i, s := range steps {
		rec.Steps[i] = report.StepRecord{Name: s.Name, Script: s.Script, Status: report.StatusSkipped}
	}

	// The three-script pipeline has nothing to do without its source
	// workbook, and strict callers always honor the precheck. A
	// configured target reproduces the bare launcher, which invokes
	// unconditionally: the missing workbook is recorded, not acted on.
	rec.Aborted = rec.WorkbookMissing && (e.Strict || e.Config.Target == "")

	failedIdx := -1
	if !rec.Aborted {
		failedIdx = e.runSteps(ctx, steps, rec, out)
	}

	rec.CleanedTemp = e.cleanupTemp(out)
	rec.End = time.Now()

	console.CompletionBanner(out)

	if e.Strict && rec.Failed() {
		e.printFailure(rec, out)
	}

	return &Result{Record: rec, FailedIdx: failedIdx}
}

// checkWorkbook verifies the source workbook exists before anything is
// invoked and records its modification time for the operator.
func (e *Engine) checkWorkbook(rec *report.RunRecord, out io.Writer) {
	path := filepath.Join(e.Anchor, rec.Workbook)
	info, err := os.Stat(path)
	if err != nil {
		rec.WorkbookMissing = true
		fmt.Fprintf(out, "\nWorkbook not found: %s\n", path)
		fmt.Fprintln(out, "Place the Excel file next to the launcher and run again.")
		return
	}
	rec.WorkbookModified = info.ModTime()
	fmt.Fprintf(out, "\nWorkbook: %s (last modified %s)\n", rec.Workbook, info.ModTime().Format("02/01/2006 15:04"))
}

// runSteps invokes each pipeline step exactly once, stopping early only
// when a required step fails. Returns the index of the first failure,
// or -1.
func (e *Engine) runSteps(ctx context.Context, steps []config.StepConfig, rec *report.RunRecord, out io.Writer) int {
	failedIdx := -1
	for i, step := range steps {
		if step.OnlyIf != "" {
			if _, err := os.Stat(filepath.Join(e.Anchor, step.OnlyIf)); err != nil {
				rec.Steps[i].Detail = step.OnlyIf + " not found"
				fmt.Fprintf(out, "\n%s not found, skipping %s.\n", step.OnlyIf, step.Name)
				continue
			}
		}

		console.StepBanner(out, step.Name, step.Script)

		argv := []string{e.Env.Interpreter, filepath.Join(e.Anchor, step.Script)}
		res, err := e.Runner.Run(ctx, argv, "")
		switch {
		case err != nil:
			rec.Steps[i].Status = report.StatusNoStart
			rec.Steps[i].Detail = err.Error()
		case res.ExitCode != 0:
			rec.Steps[i].Status = report.StatusFailed
			rec.Steps[i].ExitCode = res.ExitCode
			rec.Steps[i].DurationMS = res.Duration.Milliseconds()
			if res.TimedOut {
				rec.Steps[i].Detail = "timed out"
			}
		default:
			rec.Steps[i].Status = report.StatusDone
			rec.Steps[i].DurationMS = res.Duration.Milliseconds()
		}

		if rec.Steps[i].Status == report.StatusDone {
			continue
		}
		if failedIdx < 0 {
			failedIdx = i
		}
		if e.Strict {
			fmt.Fprintf(out, "\n%s\n", stepFailureLine(&rec.Steps[i]))
		}
		if step.Required {
			// Remaining steps stay skipped. There are no retries.
			break
		}
	}
	return failedIdx
}

// cleanupTemp removes the intermediate files the extraction step leaves
// behind. Missing files are not an error.
func (e *Engine) cleanupTemp(out io.Writer) int {
	files := e.Config.CleanupFiles()
	removed := 0
	for _, name := range files {
		if err := os.Remove(filepath.Join(e.Anchor, name)); err == nil {
			removed++
		}
	}
	if removed > 0 {
		fmt.Fprintf(out, "\nRemoved %d temporary files.\n", removed)
	}
	return removed
}

// printFailure writes the strict-mode failure summary, one line per the
// three failure kinds: analysis never started, script could not start,
// script exited non-zero.
func (e *Engine) printFailure(rec *report.RunRecord, out io.Writer) {
	if rec.Aborted {
		fmt.Fprintf(out, "\nAnalysis not started: workbook %q is missing.\n", rec.Workbook)
		return
	}
	if f := rec.FirstFailure(); f != nil {
		fmt.Fprintf(out, "\nAnalysis failed: %s\n", stepFailureLine(f))
	}
}

func stepFailureLine(s *report.StepRecord) string {
	if s.Status == report.StatusNoStart {
		return fmt.Sprintf("step %s could not start: %s", s.Name, s.Detail)
	}
	if s.Detail != "" {
		return fmt.Sprintf("step %s %s", s.Name, s.Detail)
	}
	return fmt.Sprintf("step %s exited with code %d", s.Name, s.ExitCode)
}

func interpreterLabel(d *pyenv.Descriptor) string {
	if d.Interpreter == "" {
		return "no interpreter (none found on PATH)"
	}
	return d.Interpreter
}

func (e *Engine) out() io.Writer {
	if e.Out != nil {
		return e.Out
	}
	return os.Stdout
}
