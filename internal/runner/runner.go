// Package runner executes analysis scripts as child processes bound to
// the anchor directory, with an explicitly constructed environment and
// a captured exit status.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Runner executes commands within the anchor directory boundary.
type Runner struct {
	Workspace string        // anchor directory; children run here
	Timeout   time.Duration // zero means no timeout
	Env       []string      // child environment; nil inherits the launcher's
	Stdout    io.Writer     // defaults to os.Stdout (inherited console)
	Stderr    io.Writer     // defaults to os.Stderr
}

// Run executes a command with the given argv. The first element is the
// binary to invoke, the rest are arguments. cwd is resolved relative to
// the workspace root and must remain within it. A non-zero child exit
// is a Result, not an error; an error means the child never started.
func (r *Runner) Run(ctx context.Context, argv []string, cwd string) (*Result, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("empty argv")
	}

	dir, err := r.resolveDir(cwd)
	if err != nil {
		return nil, err
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	runID := uuid.New().String()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = r.Env
	cmd.Stdout = r.stdout()
	cmd.Stderr = r.stderr()

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// Interpreter or script missing, not executable, and so on:
			// the child never started.
			return nil, fmt.Errorf("starting %s: %w", argv[0], runErr)
		}
	}

	return &Result{
		RunID:    runID,
		ExitCode: exitCode,
		Duration: elapsed,
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
	}, nil
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

// resolveDir resolves cwd relative to the workspace and validates it
// is within the workspace boundary.
func (r *Runner) resolveDir(cwd string) (string, error) {
	if cwd == "" {
		return r.Workspace, nil
	}

	var dir string
	if filepath.IsAbs(cwd) {
		dir = filepath.Clean(cwd)
	} else {
		dir = filepath.Clean(filepath.Join(r.Workspace, cwd))
	}

	rel, err := filepath.Rel(r.Workspace, dir)
	if err != nil {
		return "", fmt.Errorf("resolving cwd: %w", err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("cwd %q is outside workspace %q", cwd, r.Workspace)
	}
	return dir, nil
}

// LimitWriter returns a writer that forwards at most limit bytes to w
// and silently discards the rest. Callers that capture child output
// instead of inheriting the console use it to bound memory.
func LimitWriter(w io.Writer, limit int) io.Writer {
	return &limitWriter{w: w, limit: limit}
}

type limitWriter struct {
	w       io.Writer
	limit   int
	written int
}

func (l *limitWriter) Write(p []byte) (int, error) {
	remaining := l.limit - l.written
	if remaining <= 0 {
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Forward only what fits, but report all bytes as consumed
		// to avoid short write errors from io.Copy.
		n, err := l.w.Write(p[:remaining])
		l.written += n
		if err != nil {
			return n, err
		}
		return len(p), nil
	}
	n, err := l.w.Write(p)
	l.written += n
	return n, err
}
