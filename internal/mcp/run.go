package mcp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/deixis/monthly/internal/launch"
	"github.com/deixis/monthly/internal/pyenv"
	"github.com/deixis/monthly/internal/report"
	"github.com/deixis/monthly/internal/runner"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxCapturedOutput bounds the script output returned to the client.
const maxCapturedOutput = 1 << 20

type runParams struct {
	Target   string `json:"target,omitempty" jsonschema:"Single script to run instead of the configured pipeline."`
	KeepTemp bool   `json:"keep_temp,omitempty" jsonschema:"Keep the intermediate CSV/JSON files after the run."`
}

func (h *handler) runHandler(ctx context.Context, req *sdkmcp.CallToolRequest, params runParams) (*sdkmcp.CallToolResult, any, error) {
	cfg := *h.cfg
	if params.Target != "" {
		cfg.Target = params.Target
	}
	if params.KeepTemp {
		cfg.KeepTemp = true
	}

	env := pyenv.Resolve(h.anchor, cfg.Venv, cfg.Interpreter)

	var out bytes.Buffer
	w := runner.LimitWriter(&out, maxCapturedOutput)
	r := &runner.Runner{
		Workspace: h.anchor,
		Timeout:   cfg.Timeout(),
		Env:       env.Environ(os.Environ()),
		Stdout:    w,
		Stderr:    w,
	}

	eng := &launch.Engine{
		Config: &cfg,
		Runner: r,
		Env:    env,
		Anchor: h.anchor,
		Out:    w,
		Strict: true, // unattended callers always want classified outcomes
	}

	res := eng.Run(ctx)
	_ = h.store.Save(res.Record)

	return textResult(formatRun(res, out.String()))
}

func formatRun(res *launch.Result, output string) string {
	var b strings.Builder
	rec := res.Record

	if rec.Failed() {
		fmt.Fprintf(&b, "FAIL (exit %d)\n", res.ExitCode())
	} else {
		fmt.Fprintln(&b, "ok")
	}
	fmt.Fprintf(&b, "Run: %s\n", rec.ID)
	fmt.Fprintf(&b, "Duration: %s\n\n", rec.End.Sub(rec.Start).Round(time.Millisecond))

	for _, s := range rec.Steps {
		switch s.Status {
		case report.StatusDone:
			fmt.Fprintf(&b, "  %-10s ok\n", s.Name)
		case report.StatusFailed:
			if s.Detail != "" {
				fmt.Fprintf(&b, "  %-10s FAIL (%s)\n", s.Name, s.Detail)
			} else {
				fmt.Fprintf(&b, "  %-10s FAIL (exit %d)\n", s.Name, s.ExitCode)
			}
		case report.StatusNoStart:
			fmt.Fprintf(&b, "  %-10s could not start (%s)\n", s.Name, s.Detail)
		case report.StatusSkipped:
			fmt.Fprintf(&b, "  %-10s -\n", s.Name)
		}
	}

	if output != "" {
		fmt.Fprintf(&b, "\nOutput:\n%s\n", output)
	}
	return b.String()
}
