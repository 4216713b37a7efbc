package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deixis/monthly/internal/pyenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type envParams struct{}

func (h *handler) envHandler(ctx context.Context, req *sdkmcp.CallToolRequest, _ envParams) (*sdkmcp.CallToolResult, any, error) {
	env := pyenv.Resolve(h.anchor, h.cfg.Venv, h.cfg.Interpreter)

	var b strings.Builder
	fmt.Fprintf(&b, "Anchor: %s\n", h.anchor)

	if env.Found() {
		fmt.Fprintf(&b, "Virtualenv: %s\n", env.Root)
	} else {
		fmt.Fprintln(&b, "Virtualenv: not found (system interpreter fallback)")
	}
	if env.Interpreter != "" {
		fmt.Fprintf(&b, "Interpreter: %s\n", env.Interpreter)
	} else {
		fmt.Fprintln(&b, "Interpreter: none found")
	}

	workbook := h.cfg.WorkbookName()
	if info, err := os.Stat(filepath.Join(h.anchor, workbook)); err == nil {
		fmt.Fprintf(&b, "Workbook: %s (last modified %s)\n", workbook, info.ModTime().Format("2006-01-02 15:04"))
	} else {
		fmt.Fprintf(&b, "Workbook: %s (MISSING)\n", workbook)
	}

	fmt.Fprintln(&b, "Steps:")
	for _, s := range h.cfg.PipelineSteps() {
		line := fmt.Sprintf("  %s (%s)", s.Name, s.Script)
		if s.Required {
			line += " [required]"
		}
		if s.OnlyIf != "" {
			line += " [requires " + s.OnlyIf + "]"
		}
		fmt.Fprintln(&b, line)
	}

	return textResult(b.String())
}
