package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/monthly/internal/report"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type historyParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to return. Defaults to 10."`
}

func (h *handler) historyHandler(ctx context.Context, req *sdkmcp.CallToolRequest, params historyParams) (*sdkmcp.CallToolResult, any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}

	recs, err := h.store.List(limit)
	if err != nil {
		return errorResult(fmt.Sprintf("listing runs: %v", err))
	}
	if len(recs) == 0 {
		return textResult("No recorded runs.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Runs (%d):\n\n", len(recs))
	for _, rec := range recs {
		fmt.Fprint(&b, formatRecord(rec))
		fmt.Fprintln(&b)
	}
	return textResult(b.String())
}

func formatRecord(rec *report.RunRecord) string {
	var b strings.Builder

	status := "ok"
	if rec.Failed() {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "%s  %s  %s\n", rec.Start.Format("2006-01-02 15:04"), shortID(rec.ID), status)

	if rec.WorkbookMissing {
		fmt.Fprintf(&b, "  workbook %q missing\n", rec.Workbook)
	}
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
			fmt.Fprintf(&b, "  %-10s could not start\n", s.Name)
		case report.StatusSkipped:
			fmt.Fprintf(&b, "  %-10s -\n", s.Name)
		}
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
