// Package report persists launch run records so past runs can be
// inspected from the history command and the MCP tools. The launch
// control flow only writes records; it never branches on them.
package report

import "time"

// Step statuses.
const (
	StatusDone    = "done"     // script ran and exited 0
	StatusFailed  = "failed"   // script ran and exited non-zero
	StatusNoStart = "no-start" // script or interpreter could not be started
	StatusSkipped = "skipped"  // step not attempted
)

// RunRecord is the persisted outcome of one launch.
type RunRecord struct {
	ID     string    `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Strict bool      `json:"strict"`

	Interpreter string `json:"interpreter"`
	VenvFound   bool   `json:"venv_found"`

	Workbook         string    `json:"workbook,omitempty"`
	WorkbookMissing  bool      `json:"workbook_missing,omitempty"`
	WorkbookModified time.Time `json:"workbook_modified,omitzero"`

	// Aborted is set when the missing workbook stopped the launch before
	// any step was invoked. WorkbookMissing alone is informational: a
	// configured target runs regardless.
	Aborted bool `json:"aborted,omitempty"`

	Steps       []StepRecord `json:"steps"`
	CleanedTemp int          `json:"cleaned_temp"`
}

// StepRecord is the outcome of one pipeline step.
type StepRecord struct {
	Name       string `json:"name"`
	Script     string `json:"script"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Failed reports whether any step failed or could not be started, or
// the launch aborted before invoking anything.
func (r *RunRecord) Failed() bool {
	for i := range r.Steps {
		switch r.Steps[i].Status {
		case StatusFailed, StatusNoStart:
			return true
		}
	}
	return r.Aborted
}

// FirstFailure returns the first failing step, or nil.
func (r *RunRecord) FirstFailure() *StepRecord {
	for i := range r.Steps {
		switch r.Steps[i].Status {
		case StatusFailed, StatusNoStart:
			return &r.Steps[i]
		}
	}
	return nil
}

// Store persists and retrieves run records.
type Store interface {
	Save(rec *RunRecord) error
	Load(runID string) (*RunRecord, error)
	List(limit int) ([]*RunRecord, error)
}
