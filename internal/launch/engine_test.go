package launch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deixis/monthly/internal/config"
	"github.com/deixis/monthly/internal/pyenv"
	"github.com/deixis/monthly/internal/report"
	"github.com/deixis/monthly/internal/runner"
)

// outcome is what the fake runner returns for one script.
type outcome struct {
	exit     int
	timedOut bool
	err      error
}

// fakeRunner records every invocation and replies per script base name.
type fakeRunner struct {
	calls    [][]string
	outcomes map[string]outcome
}

func (f *fakeRunner) Run(_ context.Context, argv []string, _ string) (*runner.Result, error) {
	f.calls = append(f.calls, argv)
	o := f.outcomes[filepath.Base(argv[len(argv)-1])]
	if o.err != nil {
		return nil, o.err
	}
	return &runner.Result{RunID: "test-run", ExitCode: o.exit, Duration: time.Millisecond, TimedOut: o.timedOut}, nil
}

// newTestEngine builds an engine over a prepared anchor directory with
// the default workbook present.
func newTestEngine(t *testing.T, fr *fakeRunner) (*Engine, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.DefaultWorkbook), []byte("xlsx"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	eng := &Engine{
		Config: &config.Config{},
		Runner: fr,
		Env:    &pyenv.Descriptor{Root: filepath.Join(dir, ".venv"), Interpreter: filepath.Join(dir, ".venv", "bin", "python")},
		Anchor: dir,
		Out:    &out,
	}
	return eng, &out, dir
}

func allOK() *fakeRunner {
	return &fakeRunner{outcomes: map[string]outcome{}}
}

func TestRun_AllStepsSucceed(t *testing.T) {
	fr := allOK()
	eng, out, dir := newTestEngine(t, fr)

	// Marker present so the report step runs too.
	if err := os.WriteFile(filepath.Join(dir, "Categorie_per_grafici.csv"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	res := eng.Run(context.Background())
	if res.FailedIdx != -1 {
		t.Errorf("FailedIdx = %d, want -1", res.FailedIdx)
	}
	if res.ExitCode() != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode())
	}
	for _, s := range res.Record.Steps {
		if s.Status != report.StatusDone {
			t.Errorf("step %s = %s, want done", s.Name, s.Status)
		}
	}
	if len(fr.calls) != 3 {
		t.Errorf("runner called %d times, want 3", len(fr.calls))
	}
	if !strings.Contains(out.String(), "ANALYSIS RUN FINISHED") {
		t.Error("completion banner missing")
	}
}

func TestRun_BannerOrdering(t *testing.T) {
	eng, out, _ := newTestEngine(t, allOK())

	eng.Run(context.Background())

	s := out.String()
	start := strings.Index(s, "MONTHLY CASH-FLOW ANALYSIS")
	step := strings.Index(s, "estrai_flussi_cassa.py")
	done := strings.Index(s, "ANALYSIS RUN FINISHED")
	if start < 0 || step < 0 || done < 0 {
		t.Fatalf("missing banner in output:\n%s", s)
	}
	if !(start < step && step < done) {
		t.Errorf("banner order wrong: start=%d step=%d done=%d", start, step, done)
	}
}

func TestRun_VenvAbsent_SilentByDefault(t *testing.T) {
	eng, out, _ := newTestEngine(t, allOK())
	eng.Env = &pyenv.Descriptor{Interpreter: "/usr/bin/python3"} // fallback, no venv

	res := eng.Run(context.Background())
	if strings.Contains(out.String(), "Virtual environment") {
		t.Errorf("legacy mode printed an activation message:\n%s", out.String())
	}
	if res.Record.VenvFound {
		t.Error("VenvFound = true, want false")
	}
}

func TestRun_VenvAbsent_ReportedInStrict(t *testing.T) {
	eng, out, _ := newTestEngine(t, allOK())
	eng.Env = &pyenv.Descriptor{Interpreter: "/usr/bin/python3"}
	eng.Strict = true

	eng.Run(context.Background())
	if !strings.Contains(out.String(), "Virtual environment not found") {
		t.Errorf("strict mode did not report the missing venv:\n%s", out.String())
	}
}

func TestRun_RequiredStepCannotStart(t *testing.T) {
	fr := &fakeRunner{outcomes: map[string]outcome{
		"estrai_flussi_cassa.py": {err: errors.New("starting python: no such file")},
	}}
	eng, out, _ := newTestEngine(t, fr)

	res := eng.Run(context.Background())
	if got := res.Record.Steps[0].Status; got != report.StatusNoStart {
		t.Errorf("extract status = %s, want no-start", got)
	}
	for _, s := range res.Record.Steps[1:] {
		if s.Status != report.StatusSkipped {
			t.Errorf("step %s = %s, want skipped after required failure", s.Name, s.Status)
		}
	}
	if len(fr.calls) != 1 {
		t.Errorf("runner called %d times, want 1 (no retries)", len(fr.calls))
	}
	if !strings.Contains(out.String(), "ANALYSIS RUN FINISHED") {
		t.Error("completion banner missing after start failure")
	}
	if res.ExitCode() != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode())
	}
}

func TestRun_OptionalStepFailure_PipelineContinues(t *testing.T) {
	fr := &fakeRunner{outcomes: map[string]outcome{
		"genera_grafici.py": {exit: 2},
	}}
	eng, out, dir := newTestEngine(t, fr)
	if err := os.WriteFile(filepath.Join(dir, "Categorie_per_grafici.csv"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	res := eng.Run(context.Background())
	if res.FailedIdx != 1 {
		t.Errorf("FailedIdx = %d, want 1", res.FailedIdx)
	}
	if got := res.Record.Steps[1].Status; got != report.StatusFailed {
		t.Errorf("charts status = %s, want failed", got)
	}
	if got := res.Record.Steps[2].Status; got != report.StatusDone {
		t.Errorf("report status = %s, want done (pipeline continues past optional failure)", got)
	}
	if res.ExitCode() != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode())
	}
	// Legacy mode adds no failure indication of its own.
	if strings.Contains(out.String(), "exited with code") {
		t.Errorf("legacy mode printed a failure line:\n%s", out.String())
	}
}

func TestRun_StrictReportsFailure(t *testing.T) {
	fr := &fakeRunner{outcomes: map[string]outcome{
		"estrai_flussi_cassa.py": {exit: 1},
	}}
	eng, out, _ := newTestEngine(t, fr)
	eng.Strict = true

	res := eng.Run(context.Background())
	if !strings.Contains(out.String(), "step extract exited with code 1") {
		t.Errorf("strict failure line missing:\n%s", out.String())
	}
	if res.ExitCode() != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode())
	}
}

func TestRun_WorkbookMissing(t *testing.T) {
	fr := allOK()
	eng, out, dir := newTestEngine(t, fr)
	if err := os.Remove(filepath.Join(dir, config.DefaultWorkbook)); err != nil {
		t.Fatal(err)
	}

	res := eng.Run(context.Background())
	if !res.Record.WorkbookMissing {
		t.Error("WorkbookMissing = false")
	}
	if len(fr.calls) != 0 {
		t.Errorf("runner called %d times, want 0", len(fr.calls))
	}
	if !strings.Contains(out.String(), "Workbook not found") {
		t.Error("missing-workbook notice absent")
	}
	if !strings.Contains(out.String(), "ANALYSIS RUN FINISHED") {
		t.Error("completion banner missing")
	}
	if res.ExitCode() != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode())
	}
}

func TestRun_ReportStepSkippedWithoutMarker(t *testing.T) {
	eng, out, _ := newTestEngine(t, allOK())

	res := eng.Run(context.Background())
	last := res.Record.Steps[2]
	if last.Status != report.StatusSkipped {
		t.Errorf("report status = %s, want skipped", last.Status)
	}
	if !strings.Contains(last.Detail, "Categorie_per_grafici.csv") {
		t.Errorf("Detail = %q, want skip reason", last.Detail)
	}
	if !strings.Contains(out.String(), "skipping report") {
		t.Errorf("skip notice missing:\n%s", out.String())
	}
}

func TestRun_SingleTarget(t *testing.T) {
	fr := &fakeRunner{outcomes: map[string]outcome{
		"analisi_mensile.py": {exit: 0},
	}}
	eng, _, _ := newTestEngine(t, fr)
	eng.Config = &config.Config{Target: "analisi_mensile.py"}

	res := eng.Run(context.Background())
	if len(res.Record.Steps) != 1 {
		t.Fatalf("len(Steps) = %d, want 1", len(res.Record.Steps))
	}
	if res.Record.Steps[0].Status != report.StatusDone {
		t.Errorf("target status = %s, want done", res.Record.Steps[0].Status)
	}
	if len(fr.calls) != 1 || filepath.Base(fr.calls[0][1]) != "analisi_mensile.py" {
		t.Errorf("calls = %v", fr.calls)
	}
}

func TestRun_SingleTarget_WorkbookMissing(t *testing.T) {
	fr := &fakeRunner{outcomes: map[string]outcome{
		"analisi_mensile.py": {exit: 0},
	}}
	eng, _, dir := newTestEngine(t, fr)
	eng.Config = &config.Config{Target: "analisi_mensile.py"}
	if err := os.Remove(filepath.Join(dir, config.DefaultWorkbook)); err != nil {
		t.Fatal(err)
	}

	res := eng.Run(context.Background())
	if !res.Record.WorkbookMissing {
		t.Error("WorkbookMissing = false")
	}
	if res.Record.Aborted {
		t.Error("Aborted = true, want the target invoked regardless")
	}
	if len(fr.calls) != 1 {
		t.Errorf("runner called %d times, want 1", len(fr.calls))
	}
	if got := res.Record.Steps[0].Status; got != report.StatusDone {
		t.Errorf("target status = %s, want done", got)
	}
	if res.ExitCode() != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode())
	}
	if res.Record.Failed() {
		t.Error("Failed = true for a clean target run")
	}
}

func TestRun_SingleTargetStrict_WorkbookMissingAborts(t *testing.T) {
	fr := allOK()
	eng, _, dir := newTestEngine(t, fr)
	eng.Config = &config.Config{Target: "analisi_mensile.py"}
	eng.Strict = true
	if err := os.Remove(filepath.Join(dir, config.DefaultWorkbook)); err != nil {
		t.Fatal(err)
	}

	res := eng.Run(context.Background())
	if !res.Record.Aborted {
		t.Error("Aborted = false, want strict mode to honor the precheck")
	}
	if len(fr.calls) != 0 {
		t.Errorf("runner called %d times, want 0", len(fr.calls))
	}
	if res.ExitCode() != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode())
	}
}

func TestRun_StrictReportsTimeout(t *testing.T) {
	fr := &fakeRunner{outcomes: map[string]outcome{
		"estrai_flussi_cassa.py": {exit: -1, timedOut: true},
	}}
	eng, out, _ := newTestEngine(t, fr)
	eng.Strict = true

	res := eng.Run(context.Background())
	if got := res.Record.Steps[0].Detail; got != "timed out" {
		t.Errorf("Detail = %q, want %q", got, "timed out")
	}
	if !strings.Contains(out.String(), "step extract timed out") {
		t.Errorf("strict timeout line missing:\n%s", out.String())
	}
	if res.ExitCode() != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode())
	}
}

func TestRun_CleansTempFiles(t *testing.T) {
	eng, _, dir := newTestEngine(t, allOK())
	for _, name := range config.DefaultTempFiles {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	res := eng.Run(context.Background())
	if res.Record.CleanedTemp != len(config.DefaultTempFiles) {
		t.Errorf("CleanedTemp = %d, want %d", res.Record.CleanedTemp, len(config.DefaultTempFiles))
	}
	for _, name := range config.DefaultTempFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			t.Errorf("%s still present after cleanup", name)
		}
	}
}

func TestRun_KeepTemp(t *testing.T) {
	eng, _, dir := newTestEngine(t, allOK())
	eng.Config = &config.Config{KeepTemp: true}
	name := config.DefaultTempFiles[0]
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := eng.Run(context.Background())
	if res.Record.CleanedTemp != 0 {
		t.Errorf("CleanedTemp = %d, want 0", res.Record.CleanedTemp)
	}
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Errorf("%s removed despite keep_temp", name)
	}
}
