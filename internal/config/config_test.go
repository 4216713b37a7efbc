package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_FromAnchorDir(t *testing.T) {
	dir := t.TempDir()
	data := []byte("version: 1\ntimeout: 30m\nvenv: env\npause: never\n")
	if err := os.WriteFile(filepath.Join(dir, File), data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Timeout() != 30*time.Minute {
		t.Errorf("Timeout = %v, want 30m", cfg.Timeout())
	}
	if cfg.Venv != "env" {
		t.Errorf("Venv = %q, want %q", cfg.Venv, "env")
	}
	if cfg.PauseMode() != PauseNever {
		t.Errorf("PauseMode = %q, want %q", cfg.PauseMode(), PauseNever)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout() != 0 {
		t.Errorf("Timeout = %v, want 0 (no timeout)", cfg.Timeout())
	}
	if cfg.PauseMode() != PauseAuto {
		t.Errorf("PauseMode = %q, want %q", cfg.PauseMode(), PauseAuto)
	}
	if cfg.WorkbookName() != DefaultWorkbook {
		t.Errorf("WorkbookName = %q, want %q", cfg.WorkbookName(), DefaultWorkbook)
	}
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, File), []byte("steps: {"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestPipelineSteps_Default(t *testing.T) {
	cfg := &Config{}
	if diff := cmp.Diff(DefaultSteps, cfg.PipelineSteps()); diff != "" {
		t.Errorf("PipelineSteps mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineSteps_TargetCollapsesPipeline(t *testing.T) {
	cfg := &Config{Target: "analisi_mensile.py", Steps: DefaultSteps}
	steps := cfg.PipelineSteps()
	if len(steps) != 1 {
		t.Fatalf("len(steps) = %d, want 1", len(steps))
	}
	if steps[0].Script != "analisi_mensile.py" || !steps[0].Required {
		t.Errorf("target step = %+v, want required analisi_mensile.py", steps[0])
	}
}

func TestPipelineSteps_Configured(t *testing.T) {
	custom := []StepConfig{{Name: "only", Script: "x.py", Required: true}}
	cfg := &Config{Steps: custom}
	if diff := cmp.Diff(custom, cfg.PipelineSteps()); diff != "" {
		t.Errorf("PipelineSteps mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanupFiles(t *testing.T) {
	cfg := &Config{}
	if diff := cmp.Diff(DefaultTempFiles, cfg.CleanupFiles()); diff != "" {
		t.Errorf("CleanupFiles mismatch (-want +got):\n%s", diff)
	}

	cfg.KeepTemp = true
	if got := cfg.CleanupFiles(); got != nil {
		t.Errorf("CleanupFiles with KeepTemp = %v, want nil", got)
	}
}

func TestTimeout_Invalid(t *testing.T) {
	cfg := &Config{RawTimeout: "soon"}
	if cfg.Timeout() != 0 {
		t.Errorf("Timeout = %v, want 0 for unparsable value", cfg.Timeout())
	}
}
