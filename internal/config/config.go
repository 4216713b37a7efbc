// Package config loads and validates the optional .monthly YAML file
// found in the anchor directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the configuration file name, looked up in the anchor directory.
const File = ".monthly"

// Defaults matching the pre-provisioned analysis folder layout.
const (
	DefaultWorkbook = "Flusso di cassa.xlsx"
	DefaultRunsDir  = ".monthly-runs"
)

// Pause modes for the final acknowledgment wait.
const (
	PauseAuto   = "auto"   // pause only when stdin is a terminal
	PauseAlways = "always" // pause unconditionally
	PauseNever  = "never"  // exit immediately after the completion banner
)

// Config holds the parsed .monthly configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version     int          `yaml:"version"`
	Venv        string       `yaml:"venv"`        // venv directory relative to the anchor
	Interpreter string       `yaml:"interpreter"` // explicit interpreter, bypasses venv discovery
	Target      string       `yaml:"target"`      // single script replacing the step pipeline
	Workbook    string       `yaml:"workbook"`    // source workbook checked before the run
	RawTimeout  string       `yaml:"timeout"`     // e.g. "30m"; empty means no timeout
	RawPause    string       `yaml:"pause"`       // auto, always, never
	KeepTemp    bool         `yaml:"keep_temp"`
	TempFiles   []string     `yaml:"temp_files"` // intermediate files removed after a run
	Steps       []StepConfig `yaml:"steps"`
}

// StepConfig describes one script in the analysis pipeline.
type StepConfig struct {
	Name     string `yaml:"name"`
	Script   string `yaml:"script"`
	Required bool   `yaml:"required"`          // failure stops the pipeline
	OnlyIf   string `yaml:"only_if,omitempty"` // skip the step when this file is absent
}

// DefaultSteps reproduce the original three-script pipeline: data
// extraction must succeed before anything else runs, chart and report
// failures are tolerated, and the report step only runs when its
// category selection file is present.
var DefaultSteps = []StepConfig{
	{Name: "extract", Script: "estrai_flussi_cassa.py", Required: true},
	{Name: "charts", Script: "genera_grafici.py"},
	{Name: "report", Script: "genera_report.py", OnlyIf: "Categorie_per_grafici.csv"},
}

// DefaultTempFiles are the intermediate files the extraction step
// leaves behind.
var DefaultTempFiles = []string{
	"flussi_cassa_riepilogo.csv",
	"flussi_cassa_dettaglio.csv",
	"flussi_cassa.json",
}

// Timeout returns the configured timeout, or zero for no timeout.
// The analysis may legitimately run for a long time; the launcher only
// bounds it when asked to.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// PauseMode returns the configured pause mode, falling back to auto.
func (c *Config) PauseMode() string {
	switch c.RawPause {
	case PauseAlways, PauseNever:
		return c.RawPause
	}
	return PauseAuto
}

// WorkbookName returns the configured workbook name or the default.
func (c *Config) WorkbookName() string {
	if c.Workbook != "" {
		return c.Workbook
	}
	return DefaultWorkbook
}

// PipelineSteps returns the steps to run. A configured target collapses
// the pipeline to a single required invocation of that script.
func (c *Config) PipelineSteps() []StepConfig {
	if c.Target != "" {
		return []StepConfig{{Name: "analysis", Script: c.Target, Required: true}}
	}
	if len(c.Steps) > 0 {
		return c.Steps
	}
	return DefaultSteps
}

// CleanupFiles returns the temp files to remove after a run, or nil
// when cleanup is disabled.
func (c *Config) CleanupFiles() []string {
	if c.KeepTemp {
		return nil
	}
	if len(c.TempFiles) > 0 {
		return c.TempFiles
	}
	return DefaultTempFiles
}

// Load reads the .monthly file from the anchor directory. If the file
// does not exist, a default Config is returned.
func Load(anchorDir string) (*Config, error) {
	path := filepath.Join(anchorDir, File)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", File, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", File, err)
	}
	return cfg, nil
}
