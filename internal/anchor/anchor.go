// Package anchor resolves the directory containing the launcher
// executable. All relative resolution (virtual environment, scripts,
// workbook) happens against this directory, so the launcher behaves the
// same whether it is double-clicked, run from a scheduled task, or
// invoked from a shell in an unrelated directory.
package anchor

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir returns the absolute directory containing the running executable,
// with symlinks resolved.
func Dir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating executable: %w", err)
	}
	return FromExecutable(exe)
}

// FromExecutable returns the anchor directory for the given executable
// path. Split out from Dir so the resolution rules are testable without
// relocating the test binary.
func FromExecutable(exe string) (string, error) {
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		// A dangling symlink still anchors to the link's own directory.
		resolved = exe
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", exe, err)
	}
	return filepath.Dir(abs), nil
}

// Enter makes dir the process working directory, so relative paths
// opened by the launcher and inherited by its children resolve against
// the anchor.
func Enter(dir string) error {
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("entering anchor directory %s: %w", dir, err)
	}
	return nil
}
