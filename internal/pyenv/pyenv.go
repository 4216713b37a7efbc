// Package pyenv builds the execution environment for the analysis
// interpreter. Instead of sourcing the virtual environment's activation
// script, it constructs the child environment explicitly; the launcher's
// own environment is never mutated.
package pyenv

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultVenvDir is the virtual environment directory expected next to
// the launcher.
const DefaultVenvDir = ".venv"

// Descriptor identifies the runtime used to invoke the analysis scripts.
type Descriptor struct {
	Root        string // venv root; empty when falling back to the system interpreter
	Interpreter string // path of the python executable to invoke; may be empty if none exists
}

// Found reports whether a virtual environment was located.
func (d *Descriptor) Found() bool { return d.Root != "" }

// Locate resolves the environment descriptor relative to the anchor
// directory. A missing virtual environment is not an error: the
// descriptor falls back to the system interpreter and the caller
// decides whether that is worth reporting.
func Locate(anchorDir, venvDir string) *Descriptor {
	if venvDir == "" {
		venvDir = DefaultVenvDir
	}
	root := venvDir
	if !filepath.IsAbs(root) {
		root = filepath.Join(anchorDir, venvDir)
	}
	if py := interpreterPath(root); exists(py) {
		return &Descriptor{Root: root, Interpreter: py}
	}
	return &Descriptor{Interpreter: systemInterpreter()}
}

// Resolve picks the environment for a launch: an explicitly configured
// interpreter wins, otherwise venv discovery with system fallback.
func Resolve(anchorDir, venvDir, interpreter string) *Descriptor {
	if interpreter != "" {
		return Explicit(anchorDir, interpreter)
	}
	return Locate(anchorDir, venvDir)
}

// Explicit returns a descriptor for a directly configured interpreter,
// bypassing venv discovery. Relative paths resolve against the anchor.
func Explicit(anchorDir, interpreter string) *Descriptor {
	if !filepath.IsAbs(interpreter) {
		if p, err := exec.LookPath(interpreter); err == nil && filepath.IsAbs(p) {
			return &Descriptor{Interpreter: p}
		}
		interpreter = filepath.Join(anchorDir, interpreter)
	}
	return &Descriptor{Interpreter: interpreter}
}

// Environ builds the child process environment from base (normally
// os.Environ()): the venv's executable directory is prepended to PATH,
// VIRTUAL_ENV is set, and PYTHONHOME is dropped so the venv's own
// stdlib wins. Without a located venv, base is returned unchanged.
func (d *Descriptor) Environ(base []string) []string {
	if !d.Found() {
		return base
	}
	bin := binDir(d.Root)
	env := make([]string, 0, len(base)+2)
	pathSet := false
	for _, kv := range base {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			env = append(env, kv)
			continue
		}
		switch {
		case strings.EqualFold(key, "PATH"):
			env = append(env, key+"="+bin+string(os.PathListSeparator)+val)
			pathSet = true
		case strings.EqualFold(key, "PYTHONHOME"):
			// Dropped: it would override the venv's interpreter prefix.
		case strings.EqualFold(key, "VIRTUAL_ENV"):
			// Replaced below.
		default:
			env = append(env, kv)
		}
	}
	if !pathSet {
		env = append(env, "PATH="+bin)
	}
	env = append(env, "VIRTUAL_ENV="+d.Root)
	return env
}

// binDir returns the venv's executable directory for the current OS.
func binDir(root string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(root, "Scripts")
	}
	return filepath.Join(root, "bin")
}

func interpreterPath(root string) string {
	name := "python"
	if runtime.GOOS == "windows" {
		name = "python.exe"
	}
	return filepath.Join(binDir(root), name)
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// systemInterpreter finds a python on PATH. An empty result means no
// interpreter at all; the invocation will then fail to start, which is
// a state the launch engine records.
func systemInterpreter() string {
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}
