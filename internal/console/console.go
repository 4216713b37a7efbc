// Package console owns the operator-facing banners and the final
// acknowledgment pause.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

const bannerWidth = 70

// StartBanner writes the opening banner with the run timestamp.
func StartBanner(w io.Writer, now time.Time) {
	line := strings.Repeat("=", bannerWidth)
	fmt.Fprintln(w)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "  MONTHLY CASH-FLOW ANALYSIS")
	fmt.Fprintf(w, "  Run date: %s\n", now.Format("02/01/2006 15:04:05"))
	fmt.Fprintln(w, line)
}

// StepBanner announces one pipeline step before it runs. The step's own
// output follows on the same console.
func StepBanner(w io.Writer, name, script string) {
	line := strings.Repeat("-", 60)
	fmt.Fprintf(w, "\n%s\n", line)
	fmt.Fprintf(w, "> %s\n", name)
	fmt.Fprintf(w, "  Script: %s\n", script)
	fmt.Fprintf(w, "%s\n\n", line)
}

// CompletionBanner writes the fixed completion banner. It carries no
// outcome information: the same text prints whether the analysis
// succeeded, failed, or never started.
func CompletionBanner(w io.Writer) {
	line := strings.Repeat("=", bannerWidth)
	fmt.Fprintln(w)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "  ANALYSIS RUN FINISHED")
	fmt.Fprintln(w, line)
}

// Interactive reports whether stdin is attached to a terminal, which is
// what separates an operator double-click from a scheduled task.
func Interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// AwaitKeypress blocks until a line (or EOF) is read from r, so a
// closed stdin cannot hang the launcher forever. There is deliberately
// no timeout: the operator closes the window on their own schedule.
func AwaitKeypress(w io.Writer, r io.Reader) {
	fmt.Fprint(w, "\nPress Enter to close...")
	br := bufio.NewReader(r)
	_, _ = br.ReadString('\n')
	fmt.Fprintln(w)
}
