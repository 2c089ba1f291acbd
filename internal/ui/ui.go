// Package ui renders kickstart-trace output for terminals and pipes.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

var writer io.Writer = os.Stderr

// SetWriter overrides the diagnostics writer (for testing). nil restores stderr.
func SetWriter(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	writer = w
}

// --- Terminal detection ---

var stdoutColor = detectColor(os.Stdout)

func detectColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetColorEnabled overrides color detection (for testing).
func SetColorEnabled(enabled bool) {
	stdoutColor = enabled
}

// ColorEnabled reports whether stdout color is enabled.
func ColorEnabled() bool {
	return stdoutColor
}

// Width returns the column count of f, or 0 when f is not a terminal.
func Width(f *os.File) int {
	if !isatty.IsTerminal(f.Fd()) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

// --- ANSI styles (stdout) ---

func ansi(code, s string) string {
	if !stdoutColor {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Bold returns s in bold.
func Bold(s string) string { return ansi("1", s) }

// Dim returns s dimmed.
func Dim(s string) string { return ansi("2", s) }

// Yellow returns s in yellow.
func Yellow(s string) string { return ansi("33", s) }

// Section writes a bold title with a thin underline.
func Section(w io.Writer, title string) {
	fmt.Fprintln(w, Bold(title))
	fmt.Fprintln(w, Dim(strings.Repeat("─", len(title))))
}

// --- Formatting ---

// Bytes formats n with a binary unit suffix.
func Bytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// TruncateLeft shortens s to max runes by eliding its beginning, which keeps
// the file name of a long path visible. max <= 0 disables truncation.
func TruncateLeft(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return "…" + string(r[len(r)-max+1:])
}

// --- Diagnostics (stderr) ---

// Warnf prints a formatted user-facing warning.
func Warnf(format string, args ...any) {
	fmt.Fprintf(writer, "Warning: %s\n", fmt.Sprintf(format, args...))
}
