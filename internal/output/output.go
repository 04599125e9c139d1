// Package output renders view rows and CLI status messages.
package output

import (
	"fmt"
	"io"
	"time"
)

// Writer prints status lines for the CLI, normally to stderr so stdout
// carries only rows.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer. Colour is used only when out is a terminal.
func New(out io.Writer) *Writer {
	return &Writer{
		out:    out,
		styles: StylesFor(out),
	}
}

// NewWithStyles creates a Writer with explicit styles.
func NewWithStyles(out io.Writer, styles Styles) *Writer {
	return &Writer{out: out, styles: styles}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", w.styles.Success.Render(msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.Warning.Render(msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.styles.Error.Render(msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Summary prints the one-line outcome of a run, followed by a warning when
// some documents were unusable.
func (w *Writer) Summary(view string, s Summary) {
	w.Successf("%s: %d rows from %d documents (%d skipped, %d cached) in %s",
		view, s.Emitted, s.Scanned, s.Skipped, s.CacheHits, s.Duration.Round(time.Millisecond))
	if s.Invalid > 0 {
		w.Warningf("%d documents could not be mapped; run with --debug for details", s.Invalid)
	}
}

// Summary is the subset of run statistics the CLI reports.
type Summary struct {
	Scanned   int
	Emitted   int
	Skipped   int
	Invalid   int
	CacheHits int
	Duration  time.Duration
}
