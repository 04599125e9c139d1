package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	verrors "github.com/dmwm/wmviews/internal/errors"
	"github.com/dmwm/wmviews/internal/view"
)

// Format selects how rows are rendered.
type Format string

const (
	// FormatNDJSON writes one row object per line.
	FormatNDJSON Format = "ndjson"
	// FormatJSON writes a database view response:
	// {"total_rows":N,"offset":0,"rows":[...]} with one row per line.
	FormatJSON Format = "json"
	// FormatTable writes aligned id/key/value columns.
	FormatTable Format = "table"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatNDJSON, FormatJSON, FormatTable}
}

// FormatNames returns the supported format names joined with sep.
func FormatNames(sep string) string {
	names := make([]string, 0, len(Formats()))
	for _, f := range Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, sep)
}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "jsonl" {
		return FormatNDJSON, nil
	}
	if slices.Contains(Formats(), f) {
		return f, nil
	}
	return "", verrors.New(verrors.ErrCodeUnknownFormat, fmt.Sprintf("unknown output format %q", s), nil).
		WithSuggestion("Use one of: " + FormatNames(", "))
}

// Encode writes rows to w in format f. Tables are coloured when w is a terminal.
func Encode(w io.Writer, f Format, rows []view.Row) error {
	return EncodeWithStyles(w, f, rows, StylesFor(w))
}

// EncodeWithStyles is Encode with explicit table styles.
func EncodeWithStyles(w io.Writer, f Format, rows []view.Row, styles Styles) error {
	bw := bufio.NewWriter(w)

	var err error
	switch f {
	case FormatNDJSON:
		err = encodeNDJSON(bw, rows)
	case FormatJSON:
		err = encodeViewResponse(bw, rows)
	case FormatTable:
		err = encodeTable(bw, rows, styles)
	default:
		_, err = ParseFormat(string(f))
		return err
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

// marshal encodes v without HTML escaping and without a trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func encodeNDJSON(w io.Writer, rows []view.Row) error {
	for _, row := range rows {
		data, err := marshal(row)
		if err != nil {
			return fmt.Errorf("encode row %s: %w", row.ID, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func encodeViewResponse(w io.Writer, rows []view.Row) error {
	if _, err := fmt.Fprintf(w, "{\"total_rows\":%d,\"offset\":0,\"rows\":[\n", len(rows)); err != nil {
		return err
	}
	for i, row := range rows {
		data, err := marshal(row)
		if err != nil {
			return fmt.Errorf("encode row %s: %w", row.ID, err)
		}
		if i < len(rows)-1 {
			data = append(data, ',')
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]}\n")
	return err
}

func encodeTable(w io.Writer, rows []view.Row, styles Styles) error {
	header := [3]string{"ID", "KEY", "VALUE"}
	cells := make([][3]string, len(rows))
	widths := [3]int{len(header[0]), len(header[1]), len(header[2])}

	for i, row := range rows {
		key, err := marshal(row.Key)
		if err != nil {
			return fmt.Errorf("encode key of %s: %w", row.ID, err)
		}
		value, err := marshal(row.Value)
		if err != nil {
			return fmt.Errorf("encode value of %s: %w", row.ID, err)
		}
		cells[i] = [3]string{row.ID.String(), string(key), string(value)}
		for c, text := range cells[i] {
			widths[c] = max(widths[c], lipgloss.Width(text))
		}
	}

	line := func(cols [3]string, style [3]lipgloss.Style) string {
		var sb strings.Builder
		for c, text := range cols {
			if c > 0 {
				sb.WriteString("  ")
			}
			padded := text
			if c < len(cols)-1 {
				padded += strings.Repeat(" ", widths[c]-lipgloss.Width(text))
			}
			sb.WriteString(style[c].Render(padded))
		}
		return strings.TrimRight(sb.String(), " ") + "\n"
	}

	headerStyle := [3]lipgloss.Style{styles.Header, styles.Header, styles.Header}
	if _, err := io.WriteString(w, line(header, headerStyle)); err != nil {
		return err
	}
	rule := styles.Separator.Render(strings.Repeat("─", widths[0]+widths[1]+widths[2]+4))
	if _, err := io.WriteString(w, rule+"\n"); err != nil {
		return err
	}

	rowStyle := [3]lipgloss.Style{styles.ID, styles.Key, styles.Value}
	for _, c := range cells {
		if _, err := io.WriteString(w, line(c, rowStyle)); err != nil {
			return err
		}
	}
	return nil
}
