package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette (256-colour codes).
const (
	ColorAccent   = "39"  // Header, keys
	ColorWhite    = "255" // Ids
	ColorGray     = "245" // Values
	ColorDarkGray = "238" // Separators
	ColorGreen    = "114" // Success
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings
)

// Styles holds the lipgloss styles used for terminal output.
type Styles struct {
	Header    lipgloss.Style
	ID        lipgloss.Style
	Key       lipgloss.Style
	Value     lipgloss.Style
	Separator lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
}

// DefaultStyles returns coloured styles for terminals.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		ID:        lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Key:       lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Value:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
	}
}

// NoColorStyles returns unstyled components for pipes and files.
func NoColorStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle(),
		ID:        lipgloss.NewStyle(),
		Key:       lipgloss.NewStyle(),
		Value:     lipgloss.NewStyle(),
		Separator: lipgloss.NewStyle(),
		Success:   lipgloss.NewStyle(),
		Warning:   lipgloss.NewStyle(),
		Error:     lipgloss.NewStyle(),
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}

// StylesFor picks styles for w: coloured when w is a terminal and NO_COLOR
// is unset.
func StylesFor(w io.Writer) Styles {
	return GetStyles(!IsTerminal(w) || os.Getenv("NO_COLOR") != "")
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
