package ui

import "github.com/charmbracelet/lipgloss"

// Color palette. A single teal accent over neutral grays stays legible
// on both dark and light terminals.
const (
	ColorTeal     = "43"  // primary accent (#00D7AF)
	ColorTealDim  = "30"  // dimmed accent
	ColorWhite    = "255" // headers
	ColorGray     = "245" // labels, secondary text
	ColorDarkGray = "238" // borders, separators
	ColorRed      = "196" // errors
	ColorYellow   = "220" // warnings
)

// Styles holds the lipgloss styles shared by the TUI and the status
// renderer.
type Styles struct {
	Header    lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Dim       lipgloss.Style
	Active    lipgloss.Style
	Border    lipgloss.Style
	Sparkline lipgloss.Style
	Speed     lipgloss.Style
	Label     lipgloss.Style
}

// GetStyles returns colored or pass-through styles depending on noColor.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}

// DefaultStyles returns the colored style set.
func DefaultStyles() Styles {
	fg := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
	return Styles{
		Header:    fg(ColorTeal).Bold(true),
		Success:   fg(ColorTeal),
		Warning:   fg(ColorYellow),
		Error:     fg(ColorRed),
		Dim:       fg(ColorDarkGray),
		Active:    fg(ColorTeal).Bold(true),
		Border:    fg(ColorDarkGray),
		Sparkline: fg(ColorTeal),
		Speed:     fg(ColorGray),
		Label:     fg(ColorGray),
	}
}

// NoColorStyles returns styles that render text unmodified.
func NoColorStyles() Styles {
	s := lipgloss.NewStyle()
	return Styles{
		Header: s, Success: s, Warning: s, Error: s, Dim: s,
		Active: s, Border: s, Sparkline: s, Speed: s, Label: s,
	}
}
