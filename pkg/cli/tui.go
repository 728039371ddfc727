package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
	Alert   lipgloss.Color // End-of-stream and error markers
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Alert:   lipgloss.Color("#ff5f87"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
	Alert  lipgloss.Style
	Cell   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
		Alert:  lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
	}
}

// Field is one labeled value in a Fields block.
type Field struct {
	Label string
	Value string
}

// Fields renders a titled block of aligned label/value lines.
func (s Styles) Fields(title string, fields []Field) string {
	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f.Label))
	}

	lines := []string{s.Title.Render(title)}
	for _, f := range fields {
		label := s.Label.Render(f.Label + strings.Repeat(" ", width-lipgloss.Width(f.Label)))
		lines = append(lines, "  "+label+"  "+f.Value)
	}
	return strings.Join(lines, "\n")
}

// Table renders rows under a header row with a rounded border. Rows for
// which highlight returns true are drawn in the alert style.
func (s Styles) Table(headers []string, rows [][]string, highlight func(row int) bool) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return s.Label.Padding(0, 1)
			case highlight != nil && highlight(row):
				return s.Alert.Padding(0, 1)
			}
			return s.Cell
		}).
		String()
}
