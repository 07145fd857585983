package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette, Tokyo Night tones.
var (
	colorAccent  = lipgloss.Color("#7aa2f7")
	colorText    = lipgloss.Color("#c0caf5")
	colorDim     = lipgloss.Color("#565f89")
	colorBorder  = lipgloss.Color("#414868")
	colorSuccess = lipgloss.Color("#9ece6a")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	activeStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 2)
)

// Row is one label/value line of the startup banner.
type Row struct {
	Label  string
	Value  string
	Active bool // render the value in the success color
}

// Banner renders the startup panel shown when a simulator comes up.
// lipgloss degrades the styling itself when stdout is not a terminal.
func Banner(title string, rows []Row) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(row.Label))
		if row.Active {
			b.WriteString(activeStyle.Render(row.Value))
		} else {
			b.WriteString(valueStyle.Render(row.Value))
		}
	}
	return panelStyle.Render(b.String())
}
