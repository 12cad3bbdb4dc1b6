package dashboard

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Cyan    = lipgloss.Color("#00E5FF")
	Magenta = lipgloss.Color("#FF1B6B")
	Green   = lipgloss.Color("#2AFFAA")
	Red     = lipgloss.Color("#FF5555")

	Base03 = lipgloss.Color("#1B1D23")
	Base01 = lipgloss.Color("#6C7280")
	Base2  = lipgloss.Color("#ECEFF4")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(Base2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Cyan).
			Padding(0, 2).
			MarginBottom(1)

	titleStyle = lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true)

	statStyle = lipgloss.NewStyle().
			Foreground(Base2)

	errorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(Green).
		Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(Base01)

	tableBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(Base01)

	keyStyle = lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true)
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		Foreground(Magenta).
		Bold(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Base01).
		BorderBottom(true)
	s.Selected = s.Selected.
		Foreground(Base03).
		Background(Cyan).
		Bold(false)
	return s
}
