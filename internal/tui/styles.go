package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorSun    = lipgloss.Color("#FFB000")
	colorDim    = lipgloss.Color("#666666")
	colorText   = lipgloss.Color("#DDDDDD")
	colorLive   = lipgloss.Color("#00CC66")
	colorStale  = lipgloss.Color("#FF5F5F")
	colorHeader = lipgloss.Color("#303030")
)

var (
	styleTitle = lipgloss.NewStyle().
			Background(colorHeader).
			Foreground(colorSun).
			Bold(true).
			Padding(0, 1)

	styleLive = lipgloss.NewStyle().
			Foreground(colorLive).
			Bold(true)

	styleStale = lipgloss.NewStyle().
			Foreground(colorStale).
			Bold(true)

	styleStatLabel = lipgloss.NewStyle().
			Foreground(colorDim)

	styleStatValue = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	stylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim)

	styleAxis = lipgloss.NewStyle().
			Foreground(colorDim)

	stylePlot = lipgloss.NewStyle().
			Foreground(colorSun)

	styleFooter = lipgloss.NewStyle().
			Foreground(colorDim)

	styleFooterKey = lipgloss.NewStyle().
			Foreground(colorSun).
			Bold(true)
)
