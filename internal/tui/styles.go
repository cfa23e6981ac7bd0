package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette shared by the configure editor and the monitor.
var (
	ColorPrimary   = lipgloss.Color("#F97316") // stage-light orange
	ColorSecondary = lipgloss.Color("#06B6D4")
	ColorSuccess   = lipgloss.Color("#22C55E")
	ColorError     = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorText      = lipgloss.Color("#F8FAFC")
	ColorMuted     = lipgloss.Color("#94A3B8")
	ColorSubtle    = lipgloss.Color("#64748B")
	colorInk       = lipgloss.Color("#0F172A")
)

var (
	StyleHeader    = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	StyleLabel     = lipgloss.NewStyle().Bold(true).Foreground(ColorText)
	StyleSuccess   = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError     = lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	StyleWarning   = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleMuted     = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleSubtle    = lipgloss.NewStyle().Italic(true).Foreground(ColorSubtle)
	StyleHighlight = lipgloss.NewStyle().Bold(true).Foreground(ColorSecondary)

	// StyleBox frames the transcript and continuation panes.
	StyleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSubtle).
			Padding(0, 1)

	StyleBadge = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(colorInk)
)

// stateColors maps orchestrator states to the monitor's badge color.
var stateColors = map[string]lipgloss.Color{
	"listening":   ColorSuccess,
	"generating":  ColorSecondary,
	"playing":     ColorPrimary,
	"interrupted": ColorWarning,
}

const logoASCII = `
  ___ ___  _ __  _ __ ___  ___  ___ _ __ | |_ ___ _ __
 / __/ _ \| '_ \| '__/ _ \/ __|/ _ \ '_ \| __/ _ \ '__|
| (_| (_) | |_) | | |  __/\__ \  __/ | | | ||  __/ |
 \___\___/| .__/|_|  \___||___/\___|_| |_|\__\___|_|
          |_|`

// Logo returns the ASCII banner
func Logo() string {
	return StyleHeader.Render(strings.Trim(logoASCII, "\n"))
}

func badge(state string) string {
	color, ok := stateColors[state]
	if !ok {
		color = ColorMuted
	}
	return StyleBadge.Background(color).Render(strings.ToUpper(state))
}
