package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the color values for the run view.
type Theme struct {
	Name string

	Accent  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Dim       lipgloss.Color
}

// DarkTheme is the default dark terminal theme.
var DarkTheme = Theme{
	Name:      "dark",
	Accent:    lipgloss.Color("#38bdf8"),
	Success:   lipgloss.Color("#22c55e"),
	Warning:   lipgloss.Color("#eab308"),
	Error:     lipgloss.Color("#ef4444"),
	Primary:   lipgloss.Color("#e0e0e8"),
	Secondary: lipgloss.Color("#888888"),
	Dim:       lipgloss.Color("#5a5a70"),
}

// LightTheme is the light terminal theme.
var LightTheme = Theme{
	Name:      "light",
	Accent:    lipgloss.Color("#0369a1"),
	Success:   lipgloss.Color("#15803d"),
	Warning:   lipgloss.Color("#a16207"),
	Error:     lipgloss.Color("#b91c1c"),
	Primary:   lipgloss.Color("#0f172a"),
	Secondary: lipgloss.Color("#374151"),
	Dim:       lipgloss.Color("#4b5563"),
}

// DetectTheme returns the theme selected by flag, env, or default.
func DetectTheme(flagVal string) Theme {
	switch strings.ToLower(flagVal) {
	case "dark":
		return DarkTheme
	case "light":
		return LightTheme
	}

	switch strings.ToLower(os.Getenv("CONVEYOR_THEME")) {
	case "dark":
		return DarkTheme
	case "light":
		return LightTheme
	}

	return DarkTheme
}
