// Package ui provides terminal styling for wl output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu theme color palette
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

var (
	PassStyle     = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle     = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle     = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle   = lipgloss.NewStyle().Foreground(ColorAccent)
	CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	KeyStyle      = lipgloss.NewStyle().Bold(true)
)

const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
)

// ResultStyle picks the style for a step result or gate decision.
func ResultStyle(result string) lipgloss.Style {
	switch strings.ToLower(result) {
	case "success", "ready", "complete", "yes":
		return PassStyle
	case "failed", "non_retryable":
		return FailStyle
	case "timed_out", "cancelled", "incomplete", "cooldown_active", "report_missing_cooldown":
		return WarnStyle
	case "", "-":
		return MutedStyle
	}
	return lipgloss.NewStyle()
}

// ResultIcon is the icon matching ResultStyle.
func ResultIcon(result string) string {
	switch ResultStyle(result).GetForeground() {
	case ColorPass:
		return PassStyle.Render(IconPass)
	case ColorFail:
		return FailStyle.Render(IconFail)
	case ColorWarn:
		return WarnStyle.Render(IconWarn)
	}
	return MutedStyle.Render(IconSkip)
}

// RenderResult renders a result word in its semantic color.
func RenderResult(result string) string {
	if result == "" {
		result = "-"
	}
	return ResultStyle(result).Render(result)
}

// RenderKey renders an issue key.
func RenderKey(key string) string {
	return KeyStyle.Render(key)
}

func RenderMuted(s string) string {
	return MutedStyle.Render(s)
}

func RenderAccent(s string) string {
	return AccentStyle.Render(s)
}

func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

func RenderFail(s string) string {
	return FailStyle.Render(s)
}

// RenderCategory renders a section header in uppercase with accent color
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// Truncate cuts s to n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
