// Package ui provides the terminal styling and the live model page for the
// plannercolors CLI.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	LightPrimary = lipgloss.Color("#3488C8") // curated palette entry 20
	LightMuted   = lipgloss.Color("#7A7574")
	LightBorder  = lipgloss.Color("#dce0e5")

	DarkPrimary = lipgloss.Color("#00B7C3") // curated palette entry 19
	DarkMuted   = lipgloss.Color("#8a94a6")
	DarkBorder  = lipgloss.Color("#2a3850")

	Success = lipgloss.Color("#13A10E")
	Warning = lipgloss.Color("#EAA300")
)

// Theme holds the current color scheme
type Theme struct {
	Primary lipgloss.Color
	Muted   lipgloss.Color
	Border  lipgloss.Color
	IsDark  bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Primary: LightPrimary,
		Muted:   LightMuted,
		Border:  LightBorder,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Primary: DarkPrimary,
		Muted:   DarkMuted,
		Border:  DarkBorder,
		IsDark:  true,
	}
}

// DetectTheme picks a theme from COLORFGBG or PLANNERCOLORS_DARK_MODE,
// defaulting to light.
func DetectTheme() Theme {
	if colorTerm := os.Getenv("COLORFGBG"); colorTerm != "" {
		// "foreground;background"; ANSI 0-6 and 8 are dark backgrounds.
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
				if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
					return DarkTheme()
				}
			}
		}
	}
	if os.Getenv("PLANNERCOLORS_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	Header  lipgloss.Style
	Content lipgloss.Style
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Filter  lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),

		Content: lipgloss.NewStyle().
			Padding(1, 2),

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginBottom(1),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Filter: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles for the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// Swatch renders text on a CSS color. Both "#RRGGBB" and "rgb(r, g, b)" are
// accepted; anything else is rendered unstyled.
func Swatch(css, text string) string {
	hex, ok := CSSToHex(css)
	if !ok {
		return text
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(hex)).
		Foreground(lipgloss.Color("#000000")).
		Padding(0, 1).
		Render(text)
}

// CSSToHex converts the color forms produced by the palette to "#RRGGBB".
func CSSToHex(css string) (string, bool) {
	css = strings.TrimSpace(css)
	if strings.HasPrefix(css, "#") && len(css) == 7 {
		return strings.ToUpper(css), true
	}
	inner, ok := strings.CutPrefix(css, "rgb(")
	if !ok {
		return "", false
	}
	inner, ok = strings.CutSuffix(inner, ")")
	if !ok {
		return "", false
	}
	parts := strings.Split(inner, ",")
	if len(parts) != 3 {
		return "", false
	}
	var sb strings.Builder
	sb.WriteByte('#')
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return "", false
		}
		sb.WriteString(strings.ToUpper(strconv.FormatInt(int64(n)|0x100, 16)[1:]))
	}
	return sb.String(), true
}
