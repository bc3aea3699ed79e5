package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors adapt to the terminal background unless a theme pins one.
var (
	Primary = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#A78BFA"} // Purple
	Accent  = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"} // Amber

	Success = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#10B981"} // Green
	Warning = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"} // Amber
	Error   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#EF4444"} // Red

	Border    = lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#4B5563"}
	Text      = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F9FAFB"}
	TextMuted = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#9CA3AF"}
	TextDim   = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"}
)

// Text styles
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Text)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextMuted)

	Label = lipgloss.NewStyle().
		Foreground(TextDim)

	Highlight = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	Dim = lipgloss.NewStyle().
		Foreground(TextDim)

	Playing = lipgloss.NewStyle().
		Foreground(Success)

	Paused = lipgloss.NewStyle().
		Foreground(Warning)

	Seeking = lipgloss.NewStyle().
		Bold(true).
		Foreground(Accent)

	ErrorText = lipgloss.NewStyle().
			Foreground(Error)
)

// Border styles
var (
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border)

	FocusedBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary)
)

// ApplyTheme pins the palette to "dark" or "light". "auto" leaves the
// terminal's own background detection in charge.
func ApplyTheme(theme string) {
	switch theme {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	}
}

// Panel creates a styled panel with optional focus
func Panel(focused bool) lipgloss.Style {
	if focused {
		return FocusedBorder.Padding(0, 1)
	}
	return BorderStyle.Padding(0, 1)
}

// PanelTitle creates a styled panel title
func PanelTitle(title string, focused bool) string {
	style := Label
	if focused {
		style = Highlight
	}
	return style.Render(" " + title + " ")
}

// ProgressBar creates a progress bar string. A marker, when in range,
// is drawn over the bar at that percentage.
func ProgressBar(percent float64, width int, marker float64) string {
	filled := clamp(int(percent/100*float64(width)), 0, width)

	filledStyle := lipgloss.NewStyle().Foreground(Primary)
	emptyStyle := lipgloss.NewStyle().Foreground(Border)

	if marker < 0 || marker > 100 || width == 0 {
		return filledStyle.Render(strings.Repeat("━", filled)) +
			emptyStyle.Render(strings.Repeat("─", width-filled))
	}

	at := clamp(int(marker/100*float64(width)), 0, width-1)
	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i == at:
			b.WriteString(Seeking.Render("◆"))
		case i < filled:
			b.WriteString(filledStyle.Render("━"))
		default:
			b.WriteString(emptyStyle.Render("─"))
		}
	}
	return b.String()
}

// StatusIcon returns an icon for playback status
func StatusIcon(playing bool) string {
	if playing {
		return Playing.Render("▶")
	}
	return Paused.Render("⏸")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
