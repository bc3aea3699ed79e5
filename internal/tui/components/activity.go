package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tessro/quire/internal/tail"
	"github.com/tessro/quire/internal/tui/styles"
)

const maxActivity = 50

// ActivityEntry is one formatted playback event.
type ActivityEntry struct {
	Text string
	At   time.Time
}

// Activity displays recent playback events, newest first.
type Activity struct {
	entries   []ActivityEntry
	formatter *tail.Formatter
	now       func() time.Time
}

// NewActivity creates a new Activity component
func NewActivity() *Activity {
	return &Activity{
		formatter: tail.NewFormatter(),
		now:       time.Now,
	}
}

// Add records an event.
func (a *Activity) Add(e tail.Event) {
	at := e.Timestamp
	if at.IsZero() {
		at = a.now()
	}
	entry := ActivityEntry{Text: a.formatter.Format(e), At: at}
	a.entries = append([]ActivityEntry{entry}, a.entries...)
	if len(a.entries) > maxActivity {
		a.entries = a.entries[:maxActivity]
	}
}

// Entries returns the recorded entries, newest first.
func (a *Activity) Entries() []ActivityEntry {
	return a.entries
}

// Render renders the activity panel
func (a *Activity) Render(width, height int, focused bool) string {
	title := styles.PanelTitle("Activity", focused)

	var content string
	if len(a.entries) == 0 {
		content = styles.Muted.Render("Nothing yet")
	} else {
		content = a.renderEntries(width-4, height-4)
	}

	return styles.Panel(focused).
		Width(width).
		Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", content))
}

func (a *Activity) renderEntries(width, maxLines int) string {
	now := a.now()
	lines := make([]string, 0, maxLines)

	for i, entry := range a.entries {
		if i >= maxLines {
			break
		}
		ago := timeAgo(entry.At, now)
		text := truncate(entry.Text, width-len(ago)-1)
		padding := max(width-lipgloss.Width(text)-len(ago), 1)
		lines = append(lines, text+strings.Repeat(" ", padding)+styles.Dim.Render(ago))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func timeAgo(t, now time.Time) string {
	if now.Sub(t) < time.Minute {
		return "now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
