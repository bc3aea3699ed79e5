package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/quire/internal/core"
	"github.com/tessro/quire/internal/seek"
	"github.com/tessro/quire/internal/tui/styles"
)

// NowPlaying displays the loaded book, its chapter and the seek lock.
type NowPlaying struct{}

// NewNowPlaying creates a new NowPlaying component
func NewNowPlaying() *NowPlaying {
	return &NowPlaying{}
}

// Render renders the now playing panel
func (n *NowPlaying) Render(state *core.PlaybackState, snap seek.Snapshot, width, height int, focused bool) string {
	title := styles.PanelTitle("Now Playing", focused)

	var content string
	if !state.HasBook() {
		content = styles.Muted.Render("No book loaded")
	} else {
		content = n.renderBook(state, snap, width-4)
	}

	return styles.Panel(focused).
		Width(width).
		Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", content))
}

func (n *NowPlaying) renderBook(state *core.PlaybackState, snap seek.Snapshot, width int) string {
	book := state.Book

	icon := styles.StatusIcon(state.IsPlaying)
	title := styles.Title.Width(max(width-4, 1)).Render(book.Title)
	author := styles.Subtitle.Render(book.Author)

	chapter := styles.Dim.Render("No chapters")
	if state.Chapter != nil {
		chapter = fmt.Sprintf("%s %s",
			styles.Label.Render(fmt.Sprintf("Chapter %d/%d", state.Chapter.Index+1, len(book.Chapters))),
			state.Chapter.Title)
	}

	barWidth := max(width-22, 10)

	// Chapter bar first; it is the one listeners watch.
	elapsed, length := state.ChapterProgress()
	chapterPct := 0.0
	if length > 0 {
		chapterPct = elapsed / length * 100
	}
	chapterMarker := -1.0
	if snap.IsSeeking && state.Chapter != nil && length > 0 {
		chapterMarker = (snap.Lock.TargetPosition - state.Chapter.Start) / length * 100
	}
	chapterLine := fmt.Sprintf("%9s %s %s",
		core.FormatClock(elapsed),
		styles.ProgressBar(chapterPct, barWidth, chapterMarker),
		core.FormatClock(length))

	bookMarker := -1.0
	if snap.IsSeeking && state.Duration > 0 {
		bookMarker = snap.Lock.TargetPosition / state.Duration * 100
	}
	bookLine := fmt.Sprintf("%9s %s %s",
		core.FormatClock(state.Position),
		styles.ProgressBar(state.ProgressPercent(), barWidth, bookMarker),
		core.FormatClock(state.Duration))

	details := styles.Muted.Render(fmt.Sprintf("%gx", state.Rate))
	if state.Track != nil {
		details += styles.Dim.Render(fmt.Sprintf("  ·  track %d/%d", state.Track.Index+1, len(book.Tracks)))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		icon+" "+title,
		"  "+author,
		"",
		chapter,
		chapterLine,
		bookLine,
		"",
		details,
		SeekStatus(snap),
	)
}

// SeekStatus describes the seek lock, or returns "" when idle.
func SeekStatus(snap seek.Snapshot) string {
	switch {
	case snap.State == seek.StateConfirming:
		return styles.Seeking.Render("Confirming " + core.FormatClock(snap.Lock.TargetPosition))
	case snap.IsChangingChapter && snap.Lock.TargetChapter != seek.NoChapter:
		return styles.Seeking.Render(fmt.Sprintf("Changing to chapter %d", snap.Lock.TargetChapter+1))
	case snap.IsChangingChapter:
		return styles.Seeking.Render("Changing chapter")
	case snap.IsSeeking:
		sign := "+"
		if snap.Delta < 0 {
			sign = "-"
		}
		return styles.Seeking.Render(fmt.Sprintf("%s %s (%s%s)",
			scrubArrow(snap.Direction),
			core.FormatClock(snap.Lock.TargetPosition),
			sign, core.FormatClock(snap.Magnitude)))
	default:
		return ""
	}
}

func scrubArrow(d seek.Direction) string {
	switch d {
	case seek.DirectionForward:
		return "⏩"
	case seek.DirectionBackward:
		return "⏪"
	default:
		return "⏺"
	}
}
