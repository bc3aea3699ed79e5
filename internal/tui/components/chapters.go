package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/quire/internal/core"
	"github.com/tessro/quire/internal/tui/styles"
)

// Chapters lists a book's chapters with a movable cursor.
type Chapters struct {
	offset   int
	selected int
}

// NewChapters creates a new Chapters component
func NewChapters() *Chapters {
	return &Chapters{}
}

// SelectNext moves the cursor down, stopping at the last of count chapters.
func (c *Chapters) SelectNext(count int) {
	if c.selected < count-1 {
		c.selected++
	}
}

// SelectPrev moves the cursor up.
func (c *Chapters) SelectPrev() {
	if c.selected > 0 {
		c.selected--
	}
}

// Select puts the cursor on index.
func (c *Chapters) Select(index int) {
	if index >= 0 {
		c.selected = index
	}
}

// Selected returns the selected index
func (c *Chapters) Selected() int {
	return c.selected
}

// Render renders the chapter panel
func (c *Chapters) Render(state *core.PlaybackState, width, height int, focused bool) string {
	title := styles.PanelTitle("Chapters", focused)

	var content string
	if !state.HasBook() || len(state.Book.Chapters) == 0 {
		content = styles.Muted.Render("No chapters")
	} else {
		content = c.renderChapters(state, width-4, height-4, focused)
	}

	return styles.Panel(focused).
		Width(width).
		Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", content))
}

func (c *Chapters) renderChapters(state *core.PlaybackState, width, maxLines int, focused bool) string {
	chapters := state.Book.Chapters

	if c.selected >= len(chapters) {
		c.selected = len(chapters) - 1
	}

	// Leave room for the "more" indicator
	visible := max(maxLines-1, 1)

	// Keep the cursor on screen
	if c.selected < c.offset {
		c.offset = c.selected
	}
	if c.selected >= c.offset+visible {
		c.offset = c.selected - visible + 1
	}

	end := min(c.offset+visible, len(chapters))
	lines := make([]string, 0, end-c.offset+1)

	// "XX. " (4) + marker (2) + clock column (10)
	const overhead = 16

	for i := c.offset; i < end; i++ {
		ch := chapters[i]
		num := fmt.Sprintf("%2d.", i+1)
		name := truncate(ch.Title, width-overhead)
		clock := fmt.Sprintf("%9s", core.FormatClock(ch.Start))

		var line string
		switch {
		case i == state.ChapterIndex && state.Chapter != nil:
			line = styles.Playing.Render(fmt.Sprintf("%s ▶ %-*s %s", num, width-overhead, name, clock))
		default:
			line = fmt.Sprintf("%s   %-*s %s", styles.Dim.Render(num), width-overhead, name, styles.Dim.Render(clock))
		}
		if focused && i == c.selected {
			line = lipgloss.NewStyle().Reverse(true).Render(line)
		}
		lines = append(lines, line)
	}

	if end < len(chapters) {
		lines = append(lines, styles.Dim.Render(fmt.Sprintf("    ... and %d more", len(chapters)-end)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
