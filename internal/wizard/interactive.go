// Package wizard holds the interactive prompts used by the CLI.
package wizard

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/tessro/quire/internal/core"
)

// ErrNotInteractive is returned when a prompt is requested without a terminal.
var ErrNotInteractive = errors.New("not running in a terminal")

// IsTerminal returns true if stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ChapterOptions lists a book's chapters as picker options valued by index.
func ChapterOptions(book *core.Book) []huh.Option[int] {
	if book == nil {
		return nil
	}
	options := make([]huh.Option[int], 0, len(book.Chapters))
	for _, ch := range book.Chapters {
		label := fmt.Sprintf("%2d. %s  (%s)", ch.Index+1, ch.Title, core.FormatClock(ch.Start))
		options = append(options, huh.NewOption(label, ch.Index))
	}
	return options
}

// PickChapter asks the user for a chapter and returns its index. current
// is preselected.
func PickChapter(book *core.Book, current int) (int, error) {
	if !IsTerminal() {
		return 0, ErrNotInteractive
	}
	options := ChapterOptions(book)
	if len(options) == 0 {
		return 0, fmt.Errorf("%s has no chapters", book.Title)
	}

	selected := current
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Start from chapter").
				Description(book.Title).
				Options(options...).
				Height(min(len(options)+2, 15)).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return 0, fmt.Errorf("selection cancelled: %w", err)
	}
	return selected, nil
}
