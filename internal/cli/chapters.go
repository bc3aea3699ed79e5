package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessro/quire/internal/core"
	"github.com/tessro/quire/internal/library"
)

var chaptersCmd = &cobra.Command{
	Use:   "chapters <book>",
	Short: "List a book's chapters",
	Long: `List the chapters of a book.toml manifest or a directory of audio files,
with where each starts on the book's timeline.`,
	Args: cobra.ExactArgs(1),
	RunE: runChapters,
}

func init() {
	rootCmd.AddCommand(chaptersCmd)
}

func runChapters(cmd *cobra.Command, args []string) error {
	book, err := library.NewLoader().Open(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(cmd.OutOrStdout(), book)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s", book.Title)
	if book.Author != "" {
		fmt.Fprintf(out, " by %s", book.Author)
	}
	fmt.Fprintf(out, "  (%s, %d tracks)\n\n", core.FormatClock(book.Duration()), len(book.Tracks))

	t := NewTableWriter(out, "#", "CHAPTER", "START", "LENGTH")
	for _, ch := range book.Chapters {
		t.Row(
			fmt.Sprintf("%d", ch.Index+1),
			TruncateString(ch.Title, 48),
			core.FormatClock(ch.Start),
			core.FormatClock(ch.Length()),
		)
	}
	t.Flush()
	return nil
}
