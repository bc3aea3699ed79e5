package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tessro/quire/internal/core"
	"github.com/tessro/quire/internal/tail"
	"github.com/tessro/quire/internal/wizard"
)

var (
	playAt          string
	playPickChapter bool
	playHTTP        string
	playMPRIS       bool
	playMetrics     string
	playPaused      bool
	playNoEmoji     bool
	playTimestamp   bool
	playFormat      string
)

var playCmd = &cobra.Command{
	Use:   "play <book> [more books...]",
	Short: "Play an audiobook",
	Long: `Play an audiobook and follow playback events as they happen.

A book is a book.toml manifest or a directory of audio files. Extra books
play in order when the one before finishes; the next one is preloaded so
it starts without a cold decode.

Events:
  - Chapter and track changes
  - Seeks, with where they landed
  - Pause and resume (with how long the pause was)
  - Speed changes

Examples:
  quire play ~/books/dune
  quire play dune/book.toml --at 1:02:03
  quire play dune --pick-chapter
  quire play dune --http 127.0.0.1:7070 --mpris`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playAt, "at", "", "start position (seconds, m:ss or h:mm:ss)")
	playCmd.Flags().BoolVar(&playPickChapter, "pick-chapter", false, "choose the starting chapter interactively")
	playCmd.Flags().StringVar(&playHTTP, "http", "", "serve the remote control API on this address")
	playCmd.Flags().BoolVar(&playMPRIS, "mpris", false, "expose the player on the D-Bus session bus")
	playCmd.Flags().StringVar(&playMetrics, "metrics", "", "serve Prometheus metrics on this address")
	playCmd.Flags().BoolVar(&playPaused, "paused", false, "load the book without starting playback")
	addTailFlags(playCmd)
	rootCmd.AddCommand(playCmd)
}

// addTailFlags registers the event output flags.
func addTailFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&playNoEmoji, "no-emoji", false, "disable emoji output")
	cmd.Flags().BoolVarP(&playTimestamp, "timestamp", "t", false, "show timestamps")
	cmd.Flags().StringVarP(&playFormat, "format", "f", "", "custom event format template")
}

// applyServeFlags lets flags override the configured listeners.
func applyServeFlags() {
	if playHTTP != "" {
		cfg.Remote.HTTPAddr = playHTTP
	}
	if playMPRIS {
		cfg.Remote.MPRIS = true
	}
	if playMetrics != "" {
		cfg.Metrics.Addr = playMetrics
	}
}

// startPosition resolves --at and --pick-chapter against book.
func startPosition(book *core.Book) (float64, error) {
	if playPickChapter {
		idx, err := wizard.PickChapter(book, 0)
		if err != nil {
			return 0, err
		}
		return book.Chapter(idx).Start, nil
	}
	if playAt == "" {
		return 0, nil
	}
	at, err := core.ParseClock(playAt)
	if err != nil {
		return 0, fmt.Errorf("--at: %w", err)
	}
	return at, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applyServeFlags()
	s := newSession(cfg, logger)
	defer s.close()

	books, err := s.loadBooks(ctx, args)
	if err != nil {
		return err
	}
	at, err := startPosition(books[0])
	if err != nil {
		return err
	}
	if err := s.open(ctx, books, at); err != nil {
		return err
	}
	if !playPaused {
		if err := s.engine.Play(ctx); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	s.serve(gctx, g)

	watcher := s.watcher()
	g.Go(func() error {
		return watcher.Start(gctx)
	})

	printer := newEventPrinter(cmd.OutOrStdout())
	for e := range watcher.Events() {
		if err := printer.print(e); err != nil {
			logger.Warn("write event", "error", err)
		}
		if e.Type == tail.EventFinished {
			s.advance(ctx, cancel)
		}
	}

	return ignoreCancel(g.Wait())
}

// eventPrinter writes events as lines or JSON objects.
type eventPrinter struct {
	w         io.Writer
	formatter *tail.Formatter
	plain     *tail.Formatter
}

func newEventPrinter(w io.Writer) *eventPrinter {
	return &eventPrinter{
		w: w,
		formatter: tail.NewFormatter(
			tail.WithEmoji(!playNoEmoji),
			tail.WithTimestamp(playTimestamp),
			tail.WithTemplate(playFormat),
		),
		plain: tail.NewFormatter(tail.WithEmoji(false)),
	}
}

type eventJSON struct {
	Type     string    `json:"type"`
	Time     time.Time `json:"time"`
	Position float64   `json:"position"`
	Chapter  int       `json:"chapter"`
	Rate     float64   `json:"rate"`
	Message  string    `json:"message"`
}

func (p *eventPrinter) print(e tail.Event) error {
	if !JSONOutput() {
		_, err := fmt.Fprintln(p.w, p.formatter.Format(e))
		return err
	}
	out := eventJSON{
		Type:    e.Type.String(),
		Time:    e.Timestamp,
		Chapter: -1,
		Message: p.plain.Format(e),
	}
	if st := e.Current; st != nil {
		out.Position = st.Position
		out.Rate = st.Rate
		if st.Chapter != nil {
			out.Chapter = st.ChapterIndex
		}
	}
	return printJSONLine(p.w, out)
}

// advance moves to the next book once the current one has finished, or
// ends the session after the last.
func (s *session) advance(ctx context.Context, done context.CancelFunc) {
	book, err := s.NextBook(ctx)
	switch {
	case errors.Is(err, errNoMoreBooks):
		done()
	case err != nil:
		s.logger.Warn("next book", "error", err)
		done()
	default:
		s.logger.Info("next book", "book", book.ID, "title", book.Title)
		if err := s.engine.Play(ctx); err != nil {
			s.logger.Warn("play next book", "error", err)
			done()
		}
	}
}

func printJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
