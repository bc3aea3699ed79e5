package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tessro/quire/internal/logging"
	"github.com/tessro/quire/internal/tui"
)

var tuiRefresh int

var tuiCmd = &cobra.Command{
	Use:     "ui <book> [more books...]",
	Aliases: []string{"tui"},
	Short:   "Launch interactive dashboard",
	Long: `Launch the interactive terminal dashboard.

The dashboard provides a live view with:
  • Now Playing - book, chapter and book progress, speed, seek lock
  • Chapters - jump anywhere in the book
  • Activity - recent playback events

Keyboard shortcuts:
  q, Ctrl+C    Quit
  ?            Help
  Space        Play/Pause
  ←/→          Skip back/ahead
  [ ]          Previous/next chapter
  < >          Start or commit a scrub
  Esc          Cancel the seek in progress
  n / p        Next/previous book
  s            Cycle speed
  g            Go to position
  y            Copy position
  Tab          Switch panel`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().IntVar(&tuiRefresh, "refresh", 0, "refresh interval in milliseconds (default from config)")
	tuiCmd.Flags().StringVar(&playAt, "at", "", "start position (seconds, m:ss or h:mm:ss)")
	tuiCmd.Flags().BoolVar(&playPickChapter, "pick-chapter", false, "choose the starting chapter interactively")
	tuiCmd.Flags().StringVar(&playHTTP, "http", "", "serve the remote control API on this address")
	tuiCmd.Flags().BoolVar(&playMPRIS, "mpris", false, "expose the player on the D-Bus session bus")
	tuiCmd.Flags().StringVar(&playMetrics, "metrics", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	// Log lines on stderr would tear the dashboard.
	log := logger
	if cfg.Log.File == "" {
		log = logging.Discard()
	}

	applyServeFlags()
	s := newSession(cfg, log)
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

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	s.serve(gctx, g)

	watcher := s.watcher()
	g.Go(func() error {
		return watcher.Start(gctx)
	})

	refresh := tuiRefresh
	if refresh == 0 {
		refresh = cfg.TUI.RefreshInterval
	}

	uiErr := tui.Run(gctx, tui.Options{
		Source:  s.engine,
		Router:  s.router,
		Seeker:  s.engine.Seeker(),
		Shelf:   s,
		Events:  watcher.Events(),
		Refresh: time.Duration(refresh) * time.Millisecond,
		Theme:   cfg.TUI.Theme,
	})
	cancel()

	err = ignoreCancel(g.Wait())
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return uiErr
	}
	return err
}
