package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/tessro/quire/internal/audio"
	"github.com/tessro/quire/internal/config"
	"github.com/tessro/quire/internal/core"
	qerr "github.com/tessro/quire/internal/errors"
	"github.com/tessro/quire/internal/library"
	"github.com/tessro/quire/internal/metrics"
	"github.com/tessro/quire/internal/playback"
	"github.com/tessro/quire/internal/preload"
	"github.com/tessro/quire/internal/remote"
	"github.com/tessro/quire/internal/seek"
	"github.com/tessro/quire/internal/tail"
)

const (
	shutdownTimeout = 5 * time.Second
	mprisRefresh    = time.Second
	nullPullEvery   = 20 * time.Millisecond
)

// session is one playback session and everything wired around it.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	null    *audio.NullOutput
	backend *audio.Backend
	cache   *preload.Cache
	engine  *playback.Engine
	router  *remote.Router
	loader  *library.Loader

	mu      sync.Mutex
	books   []*core.Book
	current int
}

// errNoMoreBooks is returned when switching past either end of the list.
var errNoMoreBooks = errors.New("no more books")

func newSession(cfg *config.Config, logger *slog.Logger) *session {
	s := &session{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		loader:  library.NewLoader(),
	}

	audioOpts := []audio.Option{
		audio.WithSampleRate(cfg.Playback.SampleRate),
		audio.WithBuffer(time.Duration(cfg.Playback.BufferMs) * time.Millisecond),
		audio.WithLogger(logger.With("component", "audio")),
	}
	if cfg.Playback.Output == "null" {
		s.null = &audio.NullOutput{}
		audioOpts = append(audioOpts, audio.WithOutput(s.null))
	}
	s.backend = audio.NewBackend(audioOpts...)

	s.cache = preload.New(audio.Opener{},
		preload.WithCapacity(cfg.Preload.Capacity),
		preload.WithTTL(cfg.Preload.TTL()),
		preload.WithLogger(logger.With("component", "preload")),
		preload.WithMetrics(s.metrics),
	)

	s.engine = playback.New(s.backend, s.cache, playback.Options{
		RewindMax:      cfg.Rewind.MaxSeconds,
		RewindDisabled: cfg.Rewind.Disabled,
		Seek: []seek.Option{
			seek.WithPrevChapterThreshold(cfg.Seek.PrevChapterThreshold()),
			seek.WithNearEndThreshold(cfg.Seek.NearEndThreshold),
			seek.WithScrub(scrubConfig(cfg.Seek)),
			seek.WithMetrics(s.metrics),
		},
		Logger: logger.With("component", "playback"),
	})

	s.router = remote.New(s.engine, remoteConfig(cfg.Remote),
		remote.WithLogger(logger.With("component", "remote")),
		remote.WithMetrics(s.metrics),
	)
	return s
}

func scrubConfig(c config.SeekConfig) seek.ScrubConfig {
	sc := seek.ScrubConfig{TickInterval: c.ScrubTick()}
	for _, st := range c.ScrubSteps {
		sc.Steps = append(sc.Steps, seek.ScrubStep{
			After: time.Duration(st.AfterMs) * time.Millisecond,
			Rate:  st.Rate,
		})
	}
	return sc
}

func remoteConfig(c config.RemoteConfig) remote.Config {
	return remote.Config{
		SkipForwardSeconds:  c.SkipForwardSeconds,
		SkipBackwardSeconds: c.SkipBackwardSeconds,
		TrackNavigation:     remote.TrackNavigation(c.TrackNavigation),
		AvailableSpeeds:     c.Speeds,
	}
}

// loadBooks reads every path concurrently, keeping argument order. Only
// the first book is required; the others are just preloaded, so a bad one
// is logged and dropped.
func (s *session) loadBooks(ctx context.Context, paths []string) ([]*core.Book, error) {
	loaded := make([]*core.Book, len(paths))
	errs := make([]error, len(paths))
	var g errgroup.Group
	for i, p := range paths {
		g.Go(func() error {
			loaded[i], errs[i] = s.loader.Open(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	if errs[0] != nil {
		return nil, qerr.WithSuggestion(errs[0],
			"Pass a book.toml manifest or a directory of "+strings.Join(audio.Formats, "/")+" files")
	}

	var result qerr.PartialResult[[]*core.Book]
	for i, b := range loaded {
		if errs[i] != nil {
			result.AddError(fmt.Errorf("%s: %w", paths[i], errs[i]))
			continue
		}
		result.Data = append(result.Data, b)
	}
	if result.HasErrors() {
		s.logger.Warn("skipping books", "error", result.ErrorSummary())
	}
	return result.Data, nil
}

// open starts books[0] at the given position and warms the book after it
// so switching there later skips the initial decode.
func (s *session) open(ctx context.Context, books []*core.Book, at float64) error {
	if err := s.engine.Open(ctx, books[0], at); err != nil {
		return err
	}
	if rate := s.cfg.Playback.Speed; rate != 1 {
		if err := s.engine.SetSpeed(ctx, rate); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.books, s.current = books, 0
	s.mu.Unlock()

	s.warmAround(ctx, books, 0)
	return nil
}

// NextBook switches to the book after the current one.
func (s *session) NextBook(ctx context.Context) (*core.Book, error) {
	return s.step(ctx, 1)
}

// PreviousBook switches to the book before the current one.
func (s *session) PreviousBook(ctx context.Context) (*core.Book, error) {
	return s.step(ctx, -1)
}

// step opens the neighbouring book from its start, adopting its preloaded
// session, and keeps playing if the current book was playing.
func (s *session) step(ctx context.Context, delta int) (*core.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.current + delta
	if i < 0 || i >= len(s.books) {
		return nil, errNoMoreBooks
	}
	book := s.books[i]

	playing := s.engine.IsPlaying()
	if err := s.engine.Open(ctx, book, 0); err != nil {
		return nil, err
	}
	s.current = i
	if playing {
		if err := s.engine.Play(ctx); err != nil {
			return book, err
		}
	}
	s.warmAround(ctx, s.books, i)
	return book, nil
}

// warmAround preloads the books on either side of books[i].
func (s *session) warmAround(ctx context.Context, books []*core.Book, i int) {
	for _, j := range []int{i + 1, i - 1} {
		if j >= 0 && j < len(books) && books[j].ID != books[i].ID {
			s.engine.Warm(ctx, books[j], 0)
		}
	}
}

// watcher follows the engine, reporting seeks as they happen.
func (s *session) watcher() *tail.Watcher {
	interval := time.Duration(s.cfg.Tail.Interval) * time.Millisecond
	return tail.NewWatcher(s.engine, interval, tail.WithSeekSource(s.engine.Seeker()))
}

// serve runs the session's background services on g until ctx is done.
func (s *session) serve(ctx context.Context, g *errgroup.Group) {
	if s.null != nil {
		g.Go(func() error {
			s.null.Run(ctx, nullPullEvery)
			return nil
		})
	}

	g.Go(func() error {
		return s.cache.RunJanitor(ctx, s.cfg.Preload.JanitorEvery())
	})

	if addr := s.cfg.Remote.HTTPAddr; addr != "" {
		h := remote.NewHTTPHandler(s.router, s.logger.With("component", "http"))
		serveHTTP(ctx, g, addr, h.Routes(), s.logger)
	}

	if addr := s.cfg.Metrics.Addr; addr != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", s.metrics.Handler())
		serveHTTP(ctx, g, addr, r, s.logger)
	}

	if s.cfg.Remote.MPRIS {
		mp, err := remote.RegisterMPRIS(s.router, s.logger.With("component", "mpris"))
		if err != nil {
			// A missing session bus is common on headless machines.
			s.logger.Warn("mpris unavailable", "error", err)
			return
		}
		g.Go(func() error {
			defer mp.Close()
			ticker := time.NewTicker(mprisRefresh)
			defer ticker.Stop()
			for {
				mp.Update(s.engine.State())
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}
}

func serveHTTP(ctx context.Context, g *errgroup.Group, addr string, h http.Handler, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// close releases the player and every preloaded session.
func (s *session) close() {
	if err := s.engine.Close(); err != nil {
		s.logger.Warn("close player", "error", err)
	}
	s.cache.Dispose()
}

// ignoreCancel treats a cancelled context as a clean exit.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
