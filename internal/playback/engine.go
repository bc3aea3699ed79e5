// Package playback owns a listening session: it loads books into the audio
// backend, routes every position change through the seek orchestrator and
// applies smart rewind when playback resumes.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tessro/quire/internal/core"
	qerr "github.com/tessro/quire/internal/errors"
	"github.com/tessro/quire/internal/position"
	"github.com/tessro/quire/internal/preload"
	"github.com/tessro/quire/internal/remote"
	"github.com/tessro/quire/internal/rewind"
	"github.com/tessro/quire/internal/seek"
)

// Backend is the playback primitive plus book loading.
type Backend interface {
	core.Player
	Load(ctx context.Context, book *core.Book, at float64, warm preload.Session) error
	Close() error
}

// Options configures an Engine.
type Options struct {
	RewindMax      int
	RewindDisabled bool
	Seek           []seek.Option
	Clock          func() time.Time
	Logger         *slog.Logger
}

// Engine is the playback session.
type Engine struct {
	mu       sync.Mutex
	backend  Backend
	cache    *preload.Cache
	seeker   *seek.Orchestrator
	book     *core.Book
	pausedAt time.Time

	rewindMax      int
	rewindDisabled bool
	now            func() time.Time
	logger         *slog.Logger
}

var _ remote.Target = (*Engine)(nil)

// New creates an engine over backend. cache may be nil.
func New(backend Backend, cache *preload.Cache, opts Options) *Engine {
	e := &Engine{
		backend:        backend,
		cache:          cache,
		rewindMax:      opts.RewindMax,
		rewindDisabled: opts.RewindDisabled,
		now:            opts.Clock,
		logger:         opts.Logger,
	}
	if e.rewindMax == 0 {
		e.rewindMax = rewind.DefaultMax
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	seekOpts := append([]seek.Option{seek.WithLogger(e.logger), seek.WithClock(e.now)}, opts.Seek...)
	e.seeker = seek.New(backend, nil, seekOpts...)
	return e
}

// Open loads book at the global position at, paused. A session preloaded
// for the book is handed to the backend.
func (e *Engine) Open(ctx context.Context, book *core.Book, at float64) error {
	if book.IsEmpty() {
		return fmt.Errorf("open: %w", qerr.ErrNoBookLoaded)
	}
	if e.seeker.Snapshot().IsSeeking {
		return fmt.Errorf("open %s: %w", book.ID, qerr.ErrSeekInProgress)
	}

	var warm preload.Session
	if e.cache != nil {
		if s, ok := e.cache.Transfer(book.ID); ok {
			warm = s
		}
	}
	if err := e.backend.Load(ctx, book, at, warm); err != nil {
		return fmt.Errorf("open %s: %w", book.ID, err)
	}
	if err := e.seeker.SetBook(book); err != nil {
		return fmt.Errorf("open %s: %w", book.ID, err)
	}

	e.mu.Lock()
	e.book = book
	e.pausedAt = time.Time{}
	e.mu.Unlock()

	e.logger.Info("book opened", "book", book.ID, "title", book.Title, "at", at, "warm", warm != nil)
	return nil
}

// Warm preloads the track of book covering at, so a later Open starts
// without decoding from scratch.
func (e *Engine) Warm(ctx context.Context, book *core.Book, at float64) {
	if e.cache == nil || book.IsEmpty() {
		return
	}
	loc, ok := position.Locate(book.Tracks, at)
	if !ok {
		return
	}
	e.cache.Preload(ctx, book.ID, book.Tracks[loc.Track].Source)
}

// Book returns the open book, or nil.
func (e *Engine) Book() *core.Book {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book
}

// Seeker exposes the orchestrator for scrubbing and observation.
func (e *Engine) Seeker() *seek.Orchestrator {
	return e.seeker
}

// Play resumes playback, first rewinding by an amount that grows with how
// long playback was paused.
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	book, pausedAt := e.book, e.pausedAt
	e.mu.Unlock()

	if book == nil {
		return fmt.Errorf("play: %w", qerr.ErrNoBookLoaded)
	}
	if e.backend.IsPlaying() {
		return nil
	}

	if secs := e.rewindFor(pausedAt); secs > 0 {
		_, err := e.seeker.SeekRelative(ctx, -float64(secs))
		switch {
		case err == nil:
			e.logger.Debug("smart rewind", "seconds", secs, "paused_for", e.now().Sub(pausedAt))
		case errors.Is(err, qerr.ErrSeekInProgress), errors.Is(err, qerr.ErrSeekCancelled):
			e.logger.Debug("skipping smart rewind", "error", err)
		default:
			return fmt.Errorf("play: %w", err)
		}
	}

	if err := e.backend.Play(ctx); err != nil {
		return fmt.Errorf("play: %w: %w", qerr.ErrPlaybackFailure, err)
	}
	e.mu.Lock()
	e.pausedAt = time.Time{}
	e.mu.Unlock()
	return nil
}

func (e *Engine) rewindFor(pausedAt time.Time) int {
	if e.rewindDisabled || pausedAt.IsZero() {
		return 0
	}
	return rewind.Seconds(e.now().Sub(pausedAt), e.rewindMax)
}

// Pause pauses playback and starts the rewind clock.
func (e *Engine) Pause(ctx context.Context) error {
	e.mu.Lock()
	book := e.book
	e.mu.Unlock()
	if book == nil {
		return fmt.Errorf("pause: %w", qerr.ErrNoBookLoaded)
	}

	wasPlaying := e.backend.IsPlaying()
	if err := e.backend.Pause(ctx); err != nil {
		return fmt.Errorf("pause: %w: %w", qerr.ErrPlaybackFailure, err)
	}
	if wasPlaying {
		e.mu.Lock()
		e.pausedAt = e.now()
		e.mu.Unlock()
	}
	return nil
}

// IsPlaying reports whether audio is flowing.
func (e *Engine) IsPlaying() bool {
	return e.backend.IsPlaying()
}

// SeekRelative moves by delta seconds.
func (e *Engine) SeekRelative(ctx context.Context, delta float64) error {
	_, err := e.seeker.SeekRelative(ctx, delta)
	return err
}

// SeekAbsolute moves to pos seconds.
func (e *Engine) SeekAbsolute(ctx context.Context, pos float64) error {
	_, err := e.seeker.SeekAbsolute(ctx, pos)
	return err
}

// NextChapter moves to the next chapter.
func (e *Engine) NextChapter(ctx context.Context) error {
	_, err := e.seeker.NextChapter(ctx)
	return err
}

// PrevChapter restarts the chapter or moves to the previous one.
func (e *Engine) PrevChapter(ctx context.Context) error {
	_, err := e.seeker.PrevChapter(ctx)
	return err
}

// SetSpeed changes the playback rate.
func (e *Engine) SetSpeed(ctx context.Context, rate float64) error {
	if err := e.backend.SetPlaybackRate(ctx, rate); err != nil {
		return fmt.Errorf("set speed: %w", err)
	}
	return nil
}

// Speed returns the playback rate.
func (e *Engine) Speed() float64 {
	return e.backend.PlaybackRate()
}

// State returns a snapshot of the session.
func (e *Engine) State() core.PlaybackState {
	e.mu.Lock()
	book, pausedAt := e.book, e.pausedAt
	e.mu.Unlock()

	s := core.PlaybackState{
		Book:         book,
		ChapterIndex: -1,
		IsPlaying:    e.backend.IsPlaying(),
		Position:     e.backend.Position(),
		Duration:     e.backend.Duration(),
		Rate:         e.backend.PlaybackRate(),
	}
	if !pausedAt.IsZero() {
		s.PausedFor = e.now().Sub(pausedAt)
	}
	if book == nil {
		return s
	}
	if loc, ok := position.Locate(book.Tracks, s.Position); ok {
		s.Track = &book.Tracks[loc.Track]
	}
	if i := position.ChapterAt(book.Chapters, s.Position); i >= 0 {
		s.ChapterIndex = i
		s.Chapter = &book.Chapters[i]
	}
	return s
}

// Close cancels any seek and releases the backend.
func (e *Engine) Close() error {
	e.seeker.CancelSeek()
	e.mu.Lock()
	e.book = nil
	e.mu.Unlock()
	return e.backend.Close()
}
