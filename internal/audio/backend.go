// Package audio plays multi-file books through faiface/beep. Positions
// are seconds on the book's global timeline; the backend maps them onto
// the track files.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/faiface/beep"

	"github.com/tessro/quire/internal/core"
	qerr "github.com/tessro/quire/internal/errors"
	"github.com/tessro/quire/internal/position"
	"github.com/tessro/quire/internal/preload"
)

const (
	DefaultSampleRate = beep.SampleRate(44100)
	DefaultBuffer     = 100 * time.Millisecond

	resampleQuality = 4
)

// Backend is a core.Player over a beep output.
type Backend struct {
	mu         sync.Mutex
	out        Output
	sampleRate beep.SampleRate
	buffer     time.Duration
	logger     *slog.Logger
	inited     bool

	book      *core.Book
	track     int
	stream    beep.StreamSeekCloser
	format    beep.Format
	ctrl      *beep.Ctrl
	resampler *beep.Resampler
	rate      float64
	playing   bool
	ended     bool
	gen       uint64
}

// Option configures a Backend.
type Option func(*Backend)

// WithOutput replaces the system speaker.
func WithOutput(o Output) Option {
	return func(b *Backend) {
		if o != nil {
			b.out = o
		}
	}
}

// WithSampleRate sets the output sample rate.
func WithSampleRate(sr int) Option {
	return func(b *Backend) {
		if sr > 0 {
			b.sampleRate = beep.SampleRate(sr)
		}
	}
}

// WithBuffer sets the output buffer length.
func WithBuffer(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.buffer = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackend creates a backend with nothing loaded.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		out:        &Speaker{},
		sampleRate: DefaultSampleRate,
		buffer:     DefaultBuffer,
		logger:     slog.New(slog.DiscardHandler),
		rate:       1.0,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ core.Player = (*Backend)(nil)

// Load replaces the current book and positions it at the global position
// at, paused. warm may carry a preloaded Session for the track covering
// at; it is adopted when it matches and closed otherwise.
func (b *Backend) Load(ctx context.Context, book *core.Book, at float64, warm preload.Session) error {
	if err := ctx.Err(); err != nil {
		b.discard(warm)
		return err
	}
	if book.IsEmpty() {
		b.discard(warm)
		return fmt.Errorf("load: %w", qerr.ErrNoBookLoaded)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.inited {
		if err := b.out.Init(b.sampleRate, b.sampleRate.N(b.buffer)); err != nil {
			b.discard(warm)
			return fmt.Errorf("audio output: %w: %w", qerr.ErrPlaybackFailure, err)
		}
		b.inited = true
	}

	loc, _ := position.Locate(book.Tracks, at)
	stream, format, err := b.adoptOrOpen(book.Tracks[loc.Track], warm)
	if err != nil {
		return err
	}

	b.closeLocked()
	b.book = book
	b.playing = false
	if err := b.switchLocked(loc.Track, stream, format, loc.Offset); err != nil {
		return err
	}
	b.logger.Debug("book loaded", "book", book.ID, "track", loc.Track, "offset", loc.Offset)
	return nil
}

func (b *Backend) adoptOrOpen(t core.Track, warm preload.Session) (beep.StreamSeekCloser, beep.Format, error) {
	if s, ok := warm.(*Session); ok && s.Path == t.Source {
		if st, f, ok := s.take(); ok {
			b.logger.Debug("adopted preloaded session", "path", s.Path)
			return st, f, nil
		}
	}
	b.discard(warm)
	st, f, err := Decode(t.Source)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %w", qerr.ErrPlaybackFailure, err)
	}
	return st, f, nil
}

// discard closes a preloaded session that will not be adopted.
func (b *Backend) discard(warm preload.Session) {
	if warm == nil {
		return
	}
	if err := warm.Close(); err != nil {
		b.logger.Debug("closing unused preloaded session", "error", err)
	}
}

// switchLocked makes stream the current track, seeks it to offset seconds
// and starts a fresh output chain.
func (b *Backend) switchLocked(track int, stream beep.StreamSeekCloser, format beep.Format, offset float64) error {
	b.out.Clear()
	b.gen++

	n := clampSamples(format.SampleRate.N(seconds(offset)), stream.Len())
	if err := stream.Seek(n); err != nil {
		if stream != b.stream {
			stream.Close()
		}
		b.playing = false
		return fmt.Errorf("seek track %d: %w: %w", track, qerr.ErrPlaybackFailure, err)
	}

	if b.stream != nil && b.stream != stream {
		b.stream.Close()
	}

	gen := b.gen
	b.track = track
	b.stream = stream
	b.format = format
	b.ended = false
	b.ctrl = &beep.Ctrl{
		Streamer: beep.Seq(stream, beep.Callback(func() {
			// Runs with the output locked.
			go b.advance(gen)
		})),
		Paused: !b.playing,
	}
	b.resampler = beep.ResampleRatio(resampleQuality, b.ratio(), b.ctrl)
	b.out.Play(b.resampler)
	return nil
}

// advance moves to the next track when the current one finishes.
func (b *Backend) advance(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen || b.book == nil {
		return
	}

	next, ok := position.NextTrack(b.book.Tracks, b.track)
	if !ok {
		b.ended = true
		b.playing = false
		b.logger.Debug("book finished", "book", b.book.ID)
		return
	}

	stream, format, err := Decode(b.book.Tracks[next].Source)
	if err != nil {
		b.playing = false
		b.logger.Error("opening next track", "track", next, "error", err)
		return
	}
	if err := b.switchLocked(next, stream, format, 0); err != nil {
		b.playing = false
		b.logger.Error("starting next track", "track", next, "error", err)
	}
}

func (b *Backend) ratio() float64 {
	return float64(b.format.SampleRate) / float64(b.sampleRate) * b.rate
}

// Play resumes output.
func (b *Backend) Play(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == nil {
		return fmt.Errorf("play: %w", qerr.ErrNoBookLoaded)
	}
	if b.ended {
		return nil
	}
	b.playing = true
	b.out.Lock()
	b.ctrl.Paused = false
	b.out.Unlock()
	return nil
}

// Pause halts output, keeping the position.
func (b *Backend) Pause(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == nil {
		return fmt.Errorf("pause: %w", qerr.ErrNoBookLoaded)
	}
	b.playing = false
	b.out.Lock()
	b.ctrl.Paused = true
	b.out.Unlock()
	return nil
}

// Seek moves to a global position, switching track files when needed.
func (b *Backend) Seek(ctx context.Context, pos float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == nil {
		return fmt.Errorf("seek: %w", qerr.ErrNoBookLoaded)
	}
	return b.seekLocked(pos)
}

func (b *Backend) seekLocked(pos float64) error {
	loc, _ := position.Locate(b.book.Tracks, pos)

	// The chain is rebuilt even within a track so that a finished track's
	// pending advance is discarded.
	if loc.Track == b.track {
		return b.switchLocked(b.track, b.stream, b.format, loc.Offset)
	}

	t := b.book.Tracks[loc.Track]
	stream, format, err := Decode(t.Source)
	if err != nil {
		return fmt.Errorf("seek to %.3f: %w: %w", pos, qerr.ErrPlaybackFailure, err)
	}
	return b.switchLocked(loc.Track, stream, format, loc.Offset)
}

// SetPlaybackRate changes speed. Pitch follows the rate.
func (b *Backend) SetPlaybackRate(ctx context.Context, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("playback rate %v: %w", rate, qerr.ErrPlaybackFailure)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rate = rate
	if b.resampler != nil {
		b.out.Lock()
		b.resampler.SetRatio(b.ratio())
		b.out.Unlock()
	}
	return nil
}

// Position returns the global position in seconds.
func (b *Backend) Position() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == nil {
		return 0
	}
	t := b.book.Tracks[b.track]
	if b.ended {
		return t.End()
	}
	b.out.Lock()
	n := b.stream.Position()
	b.out.Unlock()
	return t.Start + min(b.format.SampleRate.D(n).Seconds(), t.Duration)
}

// Duration returns the book length in seconds.
func (b *Backend) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.book == nil {
		return 0
	}
	return position.TotalDuration(b.book.Tracks)
}

// PlaybackRate returns the current speed.
func (b *Backend) PlaybackRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rate
}

// IsPlaying reports whether audio is flowing.
func (b *Backend) IsPlaying() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playing
}

// Track returns the index of the current track file.
func (b *Backend) Track() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.track
}

// Ended reports whether the last track has played out.
func (b *Backend) Ended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ended
}

// Close stops output and releases the decoder.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Backend) closeLocked() error {
	if b.stream == nil {
		return nil
	}
	b.out.Clear()
	b.gen++
	err := b.stream.Close()
	b.stream = nil
	b.ctrl = nil
	b.resampler = nil
	b.book = nil
	b.playing = false
	b.ended = false
	return err
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func clampSamples(n, length int) int {
	if n < 0 {
		return 0
	}
	if length > 0 && n >= length {
		return length - 1
	}
	return n
}
