// Package seek arbitrates every change of playback position: relative and
// absolute seeks, chapter jumps and hold-to-scrub. One lock per playback
// session serialises them; a request arriving while the lock is held fails
// with ErrSeekInProgress instead of queueing.
package seek

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/tessro/quire/internal/core"
	qerr "github.com/tessro/quire/internal/errors"
	"github.com/tessro/quire/internal/position"
)

// DefaultPrevChapterThreshold is how far into a chapter PrevChapter
// restarts it instead of going back one.
const DefaultPrevChapterThreshold = 3 * time.Second

// ErrNoDirection is returned when a continuous seek is started without a
// direction.
var ErrNoDirection = errors.New("continuous seek requires a direction")

// Metrics receives one event per finished or rejected operation.
type Metrics interface {
	SeekCompleted(operation, result string)
}

// Result is the outcome of a committed seek.
type Result struct {
	Position float64
	Crossing *position.ChapterCrossing
}

type scrub struct {
	gen  uint64
	done chan struct{}
}

// Orchestrator owns the seek lock and state machine for one playback
// session.
type Orchestrator struct {
	mu     sync.Mutex
	player core.Player
	book   *core.Book

	state  State
	lock   Lock
	origin float64
	bound  float64
	gen    uint64
	scrub  *scrub

	subscribers map[int]func(Snapshot)
	nextSub     int

	prevThreshold time.Duration
	nearEnd       float64
	scrubCfg      ScrubConfig
	now           func() time.Time
	ticks         func(time.Duration) (<-chan time.Time, func())
	logger        *slog.Logger
	metrics       Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPrevChapterThreshold sets how far into a chapter PrevChapter
// restarts the chapter.
func WithPrevChapterThreshold(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.prevThreshold = d
		}
	}
}

// WithNearEndThreshold sets the distance from a track end at which a
// forward seek snaps to the next track.
func WithNearEndThreshold(seconds float64) Option {
	return func(o *Orchestrator) {
		if seconds >= 0 {
			o.nearEnd = seconds
		}
	}
}

// WithScrub sets the continuous-seek tick and acceleration.
func WithScrub(cfg ScrubConfig) Option {
	return func(o *Orchestrator) {
		if cfg.TickInterval > 0 && len(cfg.Steps) > 0 {
			o.scrubCfg = cfg
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics reports operation outcomes.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an idle orchestrator driving player over book. book may be
// nil, in which case chapter operations fail with ErrNoBookLoaded.
func New(player core.Player, book *core.Book, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		player:        player,
		book:          book,
		state:         StateIdle,
		lock:          unlocked(),
		subscribers:   make(map[int]func(Snapshot)),
		prevThreshold: DefaultPrevChapterThreshold,
		nearEnd:       position.DefaultNearEndThreshold,
		scrubCfg:      DefaultScrub(),
		now:           time.Now,
		ticks:         newTicker,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// SetBook replaces the track and chapter tables. It fails while a seek is
// in progress.
func (o *Orchestrator) SetBook(book *core.Book) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lock.Locked {
		return fmt.Errorf("set book: %w", qerr.ErrSeekInProgress)
	}
	o.book = book
	return nil
}

// Subscribe registers fn to receive a snapshot on every transition. fn is
// called without the orchestrator's lock held. The returned func removes
// the subscription.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) func() {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subscribers[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subscribers, id)
		o.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// SeekRelative moves by delta seconds from the current position.
func (o *Orchestrator) SeekRelative(ctx context.Context, delta float64) (Result, error) {
	return o.run(ctx, OpSeek, func(current float64, _ []core.Chapter) (float64, int, error) {
		return current + delta, NoChapter, nil
	})
}

// SeekAbsolute moves to pos seconds on the global timeline.
func (o *Orchestrator) SeekAbsolute(ctx context.Context, pos float64) (Result, error) {
	return o.run(ctx, OpSeek, func(float64, []core.Chapter) (float64, int, error) {
		return pos, NoChapter, nil
	})
}

// SeekToChapter moves to the start of chapter index.
func (o *Orchestrator) SeekToChapter(ctx context.Context, index int) (Result, error) {
	return o.run(ctx, OpChapterChange, func(_ float64, chapters []core.Chapter) (float64, int, error) {
		if index < 0 || index >= len(chapters) {
			return 0, NoChapter, fmt.Errorf("chapter %d of %d: %w", index, len(chapters), qerr.ErrInvalidChapterIndex)
		}
		return chapters[index].Start, index, nil
	})
}

// NextChapter moves to the start of the chapter after the current one.
func (o *Orchestrator) NextChapter(ctx context.Context) (Result, error) {
	return o.run(ctx, OpChapterChange, func(current float64, chapters []core.Chapter) (float64, int, error) {
		idx := position.ChapterAt(chapters, current)
		if idx < 0 || idx+1 >= len(chapters) {
			return 0, NoChapter, fmt.Errorf("no chapter after %d: %w", idx, qerr.ErrInvalidChapterIndex)
		}
		return chapters[idx+1].Start, idx + 1, nil
	})
}

// PrevChapter restarts the current chapter when more than the threshold
// has played since it began, and otherwise moves to the previous chapter.
// In the first chapter it always restarts.
func (o *Orchestrator) PrevChapter(ctx context.Context) (Result, error) {
	threshold := o.prevThreshold.Seconds()
	return o.run(ctx, OpChapterChange, func(current float64, chapters []core.Chapter) (float64, int, error) {
		idx := position.ChapterAt(chapters, current)
		if idx < 0 {
			return 0, NoChapter, fmt.Errorf("no chapters: %w", qerr.ErrInvalidChapterIndex)
		}
		if current-chapters[idx].Start > threshold || idx == 0 {
			return chapters[idx].Start, idx, nil
		}
		return chapters[idx-1].Start, idx - 1, nil
	})
}

// CancelSeek abandons the operation holding the lock. It is always
// accepted and does nothing when idle. A primitive call still in flight
// for the cancelled operation has its result discarded.
func (o *Orchestrator) CancelSeek() {
	o.mu.Lock()
	if !o.lock.Locked {
		o.mu.Unlock()
		return
	}
	op := o.lock.Operation
	o.gen++
	o.releaseLocked()
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.logger.Debug("seek cancelled", "operation", op)
	o.record(op, "cancelled")
	o.emit(snap)
}

// StartContinuousSeek begins a hold-to-scrub in dir. While held, a virtual
// position advances at an accelerating rate; the player is not touched
// until StopContinuousSeek.
func (o *Orchestrator) StartContinuousSeek(dir Direction) error {
	if dir == DirectionNone {
		return ErrNoDirection
	}

	current, duration := o.player.Position(), o.player.Duration()

	o.mu.Lock()
	if o.lock.Locked {
		o.mu.Unlock()
		o.record(OpContinuous, "conflict")
		return fmt.Errorf("%s: %w", OpContinuous, qerr.ErrSeekInProgress)
	}
	o.bound = o.boundLocked(duration)
	gen := o.acquire(OpContinuous, current, current, NoChapter)
	o.lock.Direction = dir

	s := &scrub{gen: gen, done: make(chan struct{})}
	o.scrub = s
	ch, stop := o.ticks(o.scrubCfg.TickInterval)
	snap := o.snapshotLocked()
	o.mu.Unlock()

	go o.scrubLoop(s, ch, stop)
	o.emit(snap)
	return nil
}

// StopContinuousSeek ends a scrub and commits its virtual position with a
// single player seek. The position is committed as scrubbed, without the
// near-end snap of a plain seek. It does nothing when idle.
func (o *Orchestrator) StopContinuousSeek(ctx context.Context) (Result, error) {
	o.mu.Lock()
	if !o.lock.Locked {
		o.mu.Unlock()
		return Result{Position: o.player.Position()}, nil
	}
	if o.lock.Operation != OpContinuous || o.scrub == nil {
		op := o.lock.Operation
		o.mu.Unlock()
		return Result{}, fmt.Errorf("stop continuous seek during %s: %w", op, qerr.ErrSeekInProgress)
	}

	o.stopScrubLocked()
	gen := o.gen
	from := o.origin
	target := clamp(o.lock.TargetPosition, 0, o.bound)
	o.lock.TargetPosition = target
	o.state = StateConfirming
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.emit(snap)
	return o.commit(ctx, gen, OpContinuous, from, target)
}

func (o *Orchestrator) scrubLoop(s *scrub, ch <-chan time.Time, stop func()) {
	defer stop()
	for {
		select {
		case <-s.done:
			return
		case <-ch:
			o.tick(s)
		}
	}
}

// tick advances the virtual scrub position by one step. Ticks belonging to
// a released lock are ignored.
func (o *Orchestrator) tick(s *scrub) {
	o.mu.Lock()
	if o.scrub != s || o.gen != s.gen {
		o.mu.Unlock()
		return
	}
	held := o.now().Sub(o.lock.StartedAt)
	step := o.scrubCfg.StepAt(held) * o.lock.Direction.Sign()
	o.lock.TargetPosition = clamp(o.lock.TargetPosition+step, 0, o.bound)
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.emit(snap)
}

// resolver turns the current position and chapter table into a target
// position and target chapter.
type resolver func(current float64, chapters []core.Chapter) (float64, int, error)

func (o *Orchestrator) run(ctx context.Context, op Operation, resolve resolver) (Result, error) {
	// Read the player before locking; the Locked check below rejects
	// anything that started in between.
	current, duration := o.player.Position(), o.player.Duration()

	o.mu.Lock()
	if o.lock.Locked {
		o.mu.Unlock()
		o.record(op, "conflict")
		return Result{}, fmt.Errorf("%s: %w", op, qerr.ErrSeekInProgress)
	}
	if op == OpChapterChange && o.book == nil {
		o.mu.Unlock()
		return Result{}, fmt.Errorf("%s: %w", op, qerr.ErrNoBookLoaded)
	}

	var chapters []core.Chapter
	if o.book != nil {
		chapters = o.book.Chapters
	}
	target, chapter, err := resolve(current, chapters)
	if err != nil {
		o.mu.Unlock()
		o.record(op, "rejected")
		return Result{}, err
	}
	o.bound = o.boundLocked(duration)
	target = o.resolveTarget(op, current, target)
	gen := o.acquire(op, current, target, chapter)
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.logger.Debug("seek started", "operation", op, "from", current, "to", target)
	o.emit(snap)
	return o.commit(ctx, gen, op, current, target)
}

// commit issues the player seek for the operation identified by gen and
// settles the state machine, unless the operation was cancelled while the
// player call was in flight.
func (o *Orchestrator) commit(ctx context.Context, gen uint64, op Operation, from, target float64) (Result, error) {
	err := o.player.Seek(ctx, target)

	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		o.logger.Debug("discarding stale seek result", "operation", op, "to", target)
		return Result{}, fmt.Errorf("%s: %w", op, qerr.ErrSeekCancelled)
	}
	if err != nil {
		o.releaseLocked()
		snap := o.snapshotLocked()
		o.mu.Unlock()

		o.logger.Warn("seek failed", "operation", op, "to", target, "error", err)
		o.record(op, "failed")
		o.emit(snap)
		return Result{}, fmt.Errorf("%s to %.3f: %w: %w", op, target, qerr.ErrPlaybackFailure, err)
	}

	var chapters []core.Chapter
	if o.book != nil {
		chapters = o.book.Chapters
	}
	crossing := position.Crossing(chapters, from, target)

	snaps := make([]Snapshot, 0, 2)
	if crossing != nil {
		o.state = StateChapterTransition
		snaps = append(snaps, o.snapshotLocked())
	}
	o.releaseLocked()
	snaps = append(snaps, o.snapshotLocked())
	o.mu.Unlock()

	o.record(op, "ok")
	o.emit(snaps...)
	return Result{Position: target, Crossing: crossing}, nil
}

// resolveTarget clamps target to the book and, for plain seeks moving
// forward, snaps a target that lands in the last moments of a track onto
// the start of the next one.
func (o *Orchestrator) resolveTarget(op Operation, current, target float64) float64 {
	if math.IsNaN(target) {
		target = current
	}
	target = clamp(target, 0, o.bound)
	if op != OpSeek || target <= current || o.book == nil {
		return target
	}

	tracks := o.book.Tracks
	loc, ok := position.Locate(tracks, target)
	if !ok || !position.IsNearEnd(tracks, loc.Track, loc.Offset, o.nearEnd) {
		return target
	}
	if next, ok := position.NextTrack(tracks, loc.Track); ok {
		return tracks[next].Start
	}
	return target
}

// boundLocked is the end of the timeline for the next operation: the book
// length, or playerDuration when no book is set.
func (o *Orchestrator) boundLocked(playerDuration float64) float64 {
	if o.book != nil && len(o.book.Tracks) > 0 {
		return position.TotalDuration(o.book.Tracks)
	}
	return playerDuration
}

func (o *Orchestrator) acquire(op Operation, current, target float64, chapter int) uint64 {
	o.gen++
	o.origin = current
	o.lock = Lock{
		Locked:         true,
		Operation:      op,
		StartedAt:      o.now(),
		TargetPosition: target,
		TargetChapter:  chapter,
		Direction:      directionOf(current, target),
	}
	o.state = StateSeeking
	return o.gen
}

// releaseLocked stops any scrub timer before clearing the lock so that no
// tick can land after release.
func (o *Orchestrator) releaseLocked() {
	o.stopScrubLocked()
	o.lock = unlocked()
	o.origin = 0
	o.bound = 0
	o.state = StateIdle
}

func (o *Orchestrator) stopScrubLocked() {
	if o.scrub != nil {
		close(o.scrub.done)
		o.scrub = nil
	}
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{
		State:     o.state,
		Lock:      o.lock,
		IsSeeking: o.lock.Locked,
		Direction: o.lock.Direction,
		IsChangingChapter: o.state == StateChapterTransition ||
			(o.lock.Locked && o.lock.Operation == OpChapterChange),
	}
	if o.lock.Locked {
		s.Position = o.lock.TargetPosition
		s.Delta = o.lock.TargetPosition - o.origin
		s.Magnitude = math.Abs(s.Delta)
	}
	return s
}

func (o *Orchestrator) emit(snaps ...Snapshot) {
	o.mu.Lock()
	subs := make([]func(Snapshot), 0, len(o.subscribers))
	for _, fn := range o.subscribers {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, snap := range snaps {
		for _, fn := range subs {
			fn(snap)
		}
	}
}

func (o *Orchestrator) record(op Operation, result string) {
	if o.metrics != nil {
		o.metrics.SeekCompleted(op.String(), result)
	}
}
