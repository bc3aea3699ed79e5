package tail

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tessro/quire/internal/core"
	"github.com/tessro/quire/internal/seek"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventBookLoaded EventType = iota
	EventTrackChange
	EventChapterChange
	EventSeekStart
	EventSeekEnd
	EventPause
	EventResume
	EventSpeedChange
	EventFinished
)

// String returns the event name, e.g. "chapter_change".
func (t EventType) String() string {
	return eventTypeName(t)
}

// Event represents a playback state change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *core.PlaybackState
	Current   *core.PlaybackState
	Seek      *seek.Snapshot
}

// StateSource reports the current playback state.
type StateSource interface {
	State() core.PlaybackState
}

// SeekSource publishes seek transitions.
type SeekSource interface {
	Subscribe(fn func(seek.Snapshot)) func()
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithSeekSource reports seek start and end as they happen rather than on
// the next poll.
func WithSeekSource(src SeekSource) WatcherOption {
	return func(w *Watcher) {
		w.seeks = src
	}
}

// WithWatcherClock sets the clock used to stamp events.
func WithWatcherClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

// Watcher polls a state source for changes and emits events.
type Watcher struct {
	source   StateSource
	seeks    SeekSource
	interval time.Duration
	now      func() time.Time
	events   chan Event
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a new state watcher.
func NewWatcher(source StateSource, interval time.Duration, opts ...WatcherOption) *Watcher {
	if interval == 0 {
		interval = time.Second
	}
	w := &Watcher{
		source:   source,
		interval: interval,
		now:      time.Now,
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Events returns the channel of playback events. It is closed when Start
// returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start polls until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.events)

	var seeks chan seek.Snapshot
	if w.seeks != nil {
		seeks = make(chan seek.Snapshot, 16)
		unsubscribe := w.seeks.Subscribe(func(s seek.Snapshot) {
			select {
			case seeks <- s:
			default:
			}
		})
		defer unsubscribe()
	}

	initial := w.source.State()
	prev := &initial
	w.emit(diffStates(nil, prev, w.now()))

	var seeking bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case s := <-seeks:
			if e, ok := seekEvent(&seeking, s, w.now()); ok {
				if e.Type == EventSeekEnd {
					st := w.source.State()
					e.Current = &st
				}
				w.emit([]Event{e})
			}
		case <-ticker.C:
			curr := w.source.State()
			w.emit(diffStates(prev, &curr, w.now()))
			prev = &curr
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) emit(events []Event) {
	for _, e := range events {
		select {
		case w.events <- e:
		default:
			// Drop event if channel is full
		}
	}
}

// seekEvent turns a snapshot into a start or end event, tracking whether a
// seek is already in flight so that intermediate scrub ticks stay quiet.
func seekEvent(seeking *bool, s seek.Snapshot, now time.Time) (Event, bool) {
	switch {
	case s.IsSeeking && !*seeking:
		*seeking = true
		return Event{Type: EventSeekStart, Timestamp: now, Seek: &s}, true
	case !s.IsSeeking && *seeking && s.State == seek.StateIdle:
		*seeking = false
		return Event{Type: EventSeekEnd, Timestamp: now, Seek: &s}, true
	}
	return Event{}, false
}

// diffStates compares two states and returns detected events.
func diffStates(prev, curr *core.PlaybackState, now time.Time) []Event {
	if curr == nil {
		return nil
	}

	// First poll - no previous state
	if prev == nil {
		if curr.HasBook() {
			return []Event{{Type: EventBookLoaded, Timestamp: now, Current: curr}}
		}
		return nil
	}

	var events []Event
	add := func(t EventType) {
		events = append(events, Event{Type: t, Timestamp: now, Previous: prev, Current: curr})
	}

	if bookChanged(prev, curr) {
		if curr.HasBook() {
			add(EventBookLoaded)
		}
		return events
	}

	if trackIndex(prev) != trackIndex(curr) {
		add(EventTrackChange)
	}
	if prev.ChapterIndex != curr.ChapterIndex {
		add(EventChapterChange)
	}

	if prev.IsPlaying && !curr.IsPlaying {
		if finished(curr) {
			add(EventFinished)
		} else {
			add(EventPause)
		}
	} else if !prev.IsPlaying && curr.IsPlaying {
		add(EventResume)
	}

	if math.Abs(prev.Rate-curr.Rate) > 0.001 {
		add(EventSpeedChange)
	}

	return events
}

func bookChanged(prev, curr *core.PlaybackState) bool {
	if !prev.HasBook() && !curr.HasBook() {
		return false
	}
	if !prev.HasBook() || !curr.HasBook() {
		return true
	}
	return prev.Book.ID != curr.Book.ID
}

func trackIndex(s *core.PlaybackState) int {
	if s.Track == nil {
		return -1
	}
	return s.Track.Index
}

// finished returns true if playback stopped at the end of the book.
func finished(s *core.PlaybackState) bool {
	return s.Duration > 0 && s.Duration-s.Position < 0.5
}
