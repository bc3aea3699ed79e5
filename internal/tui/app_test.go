package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tessro/quire/internal/core"
	"github.com/tessro/quire/internal/remote"
	"github.com/tessro/quire/internal/seek"
	"github.com/tessro/quire/internal/tail"
)

type dispatched struct {
	cmd  remote.Command
	data any
}

type fakeRouter struct {
	mu    sync.Mutex
	calls []dispatched
	err   error
	speed float64
}

func (f *fakeRouter) Dispatch(_ context.Context, cmd remote.Command, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatched{cmd, data})
	return f.err
}

func (f *fakeRouter) CycleSpeed(context.Context) (float64, error) {
	f.speed += 0.25
	return f.speed, nil
}

type fakeSeeker struct {
	snap      seek.Snapshot
	started   []seek.Direction
	stopped   int
	cancelled int
	startErr  error
}

func (f *fakeSeeker) Snapshot() seek.Snapshot { return f.snap }

func (f *fakeSeeker) StartContinuousSeek(dir seek.Direction) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, dir)
	f.snap = seek.Snapshot{State: seek.StateSeeking, IsSeeking: true, Direction: dir,
		Lock: seek.Lock{Locked: true, Operation: seek.OpContinuous, TargetPosition: 100}}
	return nil
}

func (f *fakeSeeker) StopContinuousSeek(context.Context) (seek.Result, error) {
	f.stopped++
	f.snap = seek.Snapshot{State: seek.StateIdle}
	return seek.Result{Position: 125}, nil
}

func (f *fakeSeeker) CancelSeek() {
	f.cancelled++
	f.snap = seek.Snapshot{State: seek.StateIdle}
}

type staticSource struct{ state core.PlaybackState }

func (s staticSource) State() core.PlaybackState { return s.state }

func testBook() *core.Book {
	return &core.Book{
		ID:     "b1",
		Title:  "The Long Way",
		Author: "A. Writer",
		Tracks: []core.Track{{Index: 0, Source: "01.mp3", Duration: 1200}},
		Chapters: []core.Chapter{
			{Index: 0, Title: "Opening", Start: 0, End: 540},
			{Index: 1, Title: "Middle", Start: 540, End: 1000},
			{Index: 2, Title: "Close", Start: 1000, End: 1200},
		},
	}
}

func newTestModel(t *testing.T) (Model, *fakeRouter, *fakeSeeker) {
	t.Helper()
	b := testBook()
	src := staticSource{core.PlaybackState{
		Book:     b,
		Track:    &b.Tracks[0],
		Chapter:  &b.Chapters[0],
		Position: 3723,
		Duration: 1200,
		Rate:     1,
	}}
	r := &fakeRouter{speed: 1}
	s := &fakeSeeker{}
	m := NewModel(Options{Source: src, Router: r, Seeker: s})
	m.now = func() time.Time { return time.Unix(1000, 0) }
	m = update(t, m, tickMsg(time.Now()))
	return m, r, s
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(k)
	var out tea.Msg
	if cmd != nil {
		out = cmd()
	}
	return next.(Model), out
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestKeysDispatchCommands(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want remote.Command
	}{
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, remote.CommandToggle},
		{tea.KeyMsg{Type: tea.KeyLeft}, remote.CommandSkipBackward},
		{tea.KeyMsg{Type: tea.KeyRight}, remote.CommandSkipForward},
		{runes("["), remote.CommandPreviousTrack},
		{runes("]"), remote.CommandNextTrack},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			m, r, _ := newTestModel(t)
			_, msg := press(t, m, tt.key)
			if msg != nil {
				t.Fatalf("unexpected message %v", msg)
			}
			if len(r.calls) != 1 || r.calls[0].cmd != tt.want {
				t.Errorf("dispatched %+v, want %s", r.calls, tt.want)
			}
		})
	}
}

func TestDispatchErrorShowsInStatusBar(t *testing.T) {
	m, r, _ := newTestModel(t)
	r.err = errors.New("boom")
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	m, msg := press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m = update(t, m, msg)
	if m.lastError == nil {
		t.Fatal("lastError not set")
	}
	if !strings.Contains(m.renderStatusBar(), "boom") {
		t.Error("status bar should show the error")
	}

	// Errors expire on a later tick.
	m.now = func() time.Time { return time.Unix(1000, 0).Add(time.Minute) }
	m = update(t, m, tickMsg(time.Now()))
	if m.lastError != nil {
		t.Error("error should expire")
	}
}

func TestCycleSpeedFlashes(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, msg := press(t, m, runes("s"))
	m = update(t, m, msg)
	if m.flash != "Speed 1.25x" {
		t.Errorf("flash = %q", m.flash)
	}
}

func TestScrubToggle(t *testing.T) {
	m, _, s := newTestModel(t)

	m, msg := press(t, m, runes(">"))
	if msg != nil {
		t.Fatalf("start should not produce a message, got %v", msg)
	}
	if len(s.started) != 1 || s.started[0] != seek.DirectionForward {
		t.Fatalf("started = %v", s.started)
	}
	if m.scrubbing != seek.DirectionForward || !m.snap.IsSeeking {
		t.Fatalf("scrubbing = %v, snap = %+v", m.scrubbing, m.snap)
	}

	// A tick during the scrub keeps it running.
	m = update(t, m, tickMsg(time.Now()))
	if m.scrubbing != seek.DirectionForward {
		t.Fatal("tick should not end the scrub")
	}

	// Either scrub key commits.
	m, msg = press(t, m, runes("<"))
	if s.stopped != 1 {
		t.Fatalf("stopped = %d, want 1", s.stopped)
	}
	m = update(t, m, msg)
	if m.flash != "Landed at 2:05" || m.scrubbing != seek.DirectionNone {
		t.Errorf("flash = %q, scrubbing = %v", m.flash, m.scrubbing)
	}
}

func TestScrubStartRejected(t *testing.T) {
	m, _, s := newTestModel(t)
	s.startErr = errors.New("busy")
	m, _ = press(t, m, runes("<"))
	if m.lastError == nil || m.scrubbing != seek.DirectionNone {
		t.Errorf("lastError = %v, scrubbing = %v", m.lastError, m.scrubbing)
	}
}

func TestEscCancelsSeek(t *testing.T) {
	m, _, s := newTestModel(t)
	m, _ = press(t, m, runes(">"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	if s.cancelled != 1 {
		t.Errorf("cancelled = %d, want 1", s.cancelled)
	}
	if m.scrubbing != seek.DirectionNone || m.snap.IsSeeking {
		t.Errorf("scrub should be cleared, snap = %+v", m.snap)
	}
}

func TestCopyPosition(t *testing.T) {
	m, _, _ := newTestModel(t)
	var copied string
	m.copy = func(s string) error {
		copied = s
		return nil
	}

	m, msg := press(t, m, runes("y"))
	m = update(t, m, msg)
	if copied != "1:02:03" {
		t.Errorf("copied %q, want 1:02:03", copied)
	}
	if m.flash != "Copied 1:02:03" {
		t.Errorf("flash = %q", m.flash)
	}
}

func TestGotoPosition(t *testing.T) {
	m, r, _ := newTestModel(t)

	m, _ = press(t, m, runes("g"))
	if !m.showGoto {
		t.Fatal("goto prompt should open")
	}
	m.gotoInput.SetValue("bogus")
	m, msg := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if msg != nil || m.lastError == nil || !m.showGoto {
		t.Fatalf("invalid input should keep the prompt open with an error")
	}

	m.gotoInput.SetValue("10:30")
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.showGoto {
		t.Error("prompt should close")
	}
	if len(r.calls) != 1 || r.calls[0].cmd != remote.CommandSeekTo || r.calls[0].data != 630.0 {
		t.Errorf("dispatched %+v, want seek_to 630", r.calls)
	}
}

func TestChapterPanelJumps(t *testing.T) {
	m, r, _ := newTestModel(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focusedPanel != PanelChapters {
		t.Fatalf("focused = %v, want chapters", m.focusedPanel)
	}
	m, _ = press(t, m, runes("j"))
	m, _ = press(t, m, runes("j"))
	m, _ = press(t, m, runes("j"))
	if got := m.chapters.Selected(); got != 2 {
		t.Fatalf("selected = %d, want 2 (clamped)", got)
	}
	m, _ = press(t, m, runes("k"))
	_, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if len(r.calls) != 1 || r.calls[0].cmd != remote.CommandSeekTo || r.calls[0].data != 540.0 {
		t.Errorf("dispatched %+v, want seek_to 540", r.calls)
	}
}

func TestEventsFeedActivity(t *testing.T) {
	events := make(chan tail.Event, 1)
	m := NewModel(Options{Events: events})

	events <- tail.Event{Type: tail.EventFinished, Timestamp: time.Unix(0, 0)}
	msg := m.waitEvent()()
	m = update(t, m, msg)
	if got := m.activity.Entries(); len(got) != 1 || !strings.Contains(got[0].Text, "Finished") {
		t.Errorf("activity = %+v", got)
	}

	close(events)
	m = update(t, m, m.waitEvent()())
	if m.waitEvent() != nil {
		t.Error("closed events should stop the listener")
	}
}

func TestViewRenders(t *testing.T) {
	m, _, _ := newTestModel(t)
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() before size = %q", got)
	}

	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	view := m.View()
	for _, want := range []string{"The Long Way", "Chapters", "Opening", "Activity"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}

	m, _ = press(t, m, runes("?"))
	if !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Error("help overlay not shown")
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	if m.showHelp {
		t.Error("esc should close help")
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, msg := press(t, m, runes("q"))
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("msg = %T, want tea.QuitMsg", msg)
	}
	if m.View() != "" {
		t.Error("View() after quit should be empty")
	}
}

type fakeShelf struct {
	books []*core.Book
	i     int
}

func (f *fakeShelf) NextBook(context.Context) (*core.Book, error) {
	if f.i+1 >= len(f.books) {
		return nil, errors.New("no more books")
	}
	f.i++
	return f.books[f.i], nil
}

func (f *fakeShelf) PreviousBook(context.Context) (*core.Book, error) {
	if f.i == 0 {
		return nil, errors.New("no more books")
	}
	f.i--
	return f.books[f.i], nil
}

func TestBookSwitching(t *testing.T) {
	second := testBook()
	second.Title = "The Short Way"
	shelf := &fakeShelf{books: []*core.Book{testBook(), second}}

	m, _, _ := newTestModel(t)
	m.shelf = shelf

	m, msg := press(t, m, runes("n"))
	m = update(t, m, msg)
	if m.flash != "Opened The Short Way" || shelf.i != 1 {
		t.Errorf("flash = %q, index = %d", m.flash, shelf.i)
	}

	m, msg = press(t, m, runes("n"))
	m = update(t, m, msg)
	if m.lastError == nil || shelf.i != 1 {
		t.Errorf("switching past the last book should report an error")
	}

	m, msg = press(t, m, runes("p"))
	m = update(t, m, msg)
	if m.flash != "Opened The Long Way" || shelf.i != 0 {
		t.Errorf("flash = %q, index = %d", m.flash, shelf.i)
	}
}

func TestBookKeysWithoutShelf(t *testing.T) {
	m, r, _ := newTestModel(t)
	_, msg := press(t, m, runes("n"))
	if msg != nil || len(r.calls) != 0 {
		t.Errorf("msg = %v, calls = %v", msg, r.calls)
	}
}
