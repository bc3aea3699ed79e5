package tui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/quire/internal/core"
	"github.com/tessro/quire/internal/remote"
	"github.com/tessro/quire/internal/seek"
	"github.com/tessro/quire/internal/tail"
	"github.com/tessro/quire/internal/tui/components"
	"github.com/tessro/quire/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelNowPlaying Panel = iota
	PanelChapters
	PanelActivity
	panelCount
)

const (
	commandTimeout = 5 * time.Second
	errorDisplay   = 5 * time.Second
)

// Controller sends remote commands. *remote.Router satisfies it.
type Controller interface {
	Dispatch(ctx context.Context, cmd remote.Command, data any) error
	CycleSpeed(ctx context.Context) (float64, error)
}

// Seeker exposes the seek lock and scrubbing. *seek.Orchestrator
// satisfies it.
type Seeker interface {
	Snapshot() seek.Snapshot
	StartContinuousSeek(dir seek.Direction) error
	StopContinuousSeek(ctx context.Context) (seek.Result, error)
	CancelSeek()
}

// Shelf switches between the books of a session.
type Shelf interface {
	NextBook(ctx context.Context) (*core.Book, error)
	PreviousBook(ctx context.Context) (*core.Book, error)
}

// Options wires the dashboard to a playback session.
type Options struct {
	Source  tail.StateSource
	Router  Controller
	Seeker  Seeker
	Shelf   Shelf
	Events  <-chan tail.Event
	Refresh time.Duration
	Theme   string
}

// Model is the main TUI model
type Model struct {
	source  tail.StateSource
	router  Controller
	seeker  Seeker
	shelf   Shelf
	events  <-chan tail.Event
	refresh time.Duration
	copy    func(string) error
	now     func() time.Time

	width        int
	height       int
	focusedPanel Panel

	state *core.PlaybackState
	snap  seek.Snapshot

	nowPlaying *components.NowPlaying
	chapters   *components.Chapters
	activity   *components.Activity

	keys keyMap
	help help.Model

	showHelp  bool
	showGoto  bool
	gotoInput textinput.Model

	scrubbing seek.Direction

	flash       string
	lastError   error
	errorExpiry time.Time

	quitting bool
}

// NewModel creates a new TUI model
func NewModel(opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = 250 * time.Millisecond
	}

	ti := textinput.New()
	ti.Placeholder = "1:02:03"
	ti.CharLimit = 12
	ti.Width = 16

	return Model{
		source:     opts.Source,
		router:     opts.Router,
		seeker:     opts.Seeker,
		shelf:      opts.Shelf,
		events:     opts.Events,
		refresh:    opts.Refresh,
		copy:       clipboard.WriteAll,
		now:        time.Now,
		nowPlaying: components.NewNowPlaying(),
		chapters:   components.NewChapters(),
		activity:   components.NewActivity(),
		keys:       defaultKeyMap(),
		help:       help.New(),
		gotoInput:  ti,
	}
}

// Messages
type tickMsg time.Time
type eventMsg tail.Event
type eventsClosedMsg struct{}
type errMsg struct{ err error }
type flashMsg string

// Commands
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	events := m.events
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}

// dispatch runs a remote command off the UI goroutine.
func (m Model) dispatch(cmd remote.Command, data any) tea.Cmd {
	router := m.router
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := router.Dispatch(ctx, cmd, data); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m Model) cycleSpeed() tea.Cmd {
	router := m.router
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		rate, err := router.CycleSpeed(ctx)
		if err != nil {
			return errMsg{err}
		}
		return flashMsg(formatRate(rate))
	}
}

func (m Model) stopScrub() tea.Cmd {
	seeker := m.seeker
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		res, err := seeker.StopContinuousSeek(ctx)
		if err != nil {
			return errMsg{err}
		}
		return flashMsg("Landed at " + core.FormatClock(res.Position))
	}
}

// switchBook opens the next (delta > 0) or previous book.
func (m Model) switchBook(delta int) tea.Cmd {
	shelf := m.shelf
	if shelf == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		step := shelf.NextBook
		if delta < 0 {
			step = shelf.PreviousBook
		}
		book, err := step(ctx)
		if err != nil {
			return errMsg{err}
		}
		return flashMsg("Opened " + book.Title)
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitEvent())
}

func (m *Model) refreshState() {
	if m.source != nil {
		st := m.source.State()
		m.state = &st
	}
	if m.seeker != nil {
		m.snap = m.seeker.Snapshot()
	}
	if m.snap.State == seek.StateIdle && !m.snap.IsSeeking {
		m.scrubbing = seek.DirectionNone
	}
	if m.lastError != nil && m.now().After(m.errorExpiry) {
		m.lastError = nil
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.refreshState()
		return m, m.tick()

	case eventMsg:
		m.activity.Add(tail.Event(msg))
		return m, m.waitEvent()

	case eventsClosedMsg:
		m.events = nil
		return m, nil

	case errMsg:
		m.lastError = msg.err
		m.errorExpiry = m.now().Add(errorDisplay)
		return m, nil

	case flashMsg:
		m.flash = string(msg)
		return m, nil
	}

	if m.showGoto {
		var cmd tea.Cmd
		m.gotoInput, cmd = m.gotoInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Cancel) {
			m.showHelp = false
		}
		return m, nil
	}

	if m.showGoto {
		return m.handleGotoKeyPress(msg)
	}

	m.flash = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.NextPanel):
		m.focusedPanel = (m.focusedPanel + 1) % panelCount
		return m, nil

	case key.Matches(msg, m.keys.PrevPanel):
		m.focusedPanel = (m.focusedPanel + panelCount - 1) % panelCount
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		return m, m.dispatch(remote.CommandToggle, nil)

	case key.Matches(msg, m.keys.SkipBack):
		return m, m.dispatch(remote.CommandSkipBackward, nil)

	case key.Matches(msg, m.keys.SkipForward):
		return m, m.dispatch(remote.CommandSkipForward, nil)

	case key.Matches(msg, m.keys.PrevTrack):
		return m, m.dispatch(remote.CommandPreviousTrack, nil)

	case key.Matches(msg, m.keys.NextTrack):
		return m, m.dispatch(remote.CommandNextTrack, nil)

	case key.Matches(msg, m.keys.NextBook):
		return m, m.switchBook(1)

	case key.Matches(msg, m.keys.PrevBook):
		return m, m.switchBook(-1)

	case key.Matches(msg, m.keys.Speed):
		return m, m.cycleSpeed()

	case key.Matches(msg, m.keys.ScrubBack):
		return m.toggleScrub(seek.DirectionBackward)

	case key.Matches(msg, m.keys.ScrubForward):
		return m.toggleScrub(seek.DirectionForward)

	case key.Matches(msg, m.keys.Cancel):
		if m.seeker != nil {
			m.seeker.CancelSeek()
		}
		m.scrubbing = seek.DirectionNone
		m.refreshState()
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyPosition()

	case key.Matches(msg, m.keys.Goto):
		m.showGoto = true
		m.gotoInput.SetValue("")
		m.gotoInput.Focus()
		return m, textinput.Blink
	}

	if m.focusedPanel == PanelChapters {
		count := 0
		if m.state.HasBook() {
			count = len(m.state.Book.Chapters)
		}
		switch {
		case key.Matches(msg, m.keys.Down):
			m.chapters.SelectNext(count)
		case key.Matches(msg, m.keys.Up):
			m.chapters.SelectPrev()
		case key.Matches(msg, m.keys.Select):
			if count == 0 {
				break
			}
			if ch := m.state.Book.Chapter(m.chapters.Selected()); ch != nil {
				return m, m.dispatch(remote.CommandSeekTo, ch.Start)
			}
		}
	}

	return m, nil
}

func (m Model) handleGotoKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.showGoto = false
		m.gotoInput.Blur()
		return m, nil

	case "enter":
		pos, err := core.ParseClock(m.gotoInput.Value())
		if err != nil {
			m.lastError = err
			m.errorExpiry = m.now().Add(errorDisplay)
			return m, nil
		}
		m.showGoto = false
		m.gotoInput.Blur()
		return m, m.dispatch(remote.CommandSeekTo, pos)
	}

	var cmd tea.Cmd
	m.gotoInput, cmd = m.gotoInput.Update(msg)
	return m, cmd
}

// toggleScrub starts scrubbing in dir, or commits a scrub already running.
func (m Model) toggleScrub(dir seek.Direction) (tea.Model, tea.Cmd) {
	if m.seeker == nil {
		return m, nil
	}
	if m.scrubbing != seek.DirectionNone {
		m.scrubbing = seek.DirectionNone
		return m, m.stopScrub()
	}
	if err := m.seeker.StartContinuousSeek(dir); err != nil {
		m.lastError = err
		m.errorExpiry = m.now().Add(errorDisplay)
		return m, nil
	}
	m.refreshState()
	m.scrubbing = dir
	return m, nil
}

func (m Model) copyPosition() tea.Cmd {
	if m.state == nil {
		return nil
	}
	pos := core.FormatClock(m.state.Position)
	copyFn := m.copy
	return func() tea.Msg {
		if err := copyFn(pos); err != nil {
			return errMsg{err}
		}
		return flashMsg("Copied " + pos)
	}
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	leftWidth := m.width * 60 / 100
	rightWidth := m.width - leftWidth - 2
	mainHeight := m.height - 2
	topHeight := mainHeight * 55 / 100
	bottomHeight := mainHeight - topHeight - 2

	nowPlaying := m.nowPlaying.Render(m.state, m.snap, leftWidth-2, topHeight-2, m.focusedPanel == PanelNowPlaying)
	activity := m.activity.Render(leftWidth-2, bottomHeight, m.focusedPanel == PanelActivity)
	chapters := m.chapters.Render(m.state, rightWidth-2, mainHeight-2, m.focusedPanel == PanelChapters)

	leftCol := lipgloss.JoinVertical(lipgloss.Left, nowPlaying, activity)
	main := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, chapters)

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	var status string
	switch {
	case m.lastError != nil:
		status = styles.ErrorText.Render("Error: " + m.lastError.Error())
	case m.showGoto:
		status = styles.Highlight.Render("Go to ") + m.gotoInput.View() + styles.Dim.Render("  enter:seek  esc:close")
	case m.flash != "":
		status = styles.Muted.Render(m.flash)
	default:
		status = m.help.ShortHelpView(m.keys.ShortHelp())
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func (m Model) renderHelp() string {
	h := m.help
	h.ShowAll = true
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("quire - Keyboard Shortcuts"),
		"",
		h.View(m.keys),
		"",
		styles.Dim.Render("Press ? or Esc to close"),
	)

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Padding(1, 2).Render(content))
}

func formatRate(rate float64) string {
	return "Speed " + trimFloat(rate) + "x"
}

// Run starts the dashboard and blocks until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	styles.ApplyTheme(opts.Theme)

	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
