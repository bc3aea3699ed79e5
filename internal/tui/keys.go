package tui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Toggle       key.Binding
	SkipBack     key.Binding
	SkipForward  key.Binding
	PrevTrack    key.Binding
	NextTrack    key.Binding
	PrevBook     key.Binding
	NextBook     key.Binding
	ScrubBack    key.Binding
	ScrubForward key.Binding
	Cancel       key.Binding
	Speed        key.Binding
	Goto         key.Binding
	Copy         key.Binding
	Up           key.Binding
	Down         key.Binding
	Select       key.Binding
	NextPanel    key.Binding
	PrevPanel    key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Toggle:       key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
		SkipBack:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "skip back")),
		SkipForward:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "skip ahead")),
		PrevTrack:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous")),
		NextTrack:    key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next")),
		PrevBook:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous book")),
		NextBook:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next book")),
		ScrubBack:    key.NewBinding(key.WithKeys("<", ","), key.WithHelp("<", "scrub back")),
		ScrubForward: key.NewBinding(key.WithKeys(">", "."), key.WithHelp(">", "scrub ahead")),
		Cancel:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel seek")),
		Speed:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "speed")),
		Goto:         key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "go to")),
		Copy:         key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy position")),
		Up:           key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:         key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Select:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "jump to chapter")),
		NextPanel:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next panel")),
		PrevPanel:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous panel")),
		Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:         key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.SkipBack, k.SkipForward, k.PrevTrack, k.NextTrack, k.Speed, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.SkipBack, k.SkipForward, k.PrevTrack, k.NextTrack, k.Speed},
		{k.ScrubBack, k.ScrubForward, k.Cancel, k.Goto, k.Copy, k.PrevBook, k.NextBook},
		{k.Up, k.Down, k.Select, k.NextPanel, k.PrevPanel, k.Help, k.Quit},
	}
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
