package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/tessro/quire/internal/core"
)

const (
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisRoot        = "org.mpris.MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	mprisBusName     = "org.mpris.MediaPlayer2.quire"

	microseconds = 1e6
)

// MPRIS exposes the router on the D-Bus session bus as an
// org.mpris.MediaPlayer2.Player, so desktop media keys and applets can
// drive playback.
type MPRIS struct {
	conn   *dbus.Conn
	props  *prop.Properties
	router *Router
	logger *slog.Logger
}

// newMPRIS builds the method receiver without touching the bus.
func newMPRIS(router *Router, logger *slog.Logger) *MPRIS {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MPRIS{router: router, logger: logger}
}

// RegisterMPRIS connects to the session bus and claims the quire MPRIS
// name.
func RegisterMPRIS(router *Router, logger *slog.Logger) (*MPRIS, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	m := newMPRIS(router, logger)
	m.conn = conn
	if err := m.export(); err != nil {
		conn.Close()
		return nil, err
	}
	return m, nil
}

func (m *MPRIS) export() error {
	if err := m.conn.ExportAll(m, mprisPath, mprisPlayerIface); err != nil {
		return fmt.Errorf("export player: %w", err)
	}

	player := map[string]*prop.Prop{
		"CanControl":     {Value: true, Writable: false, Emit: prop.EmitFalse},
		"CanGoNext":      {Value: true, Writable: false, Emit: prop.EmitFalse},
		"CanGoPrevious":  {Value: true, Writable: false, Emit: prop.EmitFalse},
		"CanPause":       {Value: true, Writable: false, Emit: prop.EmitFalse},
		"CanPlay":        {Value: true, Writable: false, Emit: prop.EmitFalse},
		"CanSeek":        {Value: true, Writable: false, Emit: prop.EmitFalse},
		"PlaybackStatus": {Value: "Stopped", Writable: false, Emit: prop.EmitTrue},
		"Rate":           {Value: 1.0, Writable: true, Emit: prop.EmitTrue, Callback: m.rateChange},
		"MinimumRate":    {Value: minSpeed(m.router.Config().AvailableSpeeds), Writable: false, Emit: prop.EmitFalse},
		"MaximumRate":    {Value: maxSpeed(m.router.Config().AvailableSpeeds), Writable: false, Emit: prop.EmitFalse},
		"Position":       {Value: int64(0), Writable: false, Emit: prop.EmitFalse},
		"Metadata":       {Value: metadata(nil), Writable: false, Emit: prop.EmitTrue},
	}
	root := map[string]*prop.Prop{
		"CanQuit":             {Value: false, Writable: false, Emit: prop.EmitFalse},
		"CanRaise":            {Value: false, Writable: false, Emit: prop.EmitFalse},
		"HasTrackList":        {Value: false, Writable: false, Emit: prop.EmitFalse},
		"Identity":            {Value: "quire", Writable: false, Emit: prop.EmitFalse},
		"SupportedUriSchemes": {Value: []string{"file"}, Writable: false, Emit: prop.EmitFalse},
		"SupportedMimeTypes":  {Value: []string{"audio/mpeg", "audio/wav"}, Writable: false, Emit: prop.EmitFalse},
	}

	props, err := prop.Export(m.conn, mprisPath, map[string]map[string]*prop.Prop{
		mprisRoot:        root,
		mprisPlayerIface: player,
	})
	if err != nil {
		return fmt.Errorf("export properties: %w", err)
	}
	m.props = props

	node := &introspect.Node{
		Name: mprisPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       mprisPlayerIface,
				Methods:    introspect.Methods(m),
				Properties: props.Introspection(mprisPlayerIface),
			},
		},
	}
	if err := m.conn.Export(introspect.NewIntrospectable(node), mprisPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}

	reply, err := m.conn.RequestName(mprisBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("mpris name already owned")
	}
	return nil
}

// Close releases the bus connection.
func (m *MPRIS) Close() {
	if m.conn == nil {
		return
	}
	if err := m.conn.Close(); err != nil {
		m.logger.Warn("closing mpris connection", "error", err)
	}
}

func (m *MPRIS) handle(cmd Command, data any) *dbus.Error {
	m.router.Handle(context.Background(), cmd, data)
	return nil
}

// Play resumes playback.
func (m *MPRIS) Play() *dbus.Error { return m.handle(CommandPlay, nil) }

// Pause pauses playback.
func (m *MPRIS) Pause() *dbus.Error { return m.handle(CommandPause, nil) }

// PlayPause toggles playback.
func (m *MPRIS) PlayPause() *dbus.Error { return m.handle(CommandToggle, nil) }

// Stop is a pause.
func (m *MPRIS) Stop() *dbus.Error { return m.handle(CommandStop, nil) }

// Next goes to the next chapter or skips forward, depending on config.
func (m *MPRIS) Next() *dbus.Error { return m.handle(CommandNextTrack, nil) }

// Previous goes to the previous chapter or skips back.
func (m *MPRIS) Previous() *dbus.Error { return m.handle(CommandPreviousTrack, nil) }

// Seek moves by offset microseconds.
func (m *MPRIS) Seek(offset int64) *dbus.Error {
	switch {
	case offset > 0:
		return m.handle(CommandSkipForward, float64(offset)/microseconds)
	case offset < 0:
		return m.handle(CommandSkipBackward, float64(-offset)/microseconds)
	default:
		return nil
	}
}

// SetPosition moves to pos microseconds. The track id is ignored since the
// whole book is one MPRIS track.
func (m *MPRIS) SetPosition(_ dbus.ObjectPath, pos int64) *dbus.Error {
	if pos < 0 {
		return nil
	}
	return m.handle(CommandSeekTo, float64(pos)/microseconds)
}

// OpenUri is not supported.
func (m *MPRIS) OpenUri(string) *dbus.Error {
	return dbus.MakeFailedError(errors.New("opening uris is not supported"))
}

func (m *MPRIS) rateChange(c *prop.Change) *dbus.Error {
	rate, ok := c.Value.(float64)
	if !ok {
		return dbus.MakeFailedError(fmt.Errorf("rate must be a double, got %T", c.Value))
	}
	return m.handle(CommandSetSpeed, rate)
}

// Update publishes the playback state to MPRIS clients.
func (m *MPRIS) Update(state core.PlaybackState) {
	if m.props == nil {
		return
	}
	status := "Stopped"
	switch {
	case state.HasBook() && state.IsPlaying:
		status = "Playing"
	case state.HasBook():
		status = "Paused"
	}
	m.set("PlaybackStatus", status)
	m.set("Metadata", metadata(state.Book))
	if state.Rate > 0 {
		m.set("Rate", state.Rate)
	}
	m.set("Position", int64(state.Position*microseconds))
}

func (m *MPRIS) set(name string, value any) {
	m.props.SetMust(mprisPlayerIface, name, value)
}

func metadata(book *core.Book) map[string]dbus.Variant {
	md := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")),
	}
	if book == nil {
		return md
	}
	md["mpris:trackid"] = dbus.MakeVariant(dbus.ObjectPath("/org/quire/book/" + sanitizeID(book.ID)))
	md["mpris:length"] = dbus.MakeVariant(int64(book.Duration() * microseconds))
	md["xesam:title"] = dbus.MakeVariant(book.Title)
	if book.Author != "" {
		md["xesam:artist"] = dbus.MakeVariant([]string{book.Author})
	}
	return md
}

// sanitizeID keeps only characters valid in a D-Bus object path element.
func sanitizeID(id string) string {
	out := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			out = append(out, c)
		} else {
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}

func minSpeed(speeds []float64) float64 {
	lo := 1.0
	for _, s := range speeds {
		lo = min(lo, s)
	}
	return lo
}

func maxSpeed(speeds []float64) float64 {
	hi := 1.0
	for _, s := range speeds {
		hi = max(hi, s)
	}
	return hi
}
