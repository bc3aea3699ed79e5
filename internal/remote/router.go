// Package remote turns commands from external controllers (media keys,
// headset buttons, D-Bus clients, HTTP) into playback actions. A failing
// or missing handler is logged and never reaches the controller.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	qerr "github.com/tessro/quire/internal/errors"
)

// Command is one word of the remote-control vocabulary.
type Command string

const (
	CommandPlay          Command = "play"
	CommandPause         Command = "pause"
	CommandToggle        Command = "toggle"
	CommandStop          Command = "stop"
	CommandSkipForward   Command = "skip_forward"
	CommandSkipBackward  Command = "skip_backward"
	CommandNextTrack     Command = "next_track"
	CommandPreviousTrack Command = "previous_track"
	CommandSeekTo        Command = "seek_to"
	CommandSetSpeed      Command = "set_speed"
)

// Commands lists the whole vocabulary.
var Commands = []Command{
	CommandPlay, CommandPause, CommandToggle, CommandStop,
	CommandSkipForward, CommandSkipBackward, CommandNextTrack, CommandPreviousTrack,
	CommandSeekTo, CommandSetSpeed,
}

// Handler performs a command. data carries the command's argument, if any.
type Handler func(ctx context.Context, data any) error

// Target is the playback owner the default handlers act on.
type Target interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	IsPlaying() bool
	SeekRelative(ctx context.Context, delta float64) error
	SeekAbsolute(ctx context.Context, position float64) error
	NextChapter(ctx context.Context) error
	PrevChapter(ctx context.Context) error
	SetSpeed(ctx context.Context, rate float64) error
	Speed() float64
}

// Metrics counts dispatched commands by outcome.
type Metrics interface {
	RemoteCommand(command, outcome string)
}

// Router maps commands to handlers.
type Router struct {
	mu       sync.RWMutex
	handlers map[Command]Handler
	cfg      Config
	target   Target
	logger   *slog.Logger
	metrics  Metrics
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics counts dispatched commands.
func WithMetrics(m Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// New creates a router. When target is non-nil every command in the
// vocabulary gets a default handler bound to it. An invalid cfg is
// replaced by DefaultConfig.
func New(target Target, cfg Config, opts ...Option) *Router {
	r := &Router{
		handlers: make(map[Command]Handler),
		target:   target,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := cfg.Validate(); err != nil {
		r.logger.Warn("invalid remote config, using defaults", "error", err)
		cfg = DefaultConfig()
	}
	r.cfg = cfg
	r.cfg.AvailableSpeeds = slices.Clone(cfg.AvailableSpeeds)

	if target != nil {
		r.registerDefaults()
	}
	return r
}

// RegisterHandler binds h to cmd, replacing any existing handler. A nil
// handler unregisters cmd.
func (r *Router) RegisterHandler(cmd Command, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.handlers, cmd)
		return
	}
	r.handlers[cmd] = h
}

// Handle dispatches cmd and absorbs every failure. It is the entry point
// for external controllers.
func (r *Router) Handle(ctx context.Context, cmd Command, data any) {
	if err := r.Dispatch(ctx, cmd, data); err != nil {
		if errors.Is(err, qerr.ErrUnregisteredCommand) {
			r.logger.Debug("no handler for remote command", "command", cmd)
			return
		}
		r.logger.Warn("remote command failed", "command", cmd, "error", err)
	}
}

// Dispatch runs the handler for cmd and reports what happened. A missing
// handler yields ErrUnregisteredCommand; a handler error or panic yields
// ErrHandlerFailure.
func (r *Router) Dispatch(ctx context.Context, cmd Command, data any) (err error) {
	r.mu.RLock()
	h, ok := r.handlers[cmd]
	r.mu.RUnlock()

	if !ok {
		r.record(cmd, "unregistered")
		return fmt.Errorf("%s: %w", cmd, qerr.ErrUnregisteredCommand)
	}

	defer func() {
		if p := recover(); p != nil {
			r.record(cmd, "panic")
			err = fmt.Errorf("%s: %w: panic: %v", cmd, qerr.ErrHandlerFailure, p)
		}
	}()

	if herr := h(ctx, data); herr != nil {
		r.record(cmd, "failed")
		return fmt.Errorf("%s: %w: %w", cmd, qerr.ErrHandlerFailure, herr)
	}
	r.record(cmd, "ok")
	return nil
}

// UpdateConfig merges u into the current config. The update is rejected
// as a whole if the result is invalid.
func (r *Router) UpdateConfig(u ConfigUpdate) (Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.cfg.apply(u)
	if err := next.Validate(); err != nil {
		return r.copyConfigLocked(), err
	}
	r.cfg = next
	r.logger.Debug("remote config updated",
		"skip_forward", next.SkipForwardSeconds,
		"skip_backward", next.SkipBackwardSeconds,
		"track_navigation", next.TrackNavigation)
	return r.copyConfigLocked(), nil
}

// Config returns a copy of the current config.
func (r *Router) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyConfigLocked()
}

func (r *Router) copyConfigLocked() Config {
	c := r.cfg
	c.AvailableSpeeds = slices.Clone(r.cfg.AvailableSpeeds)
	return c
}

// CycleSpeed moves the target to the next configured speed and returns it.
func (r *Router) CycleSpeed(ctx context.Context) (float64, error) {
	if r.target == nil {
		return 0, fmt.Errorf("cycle speed: %w", qerr.ErrNoBookLoaded)
	}
	next := NextSpeed(r.Config().AvailableSpeeds, r.target.Speed())
	if err := r.target.SetSpeed(ctx, next); err != nil {
		return r.target.Speed(), err
	}
	return next, nil
}

func (r *Router) registerDefaults() {
	t := r.target

	pause := func(ctx context.Context, _ any) error { return t.Pause(ctx) }
	skipForward := func(ctx context.Context, data any) error {
		secs := r.Config().SkipForwardSeconds
		if v, ok := Seconds(data); ok && v != 0 {
			secs = abs(v)
		}
		return t.SeekRelative(ctx, secs)
	}
	skipBackward := func(ctx context.Context, data any) error {
		secs := r.Config().SkipBackwardSeconds
		if v, ok := Seconds(data); ok && v != 0 {
			secs = abs(v)
		}
		return t.SeekRelative(ctx, -secs)
	}

	r.handlers[CommandPlay] = func(ctx context.Context, _ any) error { return t.Play(ctx) }
	r.handlers[CommandPause] = pause
	r.handlers[CommandStop] = pause
	r.handlers[CommandToggle] = func(ctx context.Context, _ any) error {
		if t.IsPlaying() {
			return t.Pause(ctx)
		}
		return t.Play(ctx)
	}
	r.handlers[CommandSkipForward] = skipForward
	r.handlers[CommandSkipBackward] = skipBackward
	r.handlers[CommandNextTrack] = func(ctx context.Context, data any) error {
		if r.Config().TrackNavigation == NavigationSkip {
			return skipForward(ctx, nil)
		}
		return t.NextChapter(ctx)
	}
	r.handlers[CommandPreviousTrack] = func(ctx context.Context, data any) error {
		if r.Config().TrackNavigation == NavigationSkip {
			return skipBackward(ctx, nil)
		}
		return t.PrevChapter(ctx)
	}
	r.handlers[CommandSeekTo] = func(ctx context.Context, data any) error {
		pos, ok := Seconds(data)
		if !ok {
			return fmt.Errorf("seek_to needs a position, got %v", data)
		}
		return t.SeekAbsolute(ctx, pos)
	}
	r.handlers[CommandSetSpeed] = func(ctx context.Context, data any) error {
		rate, ok := Seconds(data)
		if !ok || rate <= 0 {
			return fmt.Errorf("set_speed needs a positive rate, got %v", data)
		}
		return t.SetSpeed(ctx, rate)
	}
}

func (r *Router) record(cmd Command, outcome string) {
	if r.metrics != nil {
		r.metrics.RemoteCommand(string(cmd), outcome)
	}
}

// Seconds reads a numeric command argument. Durations convert to seconds
// and strings are parsed as floats.
func Seconds(data any) (float64, bool) {
	switch v := data.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case time.Duration:
		return v.Seconds(), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
