package config

import (
	"errors"
	"fmt"
	"net"

	qerr "github.com/tessro/quire/internal/errors"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Playback.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("playback: %w", err))
	}
	if err := c.Rewind.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("rewind: %w", err))
	}
	if err := c.Seek.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("seek: %w", err))
	}
	if err := c.Remote.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("remote: %w", err))
	}
	if err := c.Preload.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("preload: %w", err))
	}
	if err := c.Tail.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tail: %w", err))
	}
	if err := c.TUI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tui: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", qerr.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks PlaybackConfig for errors.
func (c *PlaybackConfig) Validate() error {
	if c.Speed < 0 {
		return errors.New("speed must be positive")
	}
	switch c.Output {
	case "", "speaker", "null":
		// valid
	default:
		return fmt.Errorf("invalid output: %s (must be speaker or null)", c.Output)
	}
	if c.SampleRate < 0 {
		return errors.New("sample_rate must be non-negative")
	}
	if c.BufferMs < 0 {
		return errors.New("buffer_ms must be non-negative")
	}
	return nil
}

// Validate checks RewindConfig for errors.
func (c *RewindConfig) Validate() error {
	if c.MaxSeconds < 0 {
		return errors.New("max_seconds must be non-negative")
	}
	return nil
}

// Validate checks SeekConfig for errors.
func (c *SeekConfig) Validate() error {
	if c.PrevChapterThresholdMs < 0 {
		return errors.New("prev_chapter_threshold_ms must be non-negative")
	}
	if c.NearEndThreshold < 0 {
		return errors.New("near_end_threshold must be non-negative")
	}
	if c.ScrubTickMs < 0 {
		return errors.New("scrub_tick_ms must be non-negative")
	}
	last := -1
	for i, s := range c.ScrubSteps {
		if s.AfterMs <= last {
			return fmt.Errorf("scrub_steps[%d]: after_ms must increase", i)
		}
		if s.Rate <= 0 {
			return fmt.Errorf("scrub_steps[%d]: rate must be positive", i)
		}
		last = s.AfterMs
	}
	return nil
}

// Validate checks RemoteConfig for errors.
func (c *RemoteConfig) Validate() error {
	if c.SkipForwardSeconds < 0 || c.SkipBackwardSeconds < 0 {
		return errors.New("skip intervals must be non-negative")
	}
	switch c.TrackNavigation {
	case "", "chapter", "skip":
		// valid
	default:
		return fmt.Errorf("invalid track_navigation: %s (must be chapter or skip)", c.TrackNavigation)
	}
	for _, s := range c.Speeds {
		if s <= 0 {
			return fmt.Errorf("invalid speed: %v (must be positive)", s)
		}
	}
	if c.HTTPAddr != "" {
		if _, _, err := net.SplitHostPort(c.HTTPAddr); err != nil {
			return fmt.Errorf("invalid http_addr: %w", err)
		}
	}
	return nil
}

// Validate checks PreloadConfig for errors.
func (c *PreloadConfig) Validate() error {
	if c.Capacity < 0 {
		return errors.New("capacity must be non-negative")
	}
	if c.TTLSeconds < 0 {
		return errors.New("ttl_seconds must be non-negative")
	}
	if c.JanitorInterval < 0 {
		return errors.New("janitor_interval must be non-negative")
	}
	return nil
}

// Validate checks TailConfig for errors.
func (c *TailConfig) Validate() error {
	if c.Interval < 0 {
		return errors.New("interval must be non-negative")
	}
	return nil
}

// Validate checks TUIConfig for errors.
func (c *TUIConfig) Validate() error {
	switch c.Theme {
	case "", "auto", "dark", "light":
		// valid
	default:
		return fmt.Errorf("invalid theme: %s (must be auto, dark, or light)", c.Theme)
	}
	if c.RefreshInterval < 0 {
		return errors.New("refresh_interval must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	switch c.Format {
	case "", "text", "json":
		// valid
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Format)
	}
	return nil
}

// Validate checks MetricsConfig for errors.
func (c *MetricsConfig) Validate() error {
	if c.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Addr); err != nil {
			return fmt.Errorf("invalid addr: %w", err)
		}
	}
	return nil
}
