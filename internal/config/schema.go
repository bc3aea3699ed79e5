package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Playback PlaybackConfig `toml:"playback"`
	Rewind   RewindConfig   `toml:"rewind"`
	Seek     SeekConfig     `toml:"seek"`
	Remote   RemoteConfig   `toml:"remote"`
	Preload  PreloadConfig  `toml:"preload"`
	Tail     TailConfig     `toml:"tail"`
	TUI      TUIConfig      `toml:"tui"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// PlaybackConfig holds audio output settings.
type PlaybackConfig struct {
	Speed      float64 `toml:"speed"`
	Output     string  `toml:"output"`
	SampleRate int     `toml:"sample_rate"`
	BufferMs   int     `toml:"buffer_ms"`
}

// RewindConfig holds smart rewind settings.
type RewindConfig struct {
	Disabled   bool `toml:"disabled"`
	MaxSeconds int  `toml:"max_seconds"`
}

// SeekConfig holds seek and scrub settings.
type SeekConfig struct {
	PrevChapterThresholdMs int         `toml:"prev_chapter_threshold_ms"`
	NearEndThreshold       float64     `toml:"near_end_threshold"`
	ScrubTickMs            int         `toml:"scrub_tick_ms"`
	ScrubSteps             []ScrubStep `toml:"scrub_steps"`
}

// ScrubStep sets the scrub rate once the button has been held for AfterMs.
type ScrubStep struct {
	AfterMs int     `toml:"after_ms"`
	Rate    float64 `toml:"rate"`
}

// RemoteConfig holds remote control settings.
type RemoteConfig struct {
	SkipForwardSeconds  float64   `toml:"skip_forward_seconds"`
	SkipBackwardSeconds float64   `toml:"skip_backward_seconds"`
	TrackNavigation     string    `toml:"track_navigation"`
	Speeds              []float64 `toml:"speeds"`
	HTTPAddr            string    `toml:"http_addr"`
	MPRIS               bool      `toml:"mpris"`
}

// PreloadConfig holds preload cache settings.
type PreloadConfig struct {
	Capacity        int `toml:"capacity"`
	TTLSeconds      int `toml:"ttl_seconds"`
	JanitorInterval int `toml:"janitor_interval"`
}

// TailConfig holds settings for the event tail.
type TailConfig struct {
	Interval int `toml:"interval"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme           string `toml:"theme"`
	RefreshInterval int    `toml:"refresh_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// MetricsConfig holds Prometheus settings. An empty Addr disables the
// endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// PrevChapterThreshold returns the threshold as a duration.
func (c SeekConfig) PrevChapterThreshold() time.Duration {
	return time.Duration(c.PrevChapterThresholdMs) * time.Millisecond
}

// ScrubTick returns the scrub tick interval.
func (c SeekConfig) ScrubTick() time.Duration {
	return time.Duration(c.ScrubTickMs) * time.Millisecond
}

// TTL returns how long a preloaded session stays valid.
func (c PreloadConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// JanitorEvery returns the expiry sweep interval.
func (c PreloadConfig) JanitorEvery() time.Duration {
	return time.Duration(c.JanitorInterval) * time.Second
}
