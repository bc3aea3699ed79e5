package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Playback: PlaybackConfig{
			Speed:      1.0,
			Output:     "speaker",
			SampleRate: 44100,
			BufferMs:   100,
		},
		Rewind: RewindConfig{
			MaxSeconds: 30,
		},
		Seek: SeekConfig{
			PrevChapterThresholdMs: 3000,
			NearEndThreshold:       0.5,
			ScrubTickMs:            200,
			ScrubSteps: []ScrubStep{
				{AfterMs: 0, Rate: 10},
				{AfterMs: 2000, Rate: 25},
				{AfterMs: 4000, Rate: 50},
			},
		},
		Remote: RemoteConfig{
			SkipForwardSeconds:  30,
			SkipBackwardSeconds: 30,
			TrackNavigation:     "chapter",
			Speeds:              []float64{0.5, 0.75, 1.0, 1.25, 1.5, 1.75, 2.0, 2.5, 3.0},
		},
		Preload: PreloadConfig{
			Capacity:        2,
			TTLSeconds:      300,
			JanitorInterval: 60,
		},
		Tail: TailConfig{
			Interval: 500,
		},
		TUI: TUIConfig{
			Theme:           "auto",
			RefreshInterval: 250,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Playback
	if c.Playback.Speed == 0 {
		c.Playback.Speed = d.Playback.Speed
	}
	if c.Playback.Output == "" {
		c.Playback.Output = d.Playback.Output
	}
	if c.Playback.SampleRate == 0 {
		c.Playback.SampleRate = d.Playback.SampleRate
	}
	if c.Playback.BufferMs == 0 {
		c.Playback.BufferMs = d.Playback.BufferMs
	}

	// Rewind
	if c.Rewind.MaxSeconds == 0 {
		c.Rewind.MaxSeconds = d.Rewind.MaxSeconds
	}

	// Seek
	if c.Seek.PrevChapterThresholdMs == 0 {
		c.Seek.PrevChapterThresholdMs = d.Seek.PrevChapterThresholdMs
	}
	if c.Seek.NearEndThreshold == 0 {
		c.Seek.NearEndThreshold = d.Seek.NearEndThreshold
	}
	if c.Seek.ScrubTickMs == 0 {
		c.Seek.ScrubTickMs = d.Seek.ScrubTickMs
	}
	if len(c.Seek.ScrubSteps) == 0 {
		c.Seek.ScrubSteps = d.Seek.ScrubSteps
	}

	// Remote
	if c.Remote.SkipForwardSeconds == 0 {
		c.Remote.SkipForwardSeconds = d.Remote.SkipForwardSeconds
	}
	if c.Remote.SkipBackwardSeconds == 0 {
		c.Remote.SkipBackwardSeconds = d.Remote.SkipBackwardSeconds
	}
	if c.Remote.TrackNavigation == "" {
		c.Remote.TrackNavigation = d.Remote.TrackNavigation
	}
	if len(c.Remote.Speeds) == 0 {
		c.Remote.Speeds = d.Remote.Speeds
	}

	// Preload
	if c.Preload.Capacity == 0 {
		c.Preload.Capacity = d.Preload.Capacity
	}
	if c.Preload.TTLSeconds == 0 {
		c.Preload.TTLSeconds = d.Preload.TTLSeconds
	}
	if c.Preload.JanitorInterval == 0 {
		c.Preload.JanitorInterval = d.Preload.JanitorInterval
	}

	// Tail
	if c.Tail.Interval == 0 {
		c.Tail.Interval = d.Tail.Interval
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}
	if c.TUI.RefreshInterval == 0 {
		c.TUI.RefreshInterval = d.TUI.RefreshInterval
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}
