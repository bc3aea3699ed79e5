package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	qerr "github.com/tessro/quire/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFromAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "config.toml", `
[rewind]
max_seconds = 60

[remote]
track_navigation = "skip"
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Rewind.MaxSeconds != 60 {
		t.Errorf("Rewind.MaxSeconds = %d, want 60", cfg.Rewind.MaxSeconds)
	}
	if cfg.Remote.TrackNavigation != "skip" {
		t.Errorf("Remote.TrackNavigation = %q, want skip", cfg.Remote.TrackNavigation)
	}
	if cfg.Remote.SkipForwardSeconds != 30 {
		t.Errorf("Remote.SkipForwardSeconds = %v, want 30", cfg.Remote.SkipForwardSeconds)
	}
	if cfg.Preload.TTL() != 5*time.Minute {
		t.Errorf("Preload.TTL() = %v, want 5m", cfg.Preload.TTL())
	}
	if cfg.Seek.PrevChapterThreshold() != 3*time.Second {
		t.Errorf("Seek.PrevChapterThreshold() = %v, want 3s", cfg.Seek.PrevChapterThreshold())
	}
	if len(cfg.Seek.ScrubSteps) != 3 {
		t.Errorf("Seek.ScrubSteps = %v, want 3 defaults", cfg.Seek.ScrubSteps)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, qerr.ErrConfigNotFound) {
		t.Errorf("LoadFrom() error = %v, want ErrConfigNotFound", err)
	}
}

func TestLoadFromInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", "[rewind\nmax_seconds = ")

	_, err := LoadFrom(path)
	if !errors.Is(err, qerr.ErrInvalidConfig) {
		t.Errorf("LoadFrom() error = %v, want ErrInvalidConfig", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "config.toml", "")

	t.Setenv("QUIRE_REWIND_MAX_SECONDS", "45")
	t.Setenv("QUIRE_REMOTE_SPEEDS", "1, 1.5, 2")
	t.Setenv("QUIRE_LOG_LEVEL", "debug")
	t.Setenv("QUIRE_PLAYBACK_SPEED", "not-a-number")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Rewind.MaxSeconds != 45 {
		t.Errorf("Rewind.MaxSeconds = %d, want 45", cfg.Rewind.MaxSeconds)
	}
	if want := []float64{1, 1.5, 2}; len(cfg.Remote.Speeds) != 3 || cfg.Remote.Speeds[1] != want[1] {
		t.Errorf("Remote.Speeds = %v, want %v", cfg.Remote.Speeds, want)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Playback.Speed != 1.0 {
		t.Errorf("Playback.Speed = %v, want default 1.0", cfg.Playback.Speed)
	}
}

func TestDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "QUIRE_METRICS_ADDR=127.0.0.1:9100\n")
	path := writeFile(t, dir, "config.toml", "")
	t.Setenv("QUIRE_METRICS_ADDR", "")
	os.Unsetenv("QUIRE_METRICS_ADDR")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9100" {
		t.Errorf("Metrics.Addr = %q, want 127.0.0.1:9100", cfg.Metrics.Addr)
	}
}

func TestLoadDotEnvMissingIsIgnored(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("LoadDotEnv() error = %v", err)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := Write(path, Default()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Seek.ScrubSteps[2].Rate != 50 {
		t.Errorf("ScrubSteps[2].Rate = %v, want 50", cfg.Seek.ScrubSteps[2].Rate)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad output", func(c *Config) { c.Playback.Output = "hdmi" }, true},
		{"negative rewind", func(c *Config) { c.Rewind.MaxSeconds = -1 }, true},
		{"unordered scrub", func(c *Config) {
			c.Seek.ScrubSteps = []ScrubStep{{AfterMs: 100, Rate: 1}, {AfterMs: 100, Rate: 2}}
		}, true},
		{"zero scrub rate", func(c *Config) { c.Seek.ScrubSteps = []ScrubStep{{AfterMs: 0, Rate: 0}} }, true},
		{"bad navigation", func(c *Config) { c.Remote.TrackNavigation = "shuffle" }, true},
		{"bad speed", func(c *Config) { c.Remote.Speeds = []float64{1, 0} }, true},
		{"bad http addr", func(c *Config) { c.Remote.HTTPAddr = "localhost" }, true},
		{"good http addr", func(c *Config) { c.Remote.HTTPAddr = "127.0.0.1:8080" }, false},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"bad theme", func(c *Config) { c.TUI.Theme = "neon" }, true},
		{"bad metrics addr", func(c *Config) { c.Metrics.Addr = "9090" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, qerr.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
