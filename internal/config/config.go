package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	qerr "github.com/tessro/quire/internal/errors"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.quirerc, $XDG_CONFIG_HOME/quire/config.toml, ~/.config/quire/config.toml
func Load() (*Config, error) {
	cfg := &Config{}

	// Try loading from file
	path := FindConfigFile()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", path, qerr.ErrInvalidConfig, err)
		}
	}

	return finish(cfg)
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, qerr.ErrConfigNotFound)
		}
		return nil, fmt.Errorf("%s: %w: %w", path, qerr.ErrInvalidConfig, err)
	}
	return finish(cfg)
}

// finish applies defaults, then .env and environment variable overrides.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadDotEnv loads environment variables from the given files, or .env in
// the working directory. Variables already set in the environment win.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// DefaultPath is where `quire config init` writes.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "quire", "config.toml")
}

// FindConfigFile returns the first existing config file path.
func FindConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".quirerc"),
		DefaultPath(),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// Write encodes cfg as TOML to path, creating parent directories.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Playback
	if v, ok := envFloat("QUIRE_PLAYBACK_SPEED"); ok {
		cfg.Playback.Speed = v
	}
	if v := os.Getenv("QUIRE_PLAYBACK_OUTPUT"); v != "" {
		cfg.Playback.Output = v
	}

	// Rewind
	if v, ok := envInt("QUIRE_REWIND_MAX_SECONDS"); ok {
		cfg.Rewind.MaxSeconds = v
	}
	if v := os.Getenv("QUIRE_REWIND_DISABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Rewind.Disabled = b
		}
	}

	// Remote
	if v, ok := envFloat("QUIRE_REMOTE_SKIP_FORWARD_SECONDS"); ok {
		cfg.Remote.SkipForwardSeconds = v
	}
	if v, ok := envFloat("QUIRE_REMOTE_SKIP_BACKWARD_SECONDS"); ok {
		cfg.Remote.SkipBackwardSeconds = v
	}
	if v := os.Getenv("QUIRE_REMOTE_TRACK_NAVIGATION"); v != "" {
		cfg.Remote.TrackNavigation = v
	}
	if v := os.Getenv("QUIRE_REMOTE_SPEEDS"); v != "" {
		if speeds, ok := parseFloats(v); ok {
			cfg.Remote.Speeds = speeds
		}
	}
	if v := os.Getenv("QUIRE_REMOTE_HTTP_ADDR"); v != "" {
		cfg.Remote.HTTPAddr = v
	}

	// Preload
	if v, ok := envInt("QUIRE_PRELOAD_CAPACITY"); ok {
		cfg.Preload.Capacity = v
	}
	if v, ok := envInt("QUIRE_PRELOAD_TTL_SECONDS"); ok {
		cfg.Preload.TTLSeconds = v
	}

	// TUI
	if v := os.Getenv("QUIRE_TUI_THEME"); v != "" {
		cfg.TUI.Theme = v
	}

	// Log
	if v := os.Getenv("QUIRE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("QUIRE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("QUIRE_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	// Metrics
	if v := os.Getenv("QUIRE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	return i, err == nil
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

// parseFloats parses a comma-separated list such as "1,1.5,2".
func parseFloats(s string) ([]float64, bool) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}
