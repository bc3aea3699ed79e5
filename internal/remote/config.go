package remote

import (
	"errors"
	"fmt"
	"slices"

	qerr "github.com/tessro/quire/internal/errors"
)

// TrackNavigation decides what next/previous track buttons do.
type TrackNavigation string

const (
	// NavigationChapter maps next/previous track to chapter navigation.
	NavigationChapter TrackNavigation = "chapter"
	// NavigationSkip maps next/previous track to a fixed-size skip.
	NavigationSkip TrackNavigation = "skip"
)

// Valid reports whether n is a known mode.
func (n TrackNavigation) Valid() bool {
	return n == NavigationChapter || n == NavigationSkip
}

// speedTolerance absorbs float drift in stored playback rates.
const speedTolerance = 0.01

// DefaultSpeeds is the cycle used by CycleSpeed.
var DefaultSpeeds = []float64{0.5, 0.75, 1.0, 1.25, 1.5, 1.75, 2.0, 2.5, 3.0}

// Config shapes how commands map onto playback actions.
type Config struct {
	SkipForwardSeconds  float64         `json:"skip_forward_seconds"`
	SkipBackwardSeconds float64         `json:"skip_backward_seconds"`
	TrackNavigation     TrackNavigation `json:"track_navigation"`
	AvailableSpeeds     []float64       `json:"available_speeds"`
}

// DefaultConfig returns 30s skips, chapter navigation and DefaultSpeeds.
func DefaultConfig() Config {
	return Config{
		SkipForwardSeconds:  30,
		SkipBackwardSeconds: 30,
		TrackNavigation:     NavigationChapter,
		AvailableSpeeds:     slices.Clone(DefaultSpeeds),
	}
}

// Validate checks that every field holds a usable value.
func (c Config) Validate() error {
	var errs []error
	if c.SkipForwardSeconds <= 0 {
		errs = append(errs, fmt.Errorf("skip_forward_seconds must be positive, got %v", c.SkipForwardSeconds))
	}
	if c.SkipBackwardSeconds <= 0 {
		errs = append(errs, fmt.Errorf("skip_backward_seconds must be positive, got %v", c.SkipBackwardSeconds))
	}
	if !c.TrackNavigation.Valid() {
		errs = append(errs, fmt.Errorf("track_navigation must be %q or %q, got %q", NavigationChapter, NavigationSkip, c.TrackNavigation))
	}
	if len(c.AvailableSpeeds) == 0 {
		errs = append(errs, errors.New("available_speeds must not be empty"))
	}
	for _, s := range c.AvailableSpeeds {
		if s <= 0 {
			errs = append(errs, fmt.Errorf("available_speeds must be positive, got %v", s))
			break
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", qerr.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ConfigUpdate is a partial Config. Nil fields are left unchanged.
type ConfigUpdate struct {
	SkipForwardSeconds  *float64         `json:"skip_forward_seconds,omitempty"`
	SkipBackwardSeconds *float64         `json:"skip_backward_seconds,omitempty"`
	TrackNavigation     *TrackNavigation `json:"track_navigation,omitempty"`
	AvailableSpeeds     []float64        `json:"available_speeds,omitempty"`
}

func (c Config) apply(u ConfigUpdate) Config {
	if u.SkipForwardSeconds != nil {
		c.SkipForwardSeconds = *u.SkipForwardSeconds
	}
	if u.SkipBackwardSeconds != nil {
		c.SkipBackwardSeconds = *u.SkipBackwardSeconds
	}
	if u.TrackNavigation != nil {
		c.TrackNavigation = *u.TrackNavigation
	}
	if u.AvailableSpeeds != nil {
		c.AvailableSpeeds = slices.Clone(u.AvailableSpeeds)
	}
	return c
}

// NextSpeed returns the speed after current in speeds, wrapping to the
// first after the last. current is matched to the nearest listed speed
// within a small tolerance; an unlisted speed cycles to the first entry.
func NextSpeed(speeds []float64, current float64) float64 {
	if len(speeds) == 0 {
		return current
	}
	idx := -1
	best := speedTolerance
	for i, s := range speeds {
		d := s - current
		if d < 0 {
			d = -d
		}
		if d <= best {
			idx, best = i, d
		}
	}
	return speeds[(idx+1)%len(speeds)]
}
