package seek

import (
	"math"
	"time"
)

// State is the orchestrator's position in its seek state machine.
type State int

const (
	StateIdle State = iota
	StateSeeking
	StateChapterTransition
	StateConfirming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeking:
		return "seeking"
	case StateChapterTransition:
		return "chapter_transition"
	case StateConfirming:
		return "confirming"
	default:
		return "unknown"
	}
}

// Operation identifies what holds the seek lock.
type Operation int

const (
	OpNone Operation = iota
	OpSeek
	OpChapterChange
	OpContinuous
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpSeek:
		return "seek"
	case OpChapterChange:
		return "chapter-change"
	case OpContinuous:
		return "continuous"
	default:
		return "unknown"
	}
}

// Direction is the sense of a seek on the timeline.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionForward
	DirectionBackward
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	default:
		return "none"
	}
}

// Sign is +1 forward, -1 backward, 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionForward:
		return 1
	case DirectionBackward:
		return -1
	default:
		return 0
	}
}

func directionOf(from, to float64) Direction {
	switch {
	case to > from:
		return DirectionForward
	case to < from:
		return DirectionBackward
	default:
		return DirectionNone
	}
}

// NoChapter marks a lock without a chapter target.
const NoChapter = -1

// Lock is the single seek lock of a playback session. It carries enough
// for observers to draw progress without asking the player.
type Lock struct {
	Locked         bool
	Operation      Operation
	StartedAt      time.Time
	TargetPosition float64
	TargetChapter  int
	Direction      Direction
}

func unlocked() Lock {
	return Lock{TargetChapter: NoChapter}
}

// Snapshot is the read-only view handed to observers.
type Snapshot struct {
	State             State
	Lock              Lock
	IsSeeking         bool
	IsChangingChapter bool
	Direction         Direction
	Magnitude         float64
	Position          float64
	Delta             float64
}

// ScrubStep sets the scrub rate, in seconds of audio per second held, once
// the button has been held for After.
type ScrubStep struct {
	After time.Duration
	Rate  float64
}

// ScrubConfig shapes continuous seeking.
type ScrubConfig struct {
	TickInterval time.Duration
	Steps        []ScrubStep
}

// DefaultScrub advances 2s per 200ms tick, 5s after two seconds held and
// 10s after four.
func DefaultScrub() ScrubConfig {
	return ScrubConfig{
		TickInterval: 200 * time.Millisecond,
		Steps: []ScrubStep{
			{After: 0, Rate: 10},
			{After: 2 * time.Second, Rate: 25},
			{After: 4 * time.Second, Rate: 50},
		},
	}
}

// RateAt returns the scrub rate after holding for held. Steps are assumed
// sorted by After.
func (c ScrubConfig) RateAt(held time.Duration) float64 {
	rate := 0.0
	for _, s := range c.Steps {
		if held >= s.After {
			rate = s.Rate
		}
	}
	return rate
}

// StepAt is the distance covered by one tick after holding for held.
func (c ScrubConfig) StepAt(held time.Duration) float64 {
	return c.RateAt(held) * c.TickInterval.Seconds()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
