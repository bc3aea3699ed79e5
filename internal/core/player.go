package core

import "context"

// Player is the audio playback primitive the engine drives. Positions are
// seconds on the book's global timeline.
type Player interface {
	// Playback control
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, position float64) error
	SetPlaybackRate(ctx context.Context, rate float64) error

	// State queries
	Position() float64
	Duration() float64
	PlaybackRate() float64
	IsPlaying() bool
}
