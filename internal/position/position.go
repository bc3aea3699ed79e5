// Package position maps between the global book timeline and positions
// inside individual track files, and locates chapters on that timeline.
//
// Every function here is pure: given the same track or chapter slices it
// returns the same answer and never fails. Bad input degrades to a clamped
// or zero result.
package position

import (
	"fmt"
	"math"

	"github.com/tessro/quire/internal/core"
	qerr "github.com/tessro/quire/internal/errors"
)

// DefaultNearEndThreshold is how close to a track's end (in seconds) a
// position must be for IsNearEnd to report true.
const DefaultNearEndThreshold = 0.5

// contiguityTolerance absorbs rounding in stored track offsets.
const contiguityTolerance = 0.01

// Location is a position expressed relative to a single track.
type Location struct {
	Track  int
	Offset float64
}

// Locate maps a global position to the track containing it. Negative
// positions clamp to 0 and positions past the end clamp to the end of the
// last track. It returns false only when tracks is empty.
func Locate(tracks []core.Track, global float64) (Location, bool) {
	if len(tracks) == 0 {
		return Location{}, false
	}
	if global < 0 || math.IsNaN(global) {
		global = 0
	}

	for i, t := range tracks {
		if global < t.End() {
			offset := global - t.Start
			if offset < 0 {
				offset = 0
			}
			return Location{Track: i, Offset: offset}, true
		}
	}

	last := len(tracks) - 1
	return Location{Track: last, Offset: tracks[last].Duration}, true
}

// ToGlobal maps a track-relative position back onto the global timeline.
// An out-of-range track index yields 0.
func ToGlobal(tracks []core.Track, index int, offset float64) float64 {
	if index < 0 || index >= len(tracks) {
		return 0
	}
	return tracks[index].Start + offset
}

// IsNearEnd reports whether offset is within threshold seconds of the end
// of the track at index.
func IsNearEnd(tracks []core.Track, index int, offset, threshold float64) bool {
	if index < 0 || index >= len(tracks) {
		return false
	}
	return tracks[index].Duration-offset <= threshold
}

// NextTrack returns the index after current, if there is one.
func NextTrack(tracks []core.Track, current int) (int, bool) {
	if current < 0 || current+1 >= len(tracks) {
		return 0, false
	}
	return current + 1, true
}

// PreviousTrack returns the index before current, if there is one.
func PreviousTrack(tracks []core.Track, current int) (int, bool) {
	if current <= 0 || current > len(tracks) {
		return 0, false
	}
	return current - 1, true
}

// TotalDuration is the end of the last track. Intermediate durations are
// not summed so rounding drift in them does not accumulate.
func TotalDuration(tracks []core.Track) float64 {
	if len(tracks) == 0 {
		return 0
	}
	return tracks[len(tracks)-1].End()
}

// ValidateTracks checks that tracks tile the timeline without gaps or
// overlaps.
func ValidateTracks(tracks []core.Track) error {
	if len(tracks) == 0 {
		return fmt.Errorf("%w: no tracks", qerr.ErrInvalidTrackIndex)
	}
	for i := 0; i+1 < len(tracks); i++ {
		gap := tracks[i+1].Start - tracks[i].End()
		if math.Abs(gap) > contiguityTolerance {
			return fmt.Errorf("%w: track %d ends at %.3f but track %d starts at %.3f",
				qerr.ErrInvalidTrackIndex, i, tracks[i].End(), i+1, tracks[i+1].Start)
		}
	}
	return nil
}
