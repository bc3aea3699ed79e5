// Package rewind sizes the automatic rewind applied when playback resumes
// after a pause. Short pauses rewind a little, long pauses rewind more, with
// diminishing growth: the curve is linear in log(pause), not in pause.
package rewind

import (
	"math"
	"time"
)

// DefaultMax is the rewind cap in seconds when none is configured.
const DefaultMax = 30

// referenceMax is the cap the anchor table is expressed against. Other caps
// scale every anchor by max/referenceMax.
const referenceMax = 30.0

// anchor is one point of the reference curve: after pausing for At, rewind
// Seconds (for a cap of referenceMax).
type anchor struct {
	At      time.Duration
	Seconds float64
}

var anchors = []anchor{
	{3 * time.Second, 3},
	{10 * time.Second, 5},
	{30 * time.Second, 10},
	{2 * time.Minute, 15},
	{5 * time.Minute, 20},
	{15 * time.Minute, 25},
	{time.Hour, 30},
	{24 * time.Hour, 30},
}

// Saturation is the pause length from which the rewind always equals the cap.
var Saturation = anchors[len(anchors)-1].At

// Seconds returns how many whole seconds to rewind after a pause of the
// given length, never exceeding max.
func Seconds(pause time.Duration, max int) int {
	if max <= 0 || pause < anchors[0].At {
		return 0
	}
	if pause >= Saturation {
		return max
	}

	scaled := math.Round(curve(pause) * float64(max) / referenceMax)
	if scaled > float64(max) {
		return max
	}
	return int(scaled)
}

// curve interpolates the reference table in log-time. Between two anchors
// the rewind grows with log(pause), which keeps it monotonic and continuous
// while flattening out for long pauses.
func curve(pause time.Duration) float64 {
	for i := 0; i+1 < len(anchors); i++ {
		lo, hi := anchors[i], anchors[i+1]
		if pause > hi.At {
			continue
		}
		if pause == hi.At {
			return hi.Seconds
		}
		x := math.Log(pause.Seconds())
		x0 := math.Log(lo.At.Seconds())
		x1 := math.Log(hi.At.Seconds())
		frac := (x - x0) / (x1 - x0)
		return lo.Seconds + frac*(hi.Seconds-lo.Seconds)
	}
	return anchors[len(anchors)-1].Seconds
}

// Milliseconds is Seconds for callers that track pauses as epoch millis.
func Milliseconds(pauseMs int64, max int) int {
	return Seconds(time.Duration(pauseMs)*time.Millisecond, max)
}
