package position

import (
	"errors"
	"math"
	"testing"

	"github.com/tessro/quire/internal/core"
	qerr "github.com/tessro/quire/internal/errors"
)

var threeTracks = []core.Track{
	{Index: 0, Start: 0, Duration: 100},
	{Index: 1, Start: 100, Duration: 200},
	{Index: 2, Start: 300, Duration: 50},
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name   string
		global float64
		want   Location
	}{
		{"start", 0, Location{Track: 0, Offset: 0}},
		{"negative clamps to zero", -12, Location{Track: 0, Offset: 0}},
		{"inside first", 42.5, Location{Track: 0, Offset: 42.5}},
		{"boundary belongs to next", 100, Location{Track: 1, Offset: 0}},
		{"inside middle", 250, Location{Track: 1, Offset: 150}},
		{"inside last", 320, Location{Track: 2, Offset: 20}},
		{"exact end clamps", 350, Location{Track: 2, Offset: 50}},
		{"past end clamps", 9999, Location{Track: 2, Offset: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Locate(threeTracks, tt.global)
			if !ok {
				t.Fatal("Locate() ok = false, want true")
			}
			if got != tt.want {
				t.Errorf("Locate(%v) = %+v, want %+v", tt.global, got, tt.want)
			}
		})
	}
}

func TestLocateEmpty(t *testing.T) {
	for _, x := range []float64{-1, 0, 10, math.MaxFloat64} {
		if _, ok := Locate(nil, x); ok {
			t.Errorf("Locate(nil, %v) ok = true, want false", x)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, global := range []float64{0, 0.25, 99.99, 100, 150, 299.5, 300, 349.9} {
		loc, _ := Locate(threeTracks, global)
		back := ToGlobal(threeTracks, loc.Track, loc.Offset)
		if math.Abs(back-global) > 1e-9 {
			t.Errorf("round trip %v -> %+v -> %v", global, loc, back)
		}
	}

	// clamped inputs reproduce the clamped value
	loc, _ := Locate(threeTracks, -5)
	if got := ToGlobal(threeTracks, loc.Track, loc.Offset); got != 0 {
		t.Errorf("clamped negative round trip = %v, want 0", got)
	}
	loc, _ = Locate(threeTracks, 1000)
	if got := ToGlobal(threeTracks, loc.Track, loc.Offset); got != 350 {
		t.Errorf("clamped end round trip = %v, want 350", got)
	}
}

func TestToGlobalOutOfRange(t *testing.T) {
	if got := ToGlobal(threeTracks, -1, 10); got != 0 {
		t.Errorf("ToGlobal(-1) = %v, want 0", got)
	}
	if got := ToGlobal(threeTracks, len(threeTracks), 10); got != 0 {
		t.Errorf("ToGlobal(len) = %v, want 0", got)
	}
}

func TestIsNearEnd(t *testing.T) {
	tests := []struct {
		index  int
		offset float64
		want   bool
	}{
		{0, 99.5, true},
		{0, 99.49, false},
		{0, 100, true},
		{1, 10, false},
		{5, 0, false},
	}
	for _, tt := range tests {
		if got := IsNearEnd(threeTracks, tt.index, tt.offset, DefaultNearEndThreshold); got != tt.want {
			t.Errorf("IsNearEnd(%d, %v) = %v, want %v", tt.index, tt.offset, got, tt.want)
		}
	}
}

func TestNeighbours(t *testing.T) {
	if i, ok := NextTrack(threeTracks, 0); !ok || i != 1 {
		t.Errorf("NextTrack(0) = %d, %v", i, ok)
	}
	if _, ok := NextTrack(threeTracks, 2); ok {
		t.Error("NextTrack(last) ok = true")
	}
	if i, ok := PreviousTrack(threeTracks, 2); !ok || i != 1 {
		t.Errorf("PreviousTrack(2) = %d, %v", i, ok)
	}
	if _, ok := PreviousTrack(threeTracks, 0); ok {
		t.Error("PreviousTrack(0) ok = true")
	}
}

func TestTotalDuration(t *testing.T) {
	drifted := []core.Track{
		{Start: 0, Duration: 10.0004},
		{Start: 10, Duration: 5},
	}
	if got := TotalDuration(drifted); got != 15 {
		t.Errorf("TotalDuration() = %v, want 15", got)
	}
	if got := TotalDuration(nil); got != 0 {
		t.Errorf("TotalDuration(nil) = %v, want 0", got)
	}
}

func TestValidateTracks(t *testing.T) {
	if err := ValidateTracks(threeTracks); err != nil {
		t.Errorf("ValidateTracks() = %v", err)
	}
	gap := []core.Track{{Start: 0, Duration: 10}, {Start: 12, Duration: 5}}
	if err := ValidateTracks(gap); !errors.Is(err, qerr.ErrInvalidTrackIndex) {
		t.Errorf("ValidateTracks(gap) = %v, want ErrInvalidTrackIndex", err)
	}
	if err := ValidateTracks(nil); err == nil {
		t.Error("ValidateTracks(nil) = nil, want error")
	}
}
