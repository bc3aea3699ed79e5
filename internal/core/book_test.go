package core

import "testing"

func TestBookDuration(t *testing.T) {
	b := &Book{Tracks: []Track{
		{Index: 0, Start: 0, Duration: 100},
		{Index: 1, Start: 100, Duration: 50.5},
	}}
	if got := b.Duration(); got != 150.5 {
		t.Errorf("Duration() = %v, want 150.5", got)
	}

	var nilBook *Book
	if got := nilBook.Duration(); got != 0 {
		t.Errorf("nil Duration() = %v, want 0", got)
	}
	if !nilBook.IsEmpty() {
		t.Error("nil IsEmpty() = false, want true")
	}
}

func TestBookLookups(t *testing.T) {
	b := &Book{
		Tracks:   []Track{{Index: 0, Duration: 10}},
		Chapters: []Chapter{{Index: 0, Title: "Opening", Start: 0, End: 10}},
	}
	if b.Track(0) == nil || b.Track(1) != nil || b.Track(-1) != nil {
		t.Error("Track() bounds check failed")
	}
	if c := b.Chapter(0); c == nil || c.Title != "Opening" {
		t.Errorf("Chapter(0) = %+v", c)
	}
	if b.Chapter(3) != nil {
		t.Error("Chapter(3) should be nil")
	}
}

func TestChapterProgress(t *testing.T) {
	s := &PlaybackState{
		Chapter:  &Chapter{Start: 60, End: 120},
		Position: 75,
		Duration: 300,
	}
	elapsed, length := s.ChapterProgress()
	if elapsed != 15 || length != 60 {
		t.Errorf("ChapterProgress() = (%v, %v), want (15, 60)", elapsed, length)
	}
	if got := s.ProgressPercent(); got != 25 {
		t.Errorf("ProgressPercent() = %v, want 25", got)
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{59.9, "0:59"},
		{61, "1:01"},
		{3600, "1:00:00"},
		{3723, "1:02:03"},
		{-5, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.in); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"90.5", 90.5, false},
		{"1:30", 90, false},
		{"1:02:03", 3723, false},
		{" 0:05 ", 5, false},
		{"", 0, true},
		{"1:60", 0, true},
		{"-3", 0, true},
		{"1:2:3:4", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
