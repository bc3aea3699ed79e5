package core

import "time"

// PlaybackState is a point-in-time view of a playback session.
type PlaybackState struct {
	Book         *Book         `json:"book"`
	Track        *Track        `json:"track"`
	Chapter      *Chapter      `json:"chapter"`
	ChapterIndex int           `json:"chapter_index"`
	IsPlaying    bool          `json:"is_playing"`
	Position     float64       `json:"position"`
	Duration     float64       `json:"duration"`
	Rate         float64       `json:"rate"`
	PausedFor    time.Duration `json:"paused_for"`
}

// HasBook returns true if a book is loaded.
func (s *PlaybackState) HasBook() bool {
	return s != nil && !s.Book.IsEmpty()
}

// ProgressPercent returns playback progress through the book as a percentage (0-100).
func (s *PlaybackState) ProgressPercent() float64 {
	if s == nil || s.Duration == 0 {
		return 0
	}
	return s.Position / s.Duration * 100
}

// ChapterProgress returns the position within the current chapter and the
// chapter length, both in seconds.
func (s *PlaybackState) ChapterProgress() (elapsed, length float64) {
	if s == nil || s.Chapter == nil {
		return 0, 0
	}
	elapsed = s.Position - s.Chapter.Start
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, s.Chapter.Length()
}
