package core

// Book is a loaded audiobook: its tracks and chapter table.
type Book struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Author   string    `json:"author"`
	Tracks   []Track   `json:"tracks"`
	Chapters []Chapter `json:"chapters"`
}

// Duration returns the total length of the book in seconds, or 0 if the
// book has no tracks.
func (b *Book) Duration() float64 {
	if b == nil || len(b.Tracks) == 0 {
		return 0
	}
	return b.Tracks[len(b.Tracks)-1].End()
}

// Track returns the track at index, or nil if out of range.
func (b *Book) Track(index int) *Track {
	if b == nil || index < 0 || index >= len(b.Tracks) {
		return nil
	}
	return &b.Tracks[index]
}

// Chapter returns the chapter at index, or nil if out of range.
func (b *Book) Chapter(index int) *Chapter {
	if b == nil || index < 0 || index >= len(b.Chapters) {
		return nil
	}
	return &b.Chapters[index]
}

// IsEmpty returns true if the book has no tracks.
func (b *Book) IsEmpty() bool {
	return b == nil || len(b.Tracks) == 0
}
