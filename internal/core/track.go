package core

// Track is one audio file of a multi-file book, placed on the book's
// global timeline. All positions are in seconds.
type Track struct {
	Index    int     `json:"index" toml:"index"`
	Source   string  `json:"source" toml:"source"`
	Start    float64 `json:"start" toml:"start"`
	Duration float64 `json:"duration" toml:"duration"`
}

// End returns the global position where the track stops.
func (t Track) End() float64 {
	return t.Start + t.Duration
}

// Chapter is a navigation unit on the global timeline, independent of
// track boundaries.
type Chapter struct {
	Index int     `json:"index" toml:"index"`
	Title string  `json:"title" toml:"title"`
	Start float64 `json:"start" toml:"start"`
	End   float64 `json:"end" toml:"end"`
}

// Length returns the chapter length in seconds.
func (c Chapter) Length() float64 {
	if c.End < c.Start {
		return 0
	}
	return c.End - c.Start
}
