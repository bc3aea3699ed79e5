package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tessro/quire/internal/core"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template. An invalid template is
// ignored.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if tmpl == "" {
			return
		}
		if t, err := template.New("format").Parse(tmpl); err == nil {
			f.template = t
		}
	}
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{showEmoji: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

func (f *Formatter) formatLine(e Event) string {
	var parts []string
	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}
	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}
	parts = append(parts, describe(e))
	return strings.Join(parts, " ")
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	Book      string
	Author    string
	Chapter   string
	Track     int
	Position  string
	Rate      float64
	Message   string
}

func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      eventTypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
		Message:   describe(e),
	}
	if s := e.Current; s != nil {
		if s.Book != nil {
			data.Book = s.Book.Title
			data.Author = s.Book.Author
		}
		if s.Chapter != nil {
			data.Chapter = s.Chapter.Title
		}
		if s.Track != nil {
			data.Track = s.Track.Index + 1
		}
		data.Position = core.FormatClock(s.Position)
		data.Rate = s.Rate
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

// describe returns a human-readable description of the event.
func describe(e Event) string {
	cur := e.Current
	switch e.Type {
	case EventBookLoaded:
		if cur.HasBook() {
			if cur.Book.Author != "" {
				return fmt.Sprintf("Loaded: %s - %s", cur.Book.Author, cur.Book.Title)
			}
			return "Loaded: " + cur.Book.Title
		}
		return "Book loaded"

	case EventTrackChange:
		if cur != nil && cur.Track != nil && cur.HasBook() {
			return fmt.Sprintf("Track %d of %d", cur.Track.Index+1, len(cur.Book.Tracks))
		}
		return "Track changed"

	case EventChapterChange:
		if cur != nil && cur.Chapter != nil {
			return fmt.Sprintf("Chapter %d: %s", cur.Chapter.Index+1, cur.Chapter.Title)
		}
		return "Chapter changed"

	case EventSeekStart:
		if e.Seek != nil {
			return fmt.Sprintf("Seeking %s to %s", e.Seek.Direction, core.FormatClock(e.Seek.Lock.TargetPosition))
		}
		return "Seeking"

	case EventSeekEnd:
		if cur != nil {
			return "Landed at " + core.FormatClock(cur.Position)
		}
		return "Seek finished"

	case EventPause:
		if cur != nil {
			return "Paused at " + core.FormatClock(cur.Position)
		}
		return "Paused"

	case EventResume:
		// PausedFor is only cleared on resume, so the previous poll still
		// carries the length of the pause.
		if e.Previous != nil && e.Previous.PausedFor > 0 {
			return "Resumed after " + PauseLength(e.Previous.PausedFor)
		}
		return "Resumed"

	case EventSpeedChange:
		if cur != nil {
			return fmt.Sprintf("Speed: %gx", cur.Rate)
		}
		return "Speed changed"

	case EventFinished:
		return "Finished"

	default:
		return "Unknown event"
	}
}

// PauseLength renders d the way people talk about it ("5 minutes").
func PauseLength(d time.Duration) string {
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now.Add(-d), now, "", ""))
}

// eventEmoji returns an emoji for the event type.
func eventEmoji(t EventType) string {
	switch t {
	case EventBookLoaded:
		return "📖"
	case EventTrackChange:
		return "💿"
	case EventChapterChange:
		return "🔖"
	case EventSeekStart:
		return "⏩"
	case EventSeekEnd:
		return "📍"
	case EventPause:
		return "⏸️"
	case EventResume:
		return "▶️"
	case EventSpeedChange:
		return "🐇"
	case EventFinished:
		return "✅"
	default:
		return "❓"
	}
}

// eventTypeName returns the name of the event type.
func eventTypeName(t EventType) string {
	switch t {
	case EventBookLoaded:
		return "book_loaded"
	case EventTrackChange:
		return "track_change"
	case EventChapterChange:
		return "chapter_change"
	case EventSeekStart:
		return "seek_start"
	case EventSeekEnd:
		return "seek_end"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventSpeedChange:
		return "speed_change"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}
