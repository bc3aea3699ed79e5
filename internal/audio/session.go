package audio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/faiface/beep"

	"github.com/tessro/quire/internal/preload"
)

// Session is an opened, decoded track kept warm ahead of playback.
type Session struct {
	Path string

	mu     sync.Mutex
	stream beep.StreamSeekCloser
	format beep.Format
	closed bool
}

// Close releases the decoder unless the session has been adopted.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

// take hands the decoder to the caller. It returns false if the session
// was closed or already taken.
func (s *Session) take() (beep.StreamSeekCloser, beep.Format, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stream == nil {
		return nil, beep.Format{}, false
	}
	st, f := s.stream, s.format
	s.stream = nil
	s.closed = true
	return st, f, true
}

// Opener decodes local files for the preload cache.
type Opener struct{}

// Open decodes the file named by url. A file:// prefix is accepted.
func (Opener) Open(ctx context.Context, url string) (preload.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(url, "file://")
	st, format, err := Decode(path)
	if err != nil {
		return nil, fmt.Errorf("preload %s: %w", path, err)
	}
	return &Session{Path: path, stream: st, format: format}, nil
}

var _ preload.Opener = Opener{}
