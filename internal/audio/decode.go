package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"

	qerr "github.com/tessro/quire/internal/errors"
)

// Formats lists the file extensions Decode can handle.
var Formats = []string{".mp3", ".wav"}

// Supported reports whether path has an extension Decode can handle.
func Supported(path string) bool {
	return slices.Contains(Formats, strings.ToLower(filepath.Ext(path)))
}

// Decode opens path and returns a seekable stream chosen by file
// extension.
func Decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	if !Supported(path) {
		return nil, beep.Format{}, fmt.Errorf("%s: unsupported format: %w", path, qerr.ErrPlaybackFailure)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		s, format, err = mp3.Decode(f)
	default:
		s, format, err = wav.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return s, format, nil
}

// MeasureDuration returns the duration of the file at path in seconds.
func MeasureDuration(path string) (float64, error) {
	s, format, err := Decode(path)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return format.SampleRate.D(s.Len()).Seconds(), nil
}
