package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/quire/internal/config"
	qerr "github.com/tessro/quire/internal/errors"
	"github.com/tessro/quire/internal/logging"
	"github.com/tessro/quire/internal/remote"
)

func newTestSession(t *testing.T) *session {
	t.Helper()
	c := config.Default()
	c.Playback.Output = "null"
	s := newSession(c, logging.Discard())
	t.Cleanup(s.close)
	return s
}

func TestLoadBooksSkipsBadExtras(t *testing.T) {
	s := newTestSession(t)
	good := writeBook(t)
	missing := filepath.Join(t.TempDir(), "gone.toml")

	books, err := s.loadBooks(context.Background(), []string{good, missing, good})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "The Long Way", books[0].Title)
}

func TestLoadBooksFirstRequired(t *testing.T) {
	s := newTestSession(t)
	missing := filepath.Join(t.TempDir(), "gone.toml")

	_, err := s.loadBooks(context.Background(), []string{missing, writeBook(t)})
	require.Error(t, err)
	assert.Contains(t, qerr.GetSuggestion(err), "book.toml")
}

func TestSessionConfigMapping(t *testing.T) {
	c := config.Default()
	c.Seek.ScrubSteps = []config.ScrubStep{{AfterMs: 0, Rate: 10}, {AfterMs: 2000, Rate: 25}}
	c.Remote.TrackNavigation = "skip"

	sc := scrubConfig(c.Seek)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, 25.0, sc.Steps[1].Rate)
	assert.Equal(t, int64(2000), sc.Steps[1].After.Milliseconds())

	rc := remoteConfig(c.Remote)
	assert.Equal(t, remote.NavigationSkip, rc.TrackNavigation)
	assert.Equal(t, c.Remote.Speeds, rc.AvailableSpeeds)
}

func TestIgnoreCancel(t *testing.T) {
	assert.NoError(t, ignoreCancel(context.Canceled))
	assert.NoError(t, ignoreCancel(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, ignoreCancel(boom), boom)
}

// writeToneBook writes a one-track book of WAV audio into its own
// directory and returns the directory.
func writeToneBook(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.Mkdir(dir, 0o755))

	f, err := os.Create(filepath.Join(dir, "01.wav"))
	require.NoError(t, err)
	defer f.Close()

	const rate = 8000
	data := make([]int, rate)
	for i := range data {
		if (i/20)%2 == 0 {
			data[i] = 8000
		} else {
			data[i] = -8000
		}
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return dir
}

func TestNextBookAdoptsPreloadedSession(t *testing.T) {
	var logs bytes.Buffer
	c := config.Default()
	c.Playback.Output = "null"
	s := newSession(c, slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(s.close)
	ctx := context.Background()

	books, err := s.loadBooks(ctx, []string{writeToneBook(t, "first"), writeToneBook(t, "second")})
	require.NoError(t, err)
	require.Len(t, books, 2)

	require.NoError(t, s.open(ctx, books, 0))
	assert.True(t, s.cache.IsPreloaded(books[1].ID), "next book warmed on open")

	logs.Reset()
	got, err := s.NextBook(ctx)
	require.NoError(t, err)
	assert.Equal(t, books[1], got)
	assert.Equal(t, books[1], s.engine.Book())
	assert.False(t, s.cache.IsPreloaded(books[1].ID), "session handed to the player")
	assert.True(t, s.cache.IsPreloaded(books[0].ID), "previous book warmed for the way back")

	var opened bool
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		if strings.Contains(line, `"msg":"book opened"`) {
			opened = true
			assert.Contains(t, line, `"warm":true`)
		}
	}
	assert.True(t, opened, "book opened not logged")

	_, err = s.NextBook(ctx)
	assert.ErrorIs(t, err, errNoMoreBooks)

	got, err = s.PreviousBook(ctx)
	require.NoError(t, err)
	assert.Equal(t, books[0], got)
}

func TestAdvanceEndsAfterLastBook(t *testing.T) {
	s := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	books, err := s.loadBooks(ctx, []string{writeToneBook(t, "only")})
	require.NoError(t, err)
	require.NoError(t, s.open(ctx, books, 0))

	s.advance(ctx, cancel)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
