package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/quire/internal/core"
	qerr "github.com/tessro/quire/internal/errors"
	"github.com/tessro/quire/internal/preload"
)

const fixtureRate = 8000

// writeTone writes a mono 16-bit WAV of the given length.
func writeTone(t *testing.T, dir, name string, seconds float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	n := int(seconds * fixtureRate)
	data := make([]int, n)
	for i := range data {
		if (i/20)%2 == 0 {
			data[i] = 8000
		} else {
			data[i] = -8000
		}
	}

	enc := wav.NewEncoder(f, fixtureRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: 1, SampleRate: fixtureRate},
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	return path
}

func fixtureBook(t *testing.T) *core.Book {
	t.Helper()
	dir := t.TempDir()
	return &core.Book{
		ID:    "tones",
		Title: "Tones",
		Tracks: []core.Track{
			{Index: 0, Source: writeTone(t, dir, "01.wav", 1), Start: 0, Duration: 1},
			{Index: 1, Source: writeTone(t, dir, "02.wav", 1), Start: 1, Duration: 1},
		},
		Chapters: []core.Chapter{
			{Index: 0, Title: "One", Start: 0, End: 1},
			{Index: 1, Title: "Two", Start: 1, End: 2},
		},
	}
}

func newTestBackend() (*Backend, *NullOutput) {
	out := &NullOutput{}
	return NewBackend(WithOutput(out), WithSampleRate(fixtureRate)), out
}

func TestMeasureDuration(t *testing.T) {
	path := writeTone(t, t.TempDir(), "tone.wav", 1.5)

	d, err := MeasureDuration(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, d, 0.001)
}

func TestDecodeUnsupported(t *testing.T) {
	_, _, err := Decode("chapter.flac")
	assert.ErrorIs(t, err, qerr.ErrPlaybackFailure)
	assert.False(t, Supported("chapter.flac"))
	assert.True(t, Supported("CHAPTER.MP3"))
}

func TestLoadEmptyBook(t *testing.T) {
	b, _ := newTestBackend()
	err := b.Load(context.Background(), &core.Book{}, 0, nil)
	assert.ErrorIs(t, err, qerr.ErrNoBookLoaded)

	assert.ErrorIs(t, b.Play(context.Background()), qerr.ErrNoBookLoaded)
	assert.ErrorIs(t, b.Seek(context.Background(), 1), qerr.ErrNoBookLoaded)
	assert.Zero(t, b.Position())
}

func TestLoadPositionsPaused(t *testing.T) {
	b, out := newTestBackend()
	book := fixtureBook(t)

	require.NoError(t, b.Load(context.Background(), book, 1.25, nil))
	assert.Equal(t, 1, b.Track())
	assert.InDelta(t, 1.25, b.Position(), 0.001)
	assert.Equal(t, 2.0, b.Duration())
	assert.False(t, b.IsPlaying())

	// Paused output produces silence and does not advance.
	out.Pull(fixtureRate / 10)
	assert.InDelta(t, 1.25, b.Position(), 0.001)
}

func TestPlayAdvancesPosition(t *testing.T) {
	b, out := newTestBackend()
	require.NoError(t, b.Load(context.Background(), fixtureBook(t), 0, nil))

	require.NoError(t, b.Play(context.Background()))
	assert.True(t, b.IsPlaying())
	out.Pull(fixtureRate / 2)
	assert.InDelta(t, 0.5, b.Position(), 0.1)

	require.NoError(t, b.Pause(context.Background()))
	before := b.Position()
	out.Pull(fixtureRate / 4)
	assert.Equal(t, before, b.Position())
}

func TestSeekAcrossTracks(t *testing.T) {
	b, _ := newTestBackend()
	require.NoError(t, b.Load(context.Background(), fixtureBook(t), 0, nil))

	require.NoError(t, b.Seek(context.Background(), 1.5))
	assert.Equal(t, 1, b.Track())
	assert.InDelta(t, 1.5, b.Position(), 0.001)

	require.NoError(t, b.Seek(context.Background(), 0.25))
	assert.Equal(t, 0, b.Track())
	assert.InDelta(t, 0.25, b.Position(), 0.001)

	require.NoError(t, b.Seek(context.Background(), -4))
	assert.InDelta(t, 0, b.Position(), 0.001)
}

func TestTrackEndAdvances(t *testing.T) {
	b, out := newTestBackend()
	require.NoError(t, b.Load(context.Background(), fixtureBook(t), 0.9, nil))
	require.NoError(t, b.Play(context.Background()))

	require.Eventually(t, func() bool {
		out.Pull(fixtureRate / 20)
		return b.Track() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, b.IsPlaying())
	assert.GreaterOrEqual(t, b.Position(), 1.0)
}

func TestBookEnds(t *testing.T) {
	b, out := newTestBackend()
	require.NoError(t, b.Load(context.Background(), fixtureBook(t), 1.9, nil))
	require.NoError(t, b.Play(context.Background()))

	require.Eventually(t, func() bool {
		out.Pull(fixtureRate / 20)
		return b.Ended()
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, b.IsPlaying())
	assert.Equal(t, 2.0, b.Position())

	// Seeking back revives playback.
	require.NoError(t, b.Seek(context.Background(), 1.5))
	assert.False(t, b.Ended())
	require.NoError(t, b.Play(context.Background()))
	assert.True(t, b.IsPlaying())
}

func TestPlaybackRate(t *testing.T) {
	b, out := newTestBackend()
	require.NoError(t, b.Load(context.Background(), fixtureBook(t), 0, nil))
	require.NoError(t, b.SetPlaybackRate(context.Background(), 2))
	assert.Equal(t, 2.0, b.PlaybackRate())

	require.NoError(t, b.Play(context.Background()))
	out.Pull(fixtureRate / 4)
	assert.InDelta(t, 0.5, b.Position(), 0.1)

	assert.ErrorIs(t, b.SetPlaybackRate(context.Background(), 0), qerr.ErrPlaybackFailure)
}

func TestLoadAdoptsWarmSession(t *testing.T) {
	book := fixtureBook(t)
	warm, err := Opener{}.Open(context.Background(), "file://"+book.Tracks[0].Source)
	require.NoError(t, err)

	b, _ := newTestBackend()
	require.NoError(t, b.Load(context.Background(), book, 0.5, warm))
	assert.InDelta(t, 0.5, b.Position(), 0.001)

	s := warm.(*Session)
	_, _, ok := s.take()
	assert.False(t, ok, "adopted session must not be reusable")
	assert.NoError(t, warm.Close())
}

func TestLoadClosesMismatchedWarmSession(t *testing.T) {
	book := fixtureBook(t)
	warm, err := Opener{}.Open(context.Background(), book.Tracks[1].Source)
	require.NoError(t, err)

	b, _ := newTestBackend()
	require.NoError(t, b.Load(context.Background(), book, 0, warm))

	_, _, ok := warm.(*Session).take()
	assert.False(t, ok)
}

func TestOpenerErrors(t *testing.T) {
	_, err := Opener{}.Open(context.Background(), "/nowhere/01.wav")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Opener{}.Open(ctx, "/nowhere/01.wav")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenerWithPreloadCache(t *testing.T) {
	book := fixtureBook(t)
	cache := preload.New(Opener{})
	defer cache.Dispose()

	cache.Preload(context.Background(), book.ID, book.Tracks[0].Source)
	require.True(t, cache.IsPreloaded(book.ID))

	warm, ok := cache.Transfer(book.ID)
	require.True(t, ok)

	b, _ := newTestBackend()
	require.NoError(t, b.Load(context.Background(), book, 0, warm))
	assert.NoError(t, b.Close())
}

type countingSession struct{ closed int }

func (s *countingSession) Close() error {
	s.closed++
	return nil
}

func TestLoadEarlyReturnClosesWarmSession(t *testing.T) {
	b, _ := newTestBackend()

	empty := &countingSession{}
	assert.ErrorIs(t, b.Load(context.Background(), &core.Book{}, 0, empty), qerr.ErrNoBookLoaded)
	assert.Equal(t, 1, empty.closed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cancelled := &countingSession{}
	assert.ErrorIs(t, b.Load(ctx, fixtureBook(t), 0, cancelled), context.Canceled)
	assert.Equal(t, 1, cancelled.closed)
}
