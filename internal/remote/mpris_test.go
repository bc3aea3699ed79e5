package remote

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/stretchr/testify/assert"

	"github.com/tessro/quire/internal/core"
)

func TestMPRISMethods(t *testing.T) {
	target := newFakeTarget()
	m := newMPRIS(New(target, DefaultConfig()), nil)

	assert.Nil(t, m.Play())
	assert.Nil(t, m.Pause())
	assert.Nil(t, m.PlayPause())
	assert.Nil(t, m.Stop())
	assert.Nil(t, m.Next())
	assert.Nil(t, m.Previous())
	assert.Nil(t, m.Seek(15_000_000))
	assert.Nil(t, m.Seek(-5_000_000))
	assert.Nil(t, m.Seek(0))
	assert.Nil(t, m.SetPosition("/any", 90_000_000))
	assert.Nil(t, m.SetPosition("/any", -1))

	assert.Equal(t, []string{
		"play",
		"pause",
		"play",
		"pause",
		"next_chapter",
		"prev_chapter",
		"seek_relative 15",
		"seek_relative -5",
		"seek_absolute 90",
	}, target.Calls())
}

func TestMPRISHandlerErrorsStayLocal(t *testing.T) {
	target := newFakeTarget()
	target.err = assert.AnError
	m := newMPRIS(New(target, DefaultConfig()), nil)

	assert.Nil(t, m.Next())
}

func TestMPRISRateChange(t *testing.T) {
	target := newFakeTarget()
	m := newMPRIS(New(target, DefaultConfig()), nil)

	assert.Nil(t, m.rateChange(&prop.Change{Name: "Rate", Value: 1.75}))
	assert.Equal(t, 1.75, target.Speed())

	assert.NotNil(t, m.rateChange(&prop.Change{Name: "Rate", Value: "fast"}))
}

func TestMPRISUpdateWithoutBus(t *testing.T) {
	m := newMPRIS(New(newFakeTarget(), DefaultConfig()), nil)
	assert.NotPanics(t, func() {
		m.Update(core.PlaybackState{IsPlaying: true})
	})
}

func TestMetadata(t *testing.T) {
	empty := metadata(nil)
	assert.Equal(t, dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack"), empty["mpris:trackid"].Value())

	book := &core.Book{
		ID:     "abc-123",
		Title:  "Dune",
		Author: "Frank Herbert",
		Tracks: []core.Track{{Start: 0, Duration: 60}, {Start: 60, Duration: 30}},
	}
	md := metadata(book)
	assert.Equal(t, dbus.ObjectPath("/org/quire/book/abc_123"), md["mpris:trackid"].Value())
	assert.Equal(t, int64(90_000_000), md["mpris:length"].Value())
	assert.Equal(t, "Dune", md["xesam:title"].Value())
	assert.Equal(t, []string{"Frank Herbert"}, md["xesam:artist"].Value())
}

func TestSpeedBounds(t *testing.T) {
	assert.Equal(t, 0.5, minSpeed(DefaultSpeeds))
	assert.Equal(t, 3.0, maxSpeed(DefaultSpeeds))
	assert.Equal(t, 1.0, minSpeed(nil))
}
