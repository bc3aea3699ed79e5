package audio

import (
	"context"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Output is the device the backend's stream plays on. Lock must be held
// while touching a streamer that Output is consuming.
type Output interface {
	Init(sr beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

// Speaker plays through the system audio device.
type Speaker struct {
	once sync.Once
	err  error
}

// Init opens the device. Later calls are no-ops since the speaker can
// only be opened once per process.
func (s *Speaker) Init(sr beep.SampleRate, bufferSize int) error {
	s.once.Do(func() {
		s.err = speaker.Init(sr, bufferSize)
	})
	return s.err
}

func (s *Speaker) Play(st beep.Streamer) { speaker.Play(st) }
func (s *Speaker) Clear()                { speaker.Clear() }
func (s *Speaker) Lock()                 { speaker.Lock() }
func (s *Speaker) Unlock()               { speaker.Unlock() }

// NullOutput consumes samples without producing sound. Samples are pulled
// explicitly with Pull or in real time with Run.
type NullOutput struct {
	mu       sync.Mutex
	sr       beep.SampleRate
	streamer beep.Streamer
	buf      [][2]float64
}

func (o *NullOutput) Init(sr beep.SampleRate, _ int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sr = sr
	return nil
}

func (o *NullOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamer = s
}

func (o *NullOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamer = nil
}

func (o *NullOutput) Lock()   { o.mu.Lock() }
func (o *NullOutput) Unlock() { o.mu.Unlock() }

// Pull streams up to n samples and returns how many were produced. A
// drained streamer is dropped.
func (o *NullOutput) Pull(n int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streamer == nil || n <= 0 {
		return 0
	}
	if cap(o.buf) < n {
		o.buf = make([][2]float64, n)
	}
	got, ok := o.streamer.Stream(o.buf[:n])
	if !ok {
		o.streamer = nil
	}
	return got
}

// Run pulls samples at the output sample rate until ctx is done.
func (o *NullOutput) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			o.mu.Lock()
			n := o.sr.N(every)
			o.mu.Unlock()
			o.Pull(n)
		}
	}
}
