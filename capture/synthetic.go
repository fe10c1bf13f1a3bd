package capture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/glosings0n/Vut-Elimu/audio"
)

// SyntheticDevice produces a sine-tone microphone and a generated test-card
// camera. It backs the CLI --simulate mode and the package tests.
type SyntheticDevice struct {
	// Deny makes Open fail with ErrMediaAccessDenied.
	Deny bool
	// ToneHz is the microphone tone frequency. Zero means 440.
	ToneHz float64
	// Realtime paces microphone reads to the sample clock.
	Realtime bool

	mu     sync.Mutex
	opened []*Stream
}

// Open implements Device.
func (d *SyntheticDevice) Open(ctx context.Context, c Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Deny {
		return nil, fmt.Errorf("synthetic device: %w", ErrMediaAccessDenied)
	}
	if !c.Audio && !c.Video {
		return nil, fmt.Errorf("no media requested: %w", ErrMediaAccessDenied)
	}

	var mic AudioTrack
	var cam VideoTrack
	if c.Audio {
		hz := d.ToneHz
		if hz == 0 {
			hz = 440
		}
		mic = &toneTrack{trackState: newTrackState(), hz: hz, realtime: d.Realtime}
	}
	if c.Video {
		cam = &testCardTrack{trackState: newTrackState(), width: 320, height: 240}
	}
	s := NewStream(mic, cam)

	d.mu.Lock()
	d.opened = append(d.opened, s)
	d.mu.Unlock()
	return s, nil
}

// Streams returns every stream opened so far.
func (d *SyntheticDevice) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Stream, len(d.opened))
	copy(out, d.opened)
	return out
}

// LiveTracks counts tracks that have not been stopped.
func (d *SyntheticDevice) LiveTracks() int {
	n := 0
	for _, s := range d.Streams() {
		for _, t := range s.Tracks() {
			if !t.Stopped() {
				n++
			}
		}
	}
	return n
}

type toneTrack struct {
	*trackState
	hz       float64
	realtime bool
	phase    float64
}

func (t *toneTrack) Kind() Kind      { return KindAudio }
func (t *toneTrack) SampleRate() int { return audio.InputSampleRate }

func (t *toneTrack) Read(ctx context.Context, buf []float32) error {
	if t.Stopped() {
		return ErrTrackStopped
	}
	step := 2 * math.Pi * t.hz / audio.InputSampleRate
	for i := range buf {
		buf[i] = float32(0.3 * math.Sin(t.phase))
		t.phase += step
	}
	t.phase = math.Mod(t.phase, 2*math.Pi)

	if t.realtime {
		d := time.Duration(len(buf)) * time.Second / audio.InputSampleRate
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.done:
			return ErrTrackStopped
		case <-time.After(d):
		}
	}
	return ctx.Err()
}

type testCardTrack struct {
	*trackState
	width, height int
	frame         int
}

func (t *testCardTrack) Kind() Kind { return KindVideo }

func (t *testCardTrack) Snapshot(ctx context.Context) (image.Image, error) {
	if t.Stopped() {
		return nil, ErrTrackStopped
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	bar := t.frame % t.width
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			c := color.RGBA{R: uint8(x * 255 / t.width), G: uint8(y * 255 / t.height), B: 128, A: 255} //nolint:gosec // bounded by width/height
			if x >= bar && x < bar+8 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	t.frame += 8
	return img, nil
}
