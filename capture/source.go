// Package capture acquires microphone and camera media and turns it into
// frames for a live session.
package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"
)

// ErrMediaAccessDenied is returned when the user declines access or no
// suitable device is present. Callers abort session start; retrying without
// permission would loop.
var ErrMediaAccessDenied = errors.New("media access denied")

// ErrTrackStopped is returned by reads on a stopped track.
var ErrTrackStopped = errors.New("track stopped")

// Constraints selects which media to acquire.
type Constraints struct {
	Audio bool
	Video bool
}

// Kind identifies the media carried by a track or frame.
type Kind int

// Media kinds.
const (
	KindAudio Kind = iota
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "audio"
}

// Track is one acquired media source.
type Track interface {
	Kind() Kind
	Stop()
	Stopped() bool
}

// AudioTrack delivers mono float samples in [-1, 1].
type AudioTrack interface {
	Track
	SampleRate() int
	// Read fills buf completely or returns an error.
	Read(ctx context.Context, buf []float32) error
}

// VideoTrack delivers the current camera frame on demand.
type VideoTrack interface {
	Track
	Snapshot(ctx context.Context) (image.Image, error)
}

// Device opens media streams. Open may block for as long as the platform
// permission prompt is shown; it honours ctx but imposes no timeout.
type Device interface {
	Open(ctx context.Context, c Constraints) (*Stream, error)
}

// Stream is the set of tracks acquired for one session.
type Stream struct {
	audio AudioTrack
	video VideoTrack
	once  sync.Once
}

// NewStream groups acquired tracks. Either may be nil.
func NewStream(audio AudioTrack, video VideoTrack) *Stream {
	return &Stream{audio: audio, video: video}
}

// AudioTrack returns the microphone track, or nil.
func (s *Stream) AudioTrack() AudioTrack { return s.audio }

// VideoTrack returns the camera track, or nil.
func (s *Stream) VideoTrack() VideoTrack { return s.video }

// Tracks returns every acquired track.
func (s *Stream) Tracks() []Track {
	var tracks []Track
	if s.audio != nil {
		tracks = append(tracks, s.audio)
	}
	if s.video != nil {
		tracks = append(tracks, s.video)
	}
	return tracks
}

// Stop stops every track. It is idempotent.
func (s *Stream) Stop() {
	s.once.Do(func() {
		for _, t := range s.Tracks() {
			t.Stop()
		}
	})
}

// Frame is one unit of captured media: a fixed-size block of 16 kHz samples
// or a single JPEG snapshot.
type Frame struct {
	Kind       Kind
	Seq        uint64
	Samples    []float32
	JPEG       []byte
	CapturedAt time.Time
}

// FrameSink receives frames in capture order.
type FrameSink func(Frame)

// trackState is the shared stop bookkeeping for track implementations.
type trackState struct {
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

func newTrackState() *trackState {
	return &trackState{done: make(chan struct{})}
}

func (t *trackState) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.stopped = true
		close(t.done)
	}
}

func (t *trackState) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
