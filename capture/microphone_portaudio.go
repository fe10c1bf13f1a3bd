//go:build portaudio

package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/glosings0n/Vut-Elimu/audio"
)

// micFramesPerBuffer is 64ms at 16kHz; reads are stitched into full frames.
const micFramesPerBuffer = 1024

type portAudioMic struct {
	*trackState
	mu     sync.Mutex
	stream *portaudio.Stream
	in     []float32
	pos    int
}

// openMicrophone opens the default input device at 16 kHz mono. The caller
// must have called portaudio.Initialize.
func openMicrophone(_ context.Context) (AudioTrack, error) {
	in := make([]float32, micFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(audio.InputSampleRate), micFramesPerBuffer, in)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %v: %w", err, ErrMediaAccessDenied)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start input stream: %v: %w", err, ErrMediaAccessDenied)
	}
	return &portAudioMic{trackState: newTrackState(), stream: stream, in: in, pos: len(in)}, nil
}

func (m *portAudioMic) Kind() Kind      { return KindAudio }
func (m *portAudioMic) SampleRate() int { return audio.InputSampleRate }

func (m *portAudioMic) Read(ctx context.Context, buf []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for filled := 0; filled < len(buf); {
		if m.Stopped() {
			return ErrTrackStopped
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.pos == len(m.in) {
			if err := m.stream.Read(); err != nil {
				// Input overflow loses samples but the stream keeps running
				if err != portaudio.InputOverflowed {
					return fmt.Errorf("read input stream: %w", err)
				}
			}
			m.pos = 0
		}
		n := copy(buf[filled:], m.in[m.pos:])
		m.pos += n
		filled += n
	}
	return nil
}

func (m *portAudioMic) Stop() {
	m.trackState.Stop()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		_ = m.stream.Stop()
		_ = m.stream.Close()
		m.stream = nil
	}
}
