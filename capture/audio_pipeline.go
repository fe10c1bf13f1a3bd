package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glosings0n/Vut-Elimu/audio"
	"github.com/glosings0n/Vut-Elimu/logger"
)

// DefaultFrameSize is the number of 16 kHz samples per audio frame (~256ms).
const DefaultFrameSize = 4096

// readRetryDelay is the pause after a transient device read error.
const readRetryDelay = 10 * time.Millisecond

// AudioPipeline pulls fixed-size frames from a microphone track and forwards
// them to a sink while the mic is active. Muting suspends transmission only;
// the device keeps capturing.
type AudioPipeline struct {
	track     AudioTrack
	sink      FrameSink
	frameSize int

	active atomic.Bool
	seq    uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewAudioPipeline creates a pipeline. frameSize <= 0 selects DefaultFrameSize.
// The pipeline starts muted.
func NewAudioPipeline(track AudioTrack, frameSize int, sink FrameSink) *AudioPipeline {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	return &AudioPipeline{track: track, sink: sink, frameSize: frameSize}
}

// SetActive toggles transmission.
func (p *AudioPipeline) SetActive(active bool) {
	p.active.Store(active)
}

// Active reports whether frames are being forwarded.
func (p *AudioPipeline) Active() bool {
	return p.active.Load()
}

// Start begins the capture loop. Calling Start twice is a no-op.
func (p *AudioPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop ends the capture loop and waits for it to exit. The track itself is
// owned by the Stream and is not stopped here.
func (p *AudioPipeline) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Stats returns the number of frames forwarded and discarded while muted.
func (p *AudioPipeline) Stats() (sent, muted uint64) {
	return p.sent.Load(), p.dropped.Load()
}

func (p *AudioPipeline) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	rate := p.track.SampleRate()
	readSize := p.frameSize
	if rate != audio.InputSampleRate {
		readSize = p.frameSize * rate / audio.InputSampleRate
	}
	buf := make([]float32, readSize)

	for {
		if err := p.track.Read(ctx, buf); err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrTrackStopped) {
				return
			}
			logger.WarnContext(ctx, "microphone read failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		if !p.active.Load() {
			p.dropped.Add(1)
			continue
		}

		samples, err := audio.Resample(buf, rate, audio.InputSampleRate)
		if err != nil {
			logger.WarnContext(ctx, "microphone resample failed", "error", err)
			continue
		}

		p.seq++
		p.sent.Add(1)
		p.sink(Frame{
			Kind:       KindAudio,
			Seq:        p.seq,
			Samples:    samples,
			CapturedAt: time.Now(),
		})
	}
}
