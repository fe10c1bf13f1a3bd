//go:build portaudio

package playback

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/glosings0n/Vut-Elimu/audio"
	"github.com/glosings0n/Vut-Elimu/logger"
)

// OutputFramesPerBuffer is 40ms of audio at 24kHz
const OutputFramesPerBuffer = 960

type queuedBuffer struct {
	startSample int64
	samples     []float32
	onStart     func()
	onEnd       func()
	started     bool
}

// PortAudioOutput plays scheduled buffers on the default output device.
// Device time is the number of samples written so far; gaps between
// scheduled buffers are filled with silence.
type PortAudioOutput struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	out     []float32
	queue   []*queuedBuffer
	written int64
	running bool
	closed  bool
	done    chan struct{}
}

// NewPortAudioOutput opens the default output device at 24kHz mono.
// The caller must have called portaudio.Initialize.
func NewPortAudioOutput() (*PortAudioOutput, error) {
	out := make([]float32, OutputFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(audio.OutputSampleRate), OutputFramesPerBuffer, out)
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	return &PortAudioOutput{stream: stream, out: out, done: make(chan struct{})}, nil
}

// PortAudioOutputFactory opens a new device stream per session.
func PortAudioOutputFactory() OutputFactory {
	return func(_ context.Context) (Output, error) {
		return NewPortAudioOutput()
	}
}

// Now implements Clock.
func (o *PortAudioOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return time.Duration(o.written) * time.Second / audio.OutputSampleRate
}

// Resume implements Output. The stream starts on first use.
func (o *PortAudioOutput) Resume(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOutputClosed
	}
	if o.running {
		return nil
	}
	if err := o.stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	o.running = true
	go o.playbackLoop()
	return nil
}

// Play implements Output.
func (o *PortAudioOutput) Play(buf *audio.Buffer, at time.Duration, onStart, onEnd func()) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOutputClosed
	}
	o.queue = append(o.queue, &queuedBuffer{
		startSample: int64(at * audio.OutputSampleRate / time.Second),
		samples:     buf.Samples,
		onStart:     onStart,
		onEnd:       onEnd,
	})
	sort.SliceStable(o.queue, func(i, j int) bool {
		return o.queue[i].startSample < o.queue[j].startSample
	})
	return nil
}

// StopAll implements Stopper.
func (o *PortAudioOutput) StopAll() {
	o.mu.Lock()
	var fire []func()
	for _, q := range o.queue {
		if q.started && q.onEnd != nil {
			fire = append(fire, q.onEnd)
		}
	}
	o.queue = nil
	o.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

func (o *PortAudioOutput) playbackLoop() {
	defer close(o.done)
	for {
		fire := o.fillBlock()
		for _, f := range fire {
			f()
		}

		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return
		}
		stream := o.stream
		o.mu.Unlock()

		if err := stream.Write(); err != nil {
			logger.Warn("audio output write failed", "error", err)
		}
	}
}

// fillBlock renders the next device block from the queue and returns the
// callbacks whose buffers started or ended inside it.
func (o *PortAudioOutput) fillBlock() []func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	var starts, ends []func()
	for i := range o.out {
		o.out[i] = 0
	}
	blockStart := o.written
	blockEnd := blockStart + int64(len(o.out))

	kept := o.queue[:0]
	for _, q := range o.queue {
		qEnd := q.startSample + int64(len(q.samples))
		if q.startSample >= blockEnd {
			kept = append(kept, q)
			continue
		}
		if !q.started {
			q.started = true
			if q.onStart != nil {
				starts = append(starts, q.onStart)
			}
		}
		for pos := max(q.startSample, blockStart); pos < min(qEnd, blockEnd); pos++ {
			o.out[pos-blockStart] = q.samples[pos-q.startSample]
		}
		if qEnd <= blockEnd {
			if q.onEnd != nil {
				ends = append(ends, q.onEnd)
			}
			continue
		}
		kept = append(kept, q)
	}
	o.queue = kept
	o.written = blockEnd
	return append(starts, ends...)
}

// Close implements Output.
func (o *PortAudioOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.queue = nil
	running := o.running
	o.mu.Unlock()

	if running {
		<-o.done
		_ = o.stream.Stop()
	}
	return o.stream.Close()
}
