package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/glosings0n/Vut-Elimu/audio"
)

// ErrOutputClosed is returned when playing on a closed output.
var ErrOutputClosed = errors.New("audio output closed")

// Output is an output audio context. A session owns exactly one and closes it
// on teardown; it is never shared between sessions.
type Output interface {
	Clock

	// Resume starts a suspended device. Safe to call repeatedly.
	Resume(ctx context.Context) error

	// Play schedules buf to start at the given device time. onStart and onEnd
	// may be nil and are never invoked synchronously from Play.
	Play(buf *audio.Buffer, at time.Duration, onStart, onEnd func()) error

	// Close releases the device. Pending buffers are discarded.
	Close() error
}

// Stopper is implemented by outputs that can drop queued audio without
// closing, used when the model is interrupted.
type Stopper interface {
	StopAll()
}

// OutputFactory opens a fresh output for a new session.
type OutputFactory func(ctx context.Context) (Output, error)

// ManualClock is a Clock advanced explicitly, for tests and simulations.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

// Now implements Clock.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Duration) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// WallClock measures time elapsed since it was created.
type WallClock struct {
	start time.Time
}

// NewWallClock returns a clock starting at zero now.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Now implements Clock.
func (c *WallClock) Now() time.Duration {
	return time.Since(c.start)
}

// Scheduled records one buffer handed to a VirtualOutput.
type Scheduled struct {
	Start    time.Duration
	Duration time.Duration
	Samples  int
}

// End returns when the buffer finishes playing.
func (s Scheduled) End() time.Duration { return s.Start + s.Duration }

type pendingPlay struct {
	Scheduled
	onStart, onEnd func()
	started        bool
}

// VirtualOutput is an Output that plays nothing but keeps an exact timeline.
// Callbacks fire from Poll once the clock reaches a buffer's start and end.
type VirtualOutput struct {
	clock Clock

	mu        sync.Mutex
	pending   []*pendingPlay
	timeline  []Scheduled
	suspended bool
	closed    bool
	stopCh    chan struct{}
}

// NewVirtualOutput creates a running virtual output on clock.
func NewVirtualOutput(clock Clock) *VirtualOutput {
	return &VirtualOutput{clock: clock, stopCh: make(chan struct{})}
}

// NewSuspendedVirtualOutput creates a virtual output that must be resumed
// before it accepts buffers, like a browser audio context.
func NewSuspendedVirtualOutput(clock Clock) *VirtualOutput {
	o := NewVirtualOutput(clock)
	o.suspended = true
	return o
}

// Now implements Clock.
func (o *VirtualOutput) Now() time.Duration { return o.clock.Now() }

// Resume implements Output.
func (o *VirtualOutput) Resume(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOutputClosed
	}
	o.suspended = false
	return nil
}

// Suspended reports whether Resume is still required.
func (o *VirtualOutput) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suspended
}

// Play implements Output.
func (o *VirtualOutput) Play(buf *audio.Buffer, at time.Duration, onStart, onEnd func()) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOutputClosed
	}
	if o.suspended {
		return errors.New("audio output suspended")
	}
	s := Scheduled{Start: at, Duration: buf.Duration(), Samples: len(buf.Samples)}
	o.timeline = append(o.timeline, s)
	o.pending = append(o.pending, &pendingPlay{Scheduled: s, onStart: onStart, onEnd: onEnd})
	return nil
}

// Poll fires the callbacks of every buffer whose start or end time has passed.
// Start callbacks fire before end callbacks so back-to-back buffers never
// report a gap.
func (o *VirtualOutput) Poll() {
	now := o.clock.Now()
	var starts, ends []func()

	o.mu.Lock()
	kept := o.pending[:0]
	for _, p := range o.pending {
		if !p.started && now >= p.Start {
			p.started = true
			if p.onStart != nil {
				starts = append(starts, p.onStart)
			}
		}
		if p.started && now >= p.End() {
			if p.onEnd != nil {
				ends = append(ends, p.onEnd)
			}
			continue
		}
		kept = append(kept, p)
	}
	o.pending = kept
	o.mu.Unlock()

	for _, f := range append(starts, ends...) {
		f()
	}
}

// StartPolling polls every interval until the output is closed.
func (o *VirtualOutput) StartPolling(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-o.stopCh:
				return
			case <-ticker.C:
				o.Poll()
			}
		}
	}()
}

// Timeline returns every buffer scheduled so far in scheduling order.
func (o *VirtualOutput) Timeline() []Scheduled {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Scheduled, len(o.timeline))
	copy(out, o.timeline)
	return out
}

// StopAll implements Stopper. Buffers already started get their end callback.
func (o *VirtualOutput) StopAll() {
	var fire []func()
	o.mu.Lock()
	for _, p := range o.pending {
		if p.started && p.onEnd != nil {
			fire = append(fire, p.onEnd)
		}
	}
	o.pending = nil
	o.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

// Closed reports whether Close has been called.
func (o *VirtualOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Close implements Output. It is idempotent.
func (o *VirtualOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	o.pending = nil
	close(o.stopCh)
	return nil
}

// VirtualOutputFactory returns a factory producing wall-clock virtual outputs
// that poll themselves.
func VirtualOutputFactory(pollInterval time.Duration) OutputFactory {
	return func(_ context.Context) (Output, error) {
		o := NewVirtualOutput(NewWallClock())
		o.StartPolling(pollInterval)
		return o, nil
	}
}
