package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glosings0n/Vut-Elimu/audio"
	"github.com/glosings0n/Vut-Elimu/logger"
)

// OrderPolicy decides which order decoded chunks are scheduled in when
// decode latency varies.
type OrderPolicy int

const (
	// OrderCompletion schedules each chunk as soon as its decode finishes.
	OrderCompletion OrderPolicy = iota
	// OrderArrival holds decoded chunks until every earlier arrival has been
	// scheduled or dropped.
	OrderArrival
)

// String returns the config name of the policy.
func (p OrderPolicy) String() string {
	if p == OrderArrival {
		return "arrival"
	}
	return "completion"
}

// ParseOrderPolicy maps a config name to an OrderPolicy.
func ParseOrderPolicy(s string) (OrderPolicy, error) {
	switch s {
	case "", "completion":
		return OrderCompletion, nil
	case "arrival":
		return OrderArrival, nil
	default:
		return OrderCompletion, fmt.Errorf("unknown playback order %q", s)
	}
}

// DecodeFunc turns a base64 wire chunk into a playable buffer.
type DecodeFunc func(ctx context.Context, data string) (*audio.Buffer, error)

// DefaultDecode decodes 24 kHz PCM16.
func DefaultDecode(_ context.Context, data string) (*audio.Buffer, error) {
	return audio.DecodeBase64(data, audio.OutputSampleRate)
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithDecoder replaces the chunk decoder.
func WithDecoder(fn DecodeFunc) PlayerOption {
	return func(p *Player) { p.decode = fn }
}

// WithOrderPolicy selects completion or arrival ordering.
func WithOrderPolicy(policy OrderPolicy) PlayerOption {
	return func(p *Player) { p.policy = policy }
}

// WithCurrentCheck installs the "still current" predicate consulted before a
// decoded chunk is scheduled.
func WithCurrentCheck(fn func() bool) PlayerOption {
	return func(p *Player) { p.current = fn }
}

// WithSpeakingHandler receives true when output starts and false when the
// last queued buffer ends.
func WithSpeakingHandler(fn func(bool)) PlayerOption {
	return func(p *Player) { p.onSpeaking = fn }
}

// WithScheduledHandler is called for every chunk handed to the output.
func WithScheduledHandler(fn func(start, d time.Duration)) PlayerOption {
	return func(p *Player) { p.onScheduled = fn }
}

// WithDropHandler is called for every chunk that fails to decode or play.
func WithDropHandler(fn func(err error)) PlayerOption {
	return func(p *Player) { p.onDrop = fn }
}

// Player decodes model audio chunks and schedules them gaplessly on an Output.
type Player struct {
	out    Output
	sched  Schedule
	decode DecodeFunc
	policy OrderPolicy

	current     func() bool
	onSpeaking  func(bool)
	onScheduled func(start, d time.Duration)
	onDrop      func(err error)

	mu      sync.Mutex
	closed  bool
	epoch   uint64
	nextSeq uint64
	release uint64
	ready   map[uint64]*audio.Buffer

	speakMu sync.Mutex
	active  int

	wg sync.WaitGroup
}

// NewPlayer creates a player for out.
func NewPlayer(out Output, opts ...PlayerOption) *Player {
	p := &Player{
		out:    out,
		decode: DefaultDecode,
		ready:  make(map[uint64]*audio.Buffer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue decodes data asynchronously and schedules it for playback.
// It never blocks on decode. Failures are reported to the drop handler and
// playback continues with the next chunk.
func (p *Player) Enqueue(ctx context.Context, data string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	seq := p.nextSeq
	p.nextSeq++
	epoch := p.epoch
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		buf, err := p.decode(ctx, data)
		if err != nil {
			p.drop(ctx, err)
			buf = nil
		}
		p.complete(ctx, epoch, seq, buf)
	}()
}

// complete hands a finished decode to the ordering policy. A nil buf marks a
// dropped chunk so arrival ordering does not stall behind it.
func (p *Player) complete(ctx context.Context, epoch, seq uint64, buf *audio.Buffer) {
	if ctx.Err() != nil {
		buf = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || epoch != p.epoch {
		return
	}

	if p.policy == OrderCompletion {
		if buf != nil {
			p.scheduleLocked(ctx, buf)
		}
		return
	}

	p.ready[seq] = buf
	for {
		next, ok := p.ready[p.release]
		if !ok {
			return
		}
		delete(p.ready, p.release)
		p.release++
		if next != nil {
			p.scheduleLocked(ctx, next)
		}
	}
}

func (p *Player) scheduleLocked(ctx context.Context, buf *audio.Buffer) {
	if p.current != nil && !p.current() {
		logger.DebugContext(ctx, "skipping playback for stale session")
		return
	}
	if err := p.out.Resume(ctx); err != nil {
		p.drop(ctx, fmt.Errorf("resume output: %w", err))
		return
	}

	d := buf.Duration()
	start := p.sched.Next(p.out.Now(), d)
	if err := p.out.Play(buf, start, p.bufferStarted, p.bufferEnded); err != nil {
		p.drop(ctx, fmt.Errorf("play: %w", err))
		return
	}
	if p.onScheduled != nil {
		p.onScheduled(start, d)
	}
}

func (p *Player) drop(ctx context.Context, err error) {
	logger.WarnContext(ctx, "dropping audio chunk", "error", err)
	if p.onDrop != nil {
		p.onDrop(err)
	}
}

func (p *Player) bufferStarted() {
	p.speakMu.Lock()
	p.active++
	first := p.active == 1
	p.speakMu.Unlock()
	if first && p.onSpeaking != nil {
		p.onSpeaking(true)
	}
}

func (p *Player) bufferEnded() {
	p.speakMu.Lock()
	if p.active > 0 {
		p.active--
	}
	last := p.active == 0
	p.speakMu.Unlock()
	if last && p.onSpeaking != nil {
		p.onSpeaking(false)
	}
}

// Speaking reports whether a buffer is currently playing.
func (p *Player) Speaking() bool {
	p.speakMu.Lock()
	defer p.speakMu.Unlock()
	return p.active > 0
}

// Cursor returns the end of the last scheduled chunk.
func (p *Player) Cursor() time.Duration {
	return p.sched.Cursor()
}

// Flush discards queued audio after the model is interrupted. Decodes still
// in flight are ignored when they finish.
func (p *Player) Flush() {
	p.mu.Lock()
	p.epoch++
	p.release = p.nextSeq
	p.ready = make(map[uint64]*audio.Buffer)
	p.sched.Reset()
	p.mu.Unlock()

	if s, ok := p.out.(Stopper); ok {
		s.StopAll()
	}
}

// Wait blocks until every in-flight decode has finished.
func (p *Player) Wait() {
	p.wg.Wait()
}

// Close stops scheduling. It does not close the Output, which belongs to the
// session handle.
func (p *Player) Close() {
	p.mu.Lock()
	p.closed = true
	p.ready = make(map[uint64]*audio.Buffer)
	p.mu.Unlock()
}
