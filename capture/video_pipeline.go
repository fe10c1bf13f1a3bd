package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/glosings0n/Vut-Elimu/logger"
)

// DefaultVideoInterval is the snapshot period (2 fps).
const DefaultVideoInterval = 500 * time.Millisecond

// VideoConfig tunes snapshot capture.
type VideoConfig struct {
	Interval time.Duration
	Scale    float64
	Quality  int
}

func (c *VideoConfig) defaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultVideoInterval
	}
	if c.Scale <= 0 {
		c.Scale = DefaultScale
	}
	if c.Quality <= 0 {
		c.Quality = DefaultJPEGQuality
	}
}

// VideoPipeline snapshots a camera track at a fixed interval and forwards
// downscaled JPEG frames while video is active.
//
// The active flag is read on every tick, so toggling video takes effect
// without restarting the session.
type VideoPipeline struct {
	track VideoTrack
	sink  FrameSink
	cfg   VideoConfig

	active atomic.Bool
	seq    uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewVideoPipeline creates a muted video pipeline.
func NewVideoPipeline(track VideoTrack, cfg VideoConfig, sink FrameSink) *VideoPipeline {
	cfg.defaults()
	return &VideoPipeline{track: track, sink: sink, cfg: cfg}
}

// SetActive toggles transmission.
func (p *VideoPipeline) SetActive(active bool) {
	p.active.Store(active)
}

// Active reports whether snapshots are being forwarded.
func (p *VideoPipeline) Active() bool {
	return p.active.Load()
}

// Start begins the snapshot loop. Calling Start twice is a no-op.
func (p *VideoPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop ends the snapshot loop and waits for it to exit.
func (p *VideoPipeline) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *VideoPipeline) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	limiter := rate.NewLimiter(rate.Every(p.cfg.Interval), 1)
	// The first snapshot waits a full interval, giving the camera time to warm up
	limiter.ReserveN(time.Now(), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if !p.active.Load() {
			continue
		}

		img, err := p.track.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrTrackStopped) {
				return
			}
			logger.WarnContext(ctx, "camera snapshot failed", "error", err)
			continue
		}

		data, err := EncodeSnapshot(img, p.cfg.Scale, p.cfg.Quality)
		if err != nil {
			logger.WarnContext(ctx, "camera snapshot dropped", "error", err)
			continue
		}

		p.seq++
		p.sink(Frame{
			Kind:       KindVideo,
			Seq:        p.seq,
			JPEG:       data,
			CapturedAt: time.Now(),
		})
	}
}
