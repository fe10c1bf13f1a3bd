package results

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glosings0n/Vut-Elimu/logger"
	"github.com/glosings0n/Vut-Elimu/toolcall"
)

// Recorder defaults.
const (
	DefaultWriteTimeout = 2 * time.Second
	DefaultQueueSize    = 64
)

// Recorder is a ScoreSink that writes scores to a Store on its own goroutine.
// OnScore blocks while the queue is full, so a slow store delays scoring
// instead of losing scores. Scores arriving after Close are counted as
// dropped.
type Recorder struct {
	store   Store
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan toolcall.ScoreEvent
	wg     sync.WaitGroup

	written atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

var _ toolcall.ScoreSink = (*Recorder)(nil)

// NewRecorder creates a recorder and starts its writer. A zero timeout uses
// DefaultWriteTimeout.
func NewRecorder(store Store, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	r := &Recorder{
		store:   store,
		timeout: timeout,
		queue:   make(chan toolcall.ScoreEvent, DefaultQueueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// OnScore implements toolcall.ScoreSink.
func (r *Recorder) OnScore(ev toolcall.ScoreEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		logger.Warn("score recorder closed, dropping score", "session_id", ev.SessionID)
		return
	}
	r.queue <- ev
}

// Close stops accepting scores and waits until queued ones are written.
// It is idempotent.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for ev := range r.queue {
		r.write(ev)
	}
}

func (r *Recorder) write(ev toolcall.ScoreEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	ctx = logger.WithSessionID(ctx, ev.SessionID)

	if err := r.store.Record(ctx, ev); err != nil {
		r.failed.Add(1)
		logger.WarnContext(ctx, "failed to store score", "error", err)
		return
	}
	r.written.Add(1)
}

// Stats returns the number of written, failed and dropped scores.
func (r *Recorder) Stats() (written, failed, dropped uint64) {
	return r.written.Load(), r.failed.Load(), r.dropped.Load()
}
