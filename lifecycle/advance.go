package lifecycle

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/glosings0n/Vut-Elimu/game"
	"github.com/glosings0n/Vut-Elimu/logger"
)

// Advancer decides what follows a correctly answered content.
type Advancer interface {
	Advance(c game.Content) (next game.Content, ok bool)
}

// AdvancerFunc adapts a function to Advancer.
type AdvancerFunc func(c game.Content) (game.Content, bool)

// Advance implements Advancer.
func (f AdvancerFunc) Advance(c game.Content) (game.Content, bool) { return f(c) }

// RandomAdvancer advances with game.Advance using its own random source.
type RandomAdvancer struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandomAdvancer creates an advancer seeded from seed.
func NewRandomAdvancer(seed uint64) *RandomAdvancer {
	return &RandomAdvancer{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Advance implements Advancer.
func (a *RandomAdvancer) Advance(c game.Content) (game.Content, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return game.Advance(a.r, c)
}

// scheduleAdvance restarts the session with the next content after the
// advance delay, unless the session has moved on by then.
func (m *Manager) scheduleAdvance(gen uint64, c game.Content) {
	if m.cfg.Advancer == nil {
		return
	}
	next, ok := m.cfg.Advancer.Advance(c)
	if !ok {
		return
	}

	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.cfg.AdvanceDelay, func() {
		if !m.current(gen) {
			return
		}
		ctx := logger.WithGeneration(context.Background(), gen)
		logger.InfoContext(ctx, "advancing to next content", "mode", string(next.Mode))
		if err := m.Restart(ctx, next); err != nil {
			logger.ErrorContext(ctx, "failed to advance session", "error", err)
		}
	})
}

func (m *Manager) cancelAdvance() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
