// Package playback schedules decoded model speech for gapless playback on an
// output audio device owned by a single live session.
package playback

import (
	"sync"
	"time"
)

// Clock reports the output device's current playback position.
type Clock interface {
	Now() time.Duration
}

// Schedule is the "next available start time" cursor.
//
// Each chunk starts at max(now, cursor) and advances the cursor by its
// duration, so successive chunks never overlap and never leave a gap while
// audio is still queued.
type Schedule struct {
	mu     sync.Mutex
	cursor time.Duration
}

// Next returns the start time for a chunk of length d and advances the cursor.
func (s *Schedule) Next(now, d time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.cursor
	if now > start {
		start = now
	}
	s.cursor = start + d
	return start
}

// Cursor returns the end of the last scheduled chunk.
func (s *Schedule) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Reset moves the cursor back to zero so the next chunk starts at the clock.
func (s *Schedule) Reset() {
	s.mu.Lock()
	s.cursor = 0
	s.mu.Unlock()
}
