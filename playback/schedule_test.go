package playback

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedule_Next(t *testing.T) {
	var s Schedule

	// Idle output: starts at the clock
	assert.Equal(t, 5*time.Second, s.Next(5*time.Second, time.Second))
	assert.Equal(t, 6*time.Second, s.Cursor())

	// Burst: queued behind the cursor
	assert.Equal(t, 6*time.Second, s.Next(5*time.Second+10*time.Millisecond, time.Second))
	assert.Equal(t, 7*time.Second, s.Cursor())

	// Late chunk after the queue drained: starts at the clock, no backfill
	assert.Equal(t, 9*time.Second, s.Next(9*time.Second, 500*time.Millisecond))
	assert.Equal(t, 9500*time.Millisecond, s.Cursor())

	s.Reset()
	assert.Zero(t, s.Cursor())
}

func TestSchedule_NeverOverlaps(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		var s Schedule
		now := time.Duration(0)
		prevStart, prevEnd := time.Duration(-1), time.Duration(0)

		for i := 0; i < 200; i++ {
			now += time.Duration(r.Intn(400)) * time.Millisecond
			d := time.Duration(1+r.Intn(300)) * time.Millisecond

			start := s.Next(now, d)

			assert.GreaterOrEqual(t, start, now, "start before clock")
			assert.GreaterOrEqual(t, start, prevStart, "start times must be non-decreasing")
			assert.GreaterOrEqual(t, start, prevEnd, "chunk overlaps its predecessor")
			if now <= prevEnd {
				assert.Equal(t, prevEnd, start, "queued chunk must start exactly at the cursor")
			}
			prevStart, prevEnd = start, start+d
		}
	}
}
