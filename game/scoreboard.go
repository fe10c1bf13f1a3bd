package game

import (
	"sync"

	"github.com/glosings0n/Vut-Elimu/toolcall"
)

// Tug-of-war constants.
const (
	PullStrength = 20
	RopeMax      = 100
	RopeMin      = -100
)

// Standing is a point-in-time view of the scoreboard.
type Standing struct {
	Level int
	// Rope runs from RopeMin (losing) to RopeMax (level won).
	Rope int
	// Score is the points earned at the current level.
	Score int
	// Points is the running total banked at each level-up.
	Points int
}

// Scoreboard keeps the rope and score for one player. It implements
// toolcall.ScoreSink and is safe for concurrent use.
type Scoreboard struct {
	// OnLevelUp is called with the new level after the rope reaches RopeMax.
	OnLevelUp func(level int)
	// OnChange is called after every score.
	OnChange func(s Standing)

	mu sync.Mutex
	s  Standing
}

var _ toolcall.ScoreSink = (*Scoreboard)(nil)

// NewScoreboard starts at the given level with the rope centred.
func NewScoreboard(level int) *Scoreboard {
	if level < 1 {
		level = 1
	}
	return &Scoreboard{s: Standing{Level: level}}
}

// Standing returns the current state.
func (b *Scoreboard) Standing() Standing {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.s
}

// OnScore applies one scored attempt.
func (b *Scoreboard) OnScore(ev toolcall.ScoreEvent) {
	b.mu.Lock()
	levelUp := 0
	if ev.Correct {
		b.s.Rope = min(b.s.Rope+PullStrength, RopeMax)
		b.s.Score += PullStrength
		if b.s.Rope >= RopeMax {
			b.s.Level++
			b.s.Points += b.s.Score
			b.s.Score = 0
			b.s.Rope = 0
			levelUp = b.s.Level
		}
	} else {
		b.s.Rope = max(b.s.Rope-PullStrength, RopeMin)
	}
	snap := b.s
	b.mu.Unlock()

	if levelUp > 0 && b.OnLevelUp != nil {
		b.OnLevelUp(levelUp)
	}
	if b.OnChange != nil {
		b.OnChange(snap)
	}
}
