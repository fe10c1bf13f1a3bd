package game

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glosings0n/Vut-Elimu/capture"
	"github.com/glosings0n/Vut-Elimu/toolcall"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Speak ")
	require.NoError(t, err)
	assert.Equal(t, Speak, m)

	_, err = ParseMode("write")
	assert.ErrorIs(t, err, ErrUnknownMode)

	assert.Len(t, Modes(), 7)
	assert.True(t, BlindMaths.Blind())
	assert.False(t, Sign.Blind())
}

func TestNewProfile(t *testing.T) {
	tests := []struct {
		name        string
		content     Content
		tool        toolcall.Kind
		constraints capture.Constraints
		playAudio   bool
		contains    string
	}{
		{"maths", Content{Mode: BlindMaths, Level: 3}, toolcall.ReportResult, capture.Constraints{Audio: true}, true, "Mental Math game for a blind child (Level 3)"},
		{"africa", Content{Mode: BlindAfrica, Level: 1}, toolcall.ReportResult, capture.Constraints{Audio: true}, true, "Trivia Game about Africa"},
		{"universe", Content{Mode: BlindUniverse}, toolcall.ReportResult, capture.Constraints{Audio: true}, true, "Trivia Game about Space for a blind child (Level 1)"},
		{"language", Content{Mode: BlindLanguage, Level: 2}, toolcall.ReportResult, capture.Constraints{Audio: true}, true, "Language Tutor for a blind child (Level 2)"},
		{"speak", Content{Mode: Speak, Word: "Victory"}, toolcall.EvaluateAttempt, capture.Constraints{Audio: true}, true, `The target word is "Victory"`},
		{"read", Content{Mode: Read, Text: DefaultReadingText}, toolcall.EvaluateAttempt, capture.Constraints{Audio: true}, true, `reading this text: "The sun shines`},
		{"sign", Content{Mode: Sign}, toolcall.EvaluateAttempt, capture.Constraints{Video: true}, false, "partner for a Deaf user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProfile(tt.content)
			require.NoError(t, err)
			assert.Equal(t, []toolcall.Kind{tt.tool}, p.Tools)
			assert.Equal(t, tt.constraints, p.Constraints)
			assert.Equal(t, tt.playAudio, p.PlayAudio)
			assert.Contains(t, p.Instruction, tt.contains)
		})
	}
}

func TestNewProfile_Errors(t *testing.T) {
	_, err := NewProfile(Content{Mode: "chess"})
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = NewProfile(Content{Mode: Speak})
	assert.Error(t, err)

	_, err = NewProfile(Content{Mode: Read})
	assert.Error(t, err)
}

func TestNextWord_NeverRepeats(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	current := Words[0]
	for i := 0; i < 200; i++ {
		next := NextWord(r, current)
		assert.NotEqual(t, current, next)
		assert.Contains(t, Words, next)
		current = next
	}
}

func TestAdvance(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))

	next, ok := Advance(r, Content{Mode: Speak, Word: "School"})
	assert.True(t, ok)
	assert.NotEqual(t, "School", next.Word)

	_, ok = Advance(r, Content{Mode: Read, Text: "x"})
	assert.True(t, ok)

	_, ok = Advance(r, Content{Mode: BlindMaths})
	assert.False(t, ok)
	_, ok = Advance(r, Content{Mode: Sign})
	assert.False(t, ok)
}

func TestScoreboard(t *testing.T) {
	b := NewScoreboard(1)
	var levels []int
	var changes int
	b.OnLevelUp = func(level int) { levels = append(levels, level) }
	b.OnChange = func(Standing) { changes++ }

	correct := toolcall.ScoreEvent{Correct: true}
	wrong := toolcall.ScoreEvent{Correct: false}

	b.OnScore(correct)
	b.OnScore(correct)
	assert.Equal(t, Standing{Level: 1, Rope: 40, Score: 40}, b.Standing())

	b.OnScore(wrong)
	assert.Equal(t, Standing{Level: 1, Rope: 20, Score: 40}, b.Standing())

	for i := 0; i < 4; i++ {
		b.OnScore(correct)
	}
	assert.Equal(t, []int{2}, levels)
	assert.Equal(t, Standing{Level: 2, Rope: 0, Score: 0, Points: 120}, b.Standing())
	assert.Equal(t, 7, changes)
}

func TestScoreboard_RopeFloor(t *testing.T) {
	b := NewScoreboard(0)
	for i := 0; i < 8; i++ {
		b.OnScore(toolcall.ScoreEvent{})
	}
	assert.Equal(t, Standing{Level: 1, Rope: RopeMin}, b.Standing())
}
