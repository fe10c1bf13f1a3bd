package game

import "math/rand/v2"

// Words are the speak-mode targets.
var Words = []string{
	"Challenge", "Beautiful", "Together", "School", "Education",
	"Friendship", "Victory", "Learn", "Future", "Knowledge",
	"Africa", "Science", "History", "Family", "Respect",
}

// DefaultReadingText is the passage used when none is supplied.
const DefaultReadingText = "The sun shines bright over the big mountain. Lions sleep in the grass."

// NextWord picks a random word different from current.
func NextWord(r *rand.Rand, current string) string {
	if len(Words) == 1 {
		return Words[0]
	}
	for {
		w := Words[r.IntN(len(Words))]
		if w != current {
			return w
		}
	}
}

// Advance returns the content that follows c after a correct answer.
// Quiz modes are driven by the model itself and do not advance.
func Advance(r *rand.Rand, c Content) (Content, bool) {
	switch c.Mode {
	case Speak:
		c.Word = NextWord(r, c.Word)
		return c, true
	case Read:
		return c, true
	default:
		return c, false
	}
}
