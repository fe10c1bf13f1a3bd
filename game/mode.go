// Package game turns a game mode and its current content into the
// instruction, tool set and capture profile of a live session, and keeps
// the tug-of-war score.
package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/glosings0n/Vut-Elimu/capture"
	"github.com/glosings0n/Vut-Elimu/toolcall"
)

// Mode names a live game.
type Mode string

// Game modes.
const (
	BlindMaths    Mode = "blind-maths"
	BlindAfrica   Mode = "blind-africa"
	BlindUniverse Mode = "blind-universe"
	BlindLanguage Mode = "blind-language"
	Speak         Mode = "speak"
	Read          Mode = "read"
	Sign          Mode = "sign"
)

// ErrUnknownMode is returned for a mode outside the supported set.
var ErrUnknownMode = errors.New("unknown game mode")

var modes = map[Mode]bool{
	BlindMaths: true, BlindAfrica: true, BlindUniverse: true, BlindLanguage: true,
	Speak: true, Read: true, Sign: true,
}

// Modes lists every supported mode, sorted.
func Modes() []Mode {
	out := make([]Mode, 0, len(modes))
	for m := range modes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !modes[m] {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// Blind reports whether the mode is an audio-only quiz.
func (m Mode) Blind() bool {
	return strings.HasPrefix(string(m), "blind-")
}

// Content is what a session is about: the mode plus its current target.
type Content struct {
	Mode  Mode
	Level int
	// Word is the target word in speak mode.
	Word string
	// Text is the passage in read mode.
	Text string
}

// Profile is everything a session needs from the game layer.
type Profile struct {
	Mode        Mode
	Instruction string
	Tools       []toolcall.Kind
	Constraints capture.Constraints
	// PlayAudio is false when the user reads the model's replies instead.
	PlayAudio bool
}

// NewProfile builds the session profile for c.
func NewProfile(c Content) (Profile, error) {
	if !modes[c.Mode] {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownMode, c.Mode)
	}
	level := c.Level
	if level < 1 {
		level = 1
	}

	p := Profile{Mode: c.Mode, Instruction: instruction(c.Mode, level, c)}
	switch {
	case c.Mode.Blind():
		p.Tools = []toolcall.Kind{toolcall.ReportResult}
		p.Constraints = capture.Constraints{Audio: true}
		p.PlayAudio = true
	case c.Mode == Sign:
		p.Tools = []toolcall.Kind{toolcall.EvaluateAttempt}
		p.Constraints = capture.Constraints{Video: true}
	default:
		if c.Mode == Speak && c.Word == "" {
			return Profile{}, errors.New("speak mode needs a target word")
		}
		if c.Mode == Read && c.Text == "" {
			return Profile{}, errors.New("read mode needs a passage")
		}
		p.Tools = []toolcall.Kind{toolcall.EvaluateAttempt}
		p.Constraints = capture.Constraints{Audio: true}
		p.PlayAudio = true
	}
	return p, nil
}
