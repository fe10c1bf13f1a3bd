package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/glosings0n/Vut-Elimu/game"
	"github.com/glosings0n/Vut-Elimu/live"
)

// Console palette.
const (
	colorPrimary   = "#7C3AED"
	colorSuccess   = "#10B981"
	colorError     = "#EF4444"
	colorWarning   = "#F59E0B"
	colorLightGray = "#9CA3AF"
	colorSky       = "#93C5FD"
)

const ropeWidth = 20

// console prints session activity. It implements live.TranscriptSink and is
// safe for concurrent use.
type console struct {
	mu sync.Mutex
	w  io.Writer

	title   lipgloss.Style
	model   lipgloss.Style
	player  lipgloss.Style
	good    lipgloss.Style
	bad     lipgloss.Style
	warn    lipgloss.Style
	dim     lipgloss.Style
	speakOn bool
}

var _ live.TranscriptSink = (*console)(nil)

func newConsole(w io.Writer) *console {
	r := lipgloss.NewRenderer(w)
	return &console{
		w:      w,
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorPrimary)),
		model:  r.NewStyle().Foreground(lipgloss.Color(colorSky)),
		player: r.NewStyle().Foreground(lipgloss.Color(colorLightGray)).Italic(true),
		good:   r.NewStyle().Foreground(lipgloss.Color(colorSuccess)).Bold(true),
		bad:    r.NewStyle().Foreground(lipgloss.Color(colorError)).Bold(true),
		warn:   r.NewStyle().Foreground(lipgloss.Color(colorWarning)),
		dim:    r.NewStyle().Foreground(lipgloss.Color(colorLightGray)),
	}
}

func (c *console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, s)
}

func (c *console) notice(format string, args ...interface{}) {
	c.println(c.dim.Render(fmt.Sprintf(format, args...)))
}

func (c *console) opened(content game.Content) {
	line := fmt.Sprintf("%s game, level %d", content.Mode, content.Level)
	switch content.Mode {
	case game.Speak:
		line += fmt.Sprintf(": say %q", content.Word)
	case game.Read:
		line += ": read aloud"
	}
	c.println(c.title.Render(line))
	if content.Mode == game.Read {
		c.println(c.dim.Render(content.Text))
	}
	c.println(c.dim.Render("keys: m mic, v camera, n next, r retry, q quit"))
}

// OnTranscript implements live.TranscriptSink.
func (c *console) OnTranscript(kind live.TranscriptKind, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if kind == live.TranscriptOutput {
		c.println(c.model.Render("coach: " + text))
		return
	}
	c.println(c.player.Render("you: " + text))
}

func (c *console) speaking(on bool) {
	c.mu.Lock()
	changed := c.speakOn != on
	c.speakOn = on
	c.mu.Unlock()
	if changed && on {
		c.println(c.dim.Render("..."))
	}
}

func (c *console) standing(s game.Standing) {
	c.println(fmt.Sprintf("%s level %d  score %d  points %d", rope(s.Rope), s.Level, s.Score, s.Points))
}

func (c *console) levelUp(level int) {
	c.println(c.good.Render(fmt.Sprintf("Level up! Now on level %d", level)))
}

func (c *console) abort(err error) {
	c.println(c.bad.Render("session aborted: " + err.Error()))
}

func (c *console) connectionLost(err *live.ConnectionError) {
	c.println(c.warn.Render("connection lost: " + err.Error() + " (press r to retry)"))
}

func (c *console) toggled(what string, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	c.println(c.dim.Render(what + " " + state))
}

// rope draws the tug-of-war bar with the marker at pos.
func rope(pos int) string {
	span := game.RopeMax - game.RopeMin
	at := (pos - game.RopeMin) * ropeWidth / span
	at = min(max(at, 0), ropeWidth-1)
	return "[" + strings.Repeat("-", at) + "|" + strings.Repeat("-", ropeWidth-1-at) + "]"
}
