package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/glosings0n/Vut-Elimu/audio"
	"github.com/glosings0n/Vut-Elimu/live/livetest"
	"github.com/glosings0n/Vut-Elimu/toolcall"
)

// defaultCoachEvery is the number of realtime frames between scored
// attempts, about three seconds of microphone audio.
const defaultCoachEvery = 12

const coachToneDuration = 300 * time.Millisecond

// coach is a scripted model that greets the player, scores an attempt every
// few frames and alternates wrong and right answers.
type coach struct {
	every int
	tone  string

	mu       sync.Mutex
	sessions map[*livetest.Session]*coachTurn
}

type coachTurn struct {
	frames int
	calls  int
}

func newCoach(every int) *coach {
	if every < 1 {
		every = defaultCoachEvery
	}
	return &coach{
		every:    every,
		tone:     audio.EncodeBlob(audio.SineWave(440, audio.OutputSampleRate, coachToneDuration, 0.2)).Data,
		sessions: make(map[*livetest.Session]*coachTurn),
	}
}

func (c *coach) start() *livetest.Server {
	return livetest.NewServer(livetest.Options{
		Script:    c.greet,
		OnMessage: c.onMessage,
	})
}

func (c *coach) greet(s *livetest.Session) {
	c.forget()
	_ = s.OutputTranscript("Jambo! I am ready when you are.")
	_ = s.Audio(c.tone)
	_ = s.TurnComplete()
}

func (c *coach) onMessage(s *livetest.Session, msg livetest.Inbound) {
	switch {
	case msg.RealtimeInput != nil:
		if id, name, args, ok := c.nextCall(s); ok {
			_ = s.ToolCall(id, name, args)
		}
	case msg.ToolResponse != nil:
		for _, r := range msg.ToolResponse.FunctionResponses {
			_ = s.OutputTranscript(fmt.Sprintf("(%s) let's keep going.", r.Name))
		}
		_ = s.Audio(c.tone)
		_ = s.TurnComplete()
	}
}

// nextCall counts a frame and returns a tool call when one is due.
func (c *coach) nextCall(s *livetest.Session) (id, name string, args map[string]interface{}, ok bool) {
	names := s.ToolNames()
	if len(names) == 0 {
		return "", "", nil, false
	}

	c.mu.Lock()
	turn := c.sessions[s]
	if turn == nil {
		turn = &coachTurn{}
		c.sessions[s] = turn
	}
	turn.frames++
	if turn.frames%c.every != 0 {
		c.mu.Unlock()
		return "", "", nil, false
	}
	turn.calls++
	n := turn.calls
	c.mu.Unlock()

	correct := n%2 == 0
	name = names[0]
	id = fmt.Sprintf("coach-%d", n)
	switch name {
	case toolcall.EvaluateAttemptName:
		feedback, tip := toolcall.FeedbackPronunciation, "Say it slowly, one sound at a time."
		if correct {
			feedback, tip = toolcall.FeedbackSuccess, "Well done!"
		}
		args = map[string]interface{}{
			"isCorrect":    correct,
			"feedbackType": string(feedback),
			"specificTip":  tip,
		}
	default:
		args = map[string]interface{}{"isCorrect": correct, "userAnswer": fmt.Sprintf("answer %d", n)}
	}
	return id, name, args, true
}

// forget drops the per-session counters of finished sessions.
func (c *coach) forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.sessions {
		select {
		case <-s.Done():
			delete(c.sessions, s)
		default:
		}
	}
}
