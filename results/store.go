// Package results hands scored attempts off to storage so they outlive the
// live session. Leaderboards and profiles read them from there.
package results

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/glosings0n/Vut-Elimu/toolcall"
)

// ErrInvalidID is returned when a score has no session id.
var ErrInvalidID = errors.New("invalid session id")

// Store persists score events per session.
type Store interface {
	Record(ctx context.Context, ev toolcall.ScoreEvent) error
	List(ctx context.Context, sessionID string) ([]toolcall.ScoreEvent, error)
}

// record is the stored JSON form of a score event.
type record struct {
	SessionID  string    `json:"session_id"`
	Tool       string    `json:"tool"`
	CallID     string    `json:"call_id,omitempty"`
	Correct    bool      `json:"correct"`
	Feedback   string    `json:"feedback,omitempty"`
	Tip        string    `json:"tip,omitempty"`
	UserAnswer string    `json:"user_answer,omitempty"`
	At         time.Time `json:"at"`
}

func toRecord(ev toolcall.ScoreEvent) record {
	return record{
		SessionID:  ev.SessionID,
		Tool:       ev.Tool,
		CallID:     ev.CallID,
		Correct:    ev.Correct,
		Feedback:   string(ev.Feedback),
		Tip:        ev.Tip,
		UserAnswer: ev.UserAnswer,
		At:         ev.At,
	}
}

func (r record) event() toolcall.ScoreEvent {
	return toolcall.ScoreEvent{
		SessionID:  r.SessionID,
		Tool:       r.Tool,
		CallID:     r.CallID,
		Correct:    r.Correct,
		Feedback:   toolcall.Feedback(r.Feedback),
		Tip:        r.Tip,
		UserAnswer: r.UserAnswer,
		At:         r.At,
	}
}

// MemoryStore keeps results in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]toolcall.ScoreEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]toolcall.ScoreEvent)}
}

// Record implements Store.
func (s *MemoryStore) Record(_ context.Context, ev toolcall.ScoreEvent) error {
	if ev.SessionID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[ev.SessionID] = append(s.sessions[ev.SessionID], ev)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, sessionID string) ([]toolcall.ScoreEvent, error) {
	if sessionID == "" {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]toolcall.ScoreEvent(nil), s.sessions[sessionID]...), nil
}
