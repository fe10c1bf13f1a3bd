package metrics

import (
	"sync"

	"github.com/glosings0n/Vut-Elimu/events"
)

// Status constants for metric labels.
const (
	statusScheduled = "scheduled"
	statusDropped   = "dropped"
)

// Listener records session events as Prometheus metrics. Register it with
// Bus.SubscribeAll.
type Listener struct {
	mu   sync.Mutex
	open map[string]bool
}

// NewListener creates a new Listener.
func NewListener() *Listener {
	return &Listener{open: make(map[string]bool)}
}

// Handle processes an event and records relevant metrics.
func (l *Listener) Handle(event *events.Event) {
	switch event.Type {
	case events.EventSessionOpened:
		l.handleOpened(event)
	case events.EventSessionClosed:
		l.handleClosed(event)
	case events.EventSessionFailed:
		if data, ok := event.Data.(events.SessionFailedData); ok {
			RecordSessionFailure(data.Reason)
		}
	case events.EventFrameSent:
		if data, ok := event.Data.(events.FrameSentData); ok {
			RecordFrameSent(data.Kind)
		}
	case events.EventAudioScheduled:
		RecordAudioChunk(statusScheduled)
	case events.EventAudioDropped:
		RecordAudioChunk(statusDropped)
	case events.EventToolCallHandled:
		if data, ok := event.Data.(events.ToolCallData); ok {
			RecordToolCall(data.Tool, data.Status)
		}
	case events.EventScoreRecorded:
		if data, ok := event.Data.(events.ScoreData); ok {
			RecordScore(data.Score.Correct)
		}
	default:
		// Ignore events that don't have metrics
	}
}

func (l *Listener) handleOpened(event *events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open[event.SessionID] {
		return
	}
	l.open[event.SessionID] = true
	RecordSessionOpen()
}

// handleClosed only counts sessions that were opened, so a session that
// failed during setup does not drive the gauge negative.
func (l *Listener) handleClosed(event *events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open[event.SessionID] {
		return
	}
	delete(l.open, event.SessionID)
	if data, ok := event.Data.(events.SessionClosedData); ok {
		RecordSessionClose(data.Duration.Seconds())
	}
}

// Listener returns an events.Listener function that can be registered with a Bus.
func (l *Listener) Listener() events.Listener {
	return l.Handle
}
