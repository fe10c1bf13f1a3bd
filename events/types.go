package events

import (
	"time"

	"github.com/glosings0n/Vut-Elimu/toolcall"
)

// EventType identifies the type of event emitted by a session.
type EventType string

const (
	// EventStateChanged marks a live connection state change.
	EventStateChanged EventType = "session.state_changed"
	// EventSessionOpened marks a session that finished connecting.
	EventSessionOpened EventType = "session.opened"
	// EventSessionClosed marks a session teardown.
	EventSessionClosed EventType = "session.closed"
	// EventSessionFailed marks a media or connection failure.
	EventSessionFailed EventType = "session.failed"

	// EventFrameSent marks a captured frame written to the connection.
	EventFrameSent EventType = "media.frame_sent"

	// EventAudioScheduled marks a model audio chunk scheduled for playback.
	EventAudioScheduled EventType = "audio.chunk_scheduled"
	// EventAudioDropped marks a model audio chunk that could not be played.
	EventAudioDropped EventType = "audio.chunk_dropped"

	// EventToolCallHandled marks an acknowledged tool call.
	EventToolCallHandled EventType = "tool.call_handled"
	// EventScoreRecorded marks a scored attempt.
	EventScoreRecorded EventType = "score.recorded"

	// EventTranscript marks a transcript fragment.
	EventTranscript EventType = "transcript.received"
	// EventTurnCompleted marks the end of a model turn.
	EventTurnCompleted EventType = "turn.completed"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event is a session event delivered to listeners.
type Event struct {
	Type       EventType
	Timestamp  time.Time
	SessionID  string
	Generation uint64
	Mode       string
	Data       EventData
}

type baseEventData struct{}

func (baseEventData) eventData() {}

// StateChangedData contains data for state change events.
type StateChangedData struct {
	baseEventData
	From string
	To   string
}

// SessionOpenedData contains data for session opened events.
type SessionOpenedData struct {
	baseEventData
	Audio bool
	Video bool
}

// SessionClosedData contains data for session closed events.
type SessionClosedData struct {
	baseEventData
	Duration time.Duration
}

// SessionFailedData contains data for session failure events.
type SessionFailedData struct {
	baseEventData
	// Reason is a short label such as media_denied, dial, setup or read.
	Reason string
	Error  error
}

// FrameSentData contains data for frame sent events.
type FrameSentData struct {
	baseEventData
	Kind  string
	Bytes int
}

// AudioScheduledData contains data for scheduled audio chunks.
type AudioScheduledData struct {
	baseEventData
	Start    time.Duration
	Duration time.Duration
}

// AudioDroppedData contains data for dropped audio chunks.
type AudioDroppedData struct {
	baseEventData
	Error error
}

// ToolCallData contains data for handled tool calls.
type ToolCallData struct {
	baseEventData
	Tool   string
	CallID string
	Status string
}

// ScoreData contains data for score events.
type ScoreData struct {
	baseEventData
	Score toolcall.ScoreEvent
}

// TranscriptData contains data for transcript events.
type TranscriptData struct {
	baseEventData
	Kind string
	Text string
}

// TurnCompletedData contains data for turn completed events.
type TurnCompletedData struct {
	baseEventData
}
