package events

import (
	"time"

	"github.com/glosings0n/Vut-Elimu/toolcall"
)

// Emitter publishes events stamped with one session's identity. A nil
// Emitter or one without a bus discards everything.
type Emitter struct {
	bus        *Bus
	sessionID  string
	generation uint64
	mode       string
}

// NewEmitter creates an emitter for one session.
func NewEmitter(bus *Bus, sessionID string, generation uint64, mode string) *Emitter {
	return &Emitter{bus: bus, sessionID: sessionID, generation: generation, mode: mode}
}

func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Publish(&Event{
		Type:       eventType,
		Timestamp:  time.Now(),
		SessionID:  e.sessionID,
		Generation: e.generation,
		Mode:       e.mode,
		Data:       data,
	})
}

// StateChanged emits the session.state_changed event.
func (e *Emitter) StateChanged(from, to string) {
	e.emit(EventStateChanged, StateChangedData{From: from, To: to})
}

// SessionOpened emits the session.opened event.
func (e *Emitter) SessionOpened(audio, video bool) {
	e.emit(EventSessionOpened, SessionOpenedData{Audio: audio, Video: video})
}

// SessionClosed emits the session.closed event.
func (e *Emitter) SessionClosed(d time.Duration) {
	e.emit(EventSessionClosed, SessionClosedData{Duration: d})
}

// SessionFailed emits the session.failed event.
func (e *Emitter) SessionFailed(reason string, err error) {
	e.emit(EventSessionFailed, SessionFailedData{Reason: reason, Error: err})
}

// FrameSent emits the media.frame_sent event.
func (e *Emitter) FrameSent(kind string, bytes int) {
	e.emit(EventFrameSent, FrameSentData{Kind: kind, Bytes: bytes})
}

// AudioScheduled emits the audio.chunk_scheduled event.
func (e *Emitter) AudioScheduled(start, d time.Duration) {
	e.emit(EventAudioScheduled, AudioScheduledData{Start: start, Duration: d})
}

// AudioDropped emits the audio.chunk_dropped event.
func (e *Emitter) AudioDropped(err error) {
	e.emit(EventAudioDropped, AudioDroppedData{Error: err})
}

// ToolCallHandled emits the tool.call_handled event.
func (e *Emitter) ToolCallHandled(tool, callID, status string) {
	e.emit(EventToolCallHandled, ToolCallData{Tool: tool, CallID: callID, Status: status})
}

// ScoreRecorded emits the score.recorded event.
func (e *Emitter) ScoreRecorded(ev toolcall.ScoreEvent) {
	e.emit(EventScoreRecorded, ScoreData{Score: ev})
}

// Transcript emits the transcript.received event.
func (e *Emitter) Transcript(kind, text string) {
	e.emit(EventTranscript, TranscriptData{Kind: kind, Text: text})
}

// TurnCompleted emits the turn.completed event.
func (e *Emitter) TurnCompleted() {
	e.emit(EventTurnCompleted, TurnCompletedData{})
}
