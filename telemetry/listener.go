package telemetry

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/glosings0n/Vut-Elimu/events"
)

// SessionSpanName is the name of the per-session root span.
const SessionSpanName = "vutelimu.session"

// Listener converts session events into a root span per session with span
// events for tool calls, scores, turns and state changes. Register OnEvent
// with Bus.SubscribeAll.
type Listener struct {
	tracer trace.Tracer
	parent context.Context //nolint:containedctx // parents every session span

	mu       sync.Mutex
	sessions map[string]trace.Span
}

// NewListener creates a listener. parent may carry a span to nest sessions
// under; nil means a fresh trace per session.
func NewListener(tracer trace.Tracer, parent context.Context) *Listener {
	if parent == nil {
		parent = context.Background()
	}
	return &Listener{
		tracer:   tracer,
		parent:   parent,
		sessions: make(map[string]trace.Span),
	}
}

// OnEvent handles a single session event.
func (l *Listener) OnEvent(evt *events.Event) {
	//nolint:exhaustive // Only handling span-producing events
	switch evt.Type {
	case events.EventSessionOpened:
		l.handleOpened(evt)
	case events.EventStateChanged:
		if data, ok := evt.Data.(events.StateChangedData); ok {
			l.addEvent(evt, "state_changed",
				attribute.String("state.from", data.From),
				attribute.String("state.to", data.To))
		}
	case events.EventToolCallHandled:
		if data, ok := evt.Data.(events.ToolCallData); ok {
			l.addEvent(evt, "tool_call",
				attribute.String("tool.name", data.Tool),
				attribute.String("tool.call_id", data.CallID),
				attribute.String("tool.status", data.Status))
		}
	case events.EventScoreRecorded:
		if data, ok := evt.Data.(events.ScoreData); ok {
			attrs := []attribute.KeyValue{attribute.Bool("score.correct", data.Score.Correct)}
			if data.Score.Feedback != "" {
				attrs = append(attrs, attribute.String("score.feedback", string(data.Score.Feedback)))
			}
			l.addEvent(evt, "score", attrs...)
		}
	case events.EventTurnCompleted:
		l.addEvent(evt, "turn_completed")
	case events.EventSessionFailed:
		l.handleFailed(evt)
	case events.EventSessionClosed:
		l.handleClosed(evt)
	}
}

// span returns the root span for the event's session, starting one if the
// session has not been seen yet.
func (l *Listener) span(evt *events.Event) trace.Span {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.sessions[evt.SessionID]; ok {
		return s
	}
	_, s := l.tracer.Start(l.parent, SessionSpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(evt.Timestamp),
		trace.WithAttributes(
			attribute.String("session.id", evt.SessionID),
			attribute.String("session.generation", strconv.FormatUint(evt.Generation, 10)),
			attribute.String("game.mode", evt.Mode),
		),
	)
	l.sessions[evt.SessionID] = s
	return s
}

func (l *Listener) addEvent(evt *events.Event, name string, attrs ...attribute.KeyValue) {
	l.span(evt).AddEvent(name, trace.WithTimestamp(evt.Timestamp), trace.WithAttributes(attrs...))
}

func (l *Listener) handleOpened(evt *events.Event) {
	s := l.span(evt)
	if data, ok := evt.Data.(events.SessionOpenedData); ok {
		s.SetAttributes(
			attribute.Bool("media.audio", data.Audio),
			attribute.Bool("media.video", data.Video),
		)
	}
	s.AddEvent("opened", trace.WithTimestamp(evt.Timestamp))
}

func (l *Listener) handleFailed(evt *events.Event) {
	data, ok := evt.Data.(events.SessionFailedData)
	if !ok {
		return
	}
	s := l.span(evt)
	msg := data.Reason
	if data.Error != nil {
		s.RecordError(data.Error, trace.WithTimestamp(evt.Timestamp))
		msg = data.Error.Error()
	}
	s.SetAttributes(attribute.String("failure.reason", data.Reason))
	s.SetStatus(codes.Error, msg)
}

func (l *Listener) handleClosed(evt *events.Event) {
	l.mu.Lock()
	s, ok := l.sessions[evt.SessionID]
	delete(l.sessions, evt.SessionID)
	l.mu.Unlock()
	if ok {
		s.End(trace.WithTimestamp(evt.Timestamp))
	}
}

// Open returns the number of sessions with an unfinished span.
func (l *Listener) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}
