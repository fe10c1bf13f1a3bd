package toolcall

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/glosings0n/Vut-Elimu/live"
	"github.com/glosings0n/Vut-Elimu/logger"
)

// ErrUnrecognizedTool is returned for calls outside the dispatcher's tool set.
var ErrUnrecognizedTool = errors.New("unrecognized tool")

// ValidationError reports tool arguments that do not match the schema.
type ValidationError struct {
	Tool   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Detail)
}

// ScoreEvent is the game-facing result of a scoring tool call.
type ScoreEvent struct {
	Correct    bool
	Feedback   Feedback
	Tip        string
	UserAnswer string
	Tool       string
	CallID     string
	SessionID  string
	At         time.Time
}

// ScoreSink receives score events. Implementations must not block for long;
// they run on the receive goroutine.
type ScoreSink interface {
	OnScore(ev ScoreEvent)
}

// ScoreSinkFunc adapts a function to ScoreSink.
type ScoreSinkFunc func(ev ScoreEvent)

// OnScore implements ScoreSink.
func (f ScoreSinkFunc) OnScore(ev ScoreEvent) { f(ev) }

// Outcome statuses.
const (
	StatusOK           = "ok"
	StatusInvalid      = "invalid"
	StatusUnrecognized = "unrecognized"
)

// Outcome describes how a call was handled.
type Outcome struct {
	Tool   string
	CallID string
	Status string
	Err    error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithKinds restricts the dispatcher to the given tools. By default every
// tool is accepted.
func WithKinds(kinds ...Kind) Option {
	return func(d *Dispatcher) {
		d.allowed = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			d.allowed[k] = true
		}
	}
}

// WithSessionID stamps score events with a session id.
func WithSessionID(id string) Option {
	return func(d *Dispatcher) { d.sessionID = id }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithObserver is called after every call with its outcome.
func WithObserver(fn func(Outcome)) Option {
	return func(d *Dispatcher) { d.observe = fn }
}

// Dispatcher implements live.ToolHandler.
type Dispatcher struct {
	sink      ScoreSink
	allowed   map[Kind]bool
	sessionID string
	now       func() time.Time
	observe   func(Outcome)
}

var _ live.ToolHandler = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher that reports scores to sink.
func NewDispatcher(sink ScoreSink, opts ...Option) *Dispatcher {
	d := &Dispatcher{sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleToolCall validates the call, scores it and returns the ack payload.
// The sink is invoked at most once per call.
func (d *Dispatcher) HandleToolCall(ctx context.Context, call live.ToolCall) map[string]interface{} {
	ev, kind, err := d.Parse(call)
	switch {
	case errors.Is(err, ErrUnrecognizedTool):
		logger.WarnContext(ctx, "ignoring unrecognized tool call", "tool", call.Name, "id", call.ID)
		d.report(Outcome{Tool: call.Name, CallID: call.ID, Status: StatusUnrecognized, Err: err})
		return map[string]interface{}{"result": AckReceived}
	case err != nil:
		logger.WarnContext(ctx, "rejecting tool call arguments", "tool", call.Name, "id", call.ID, "error", err)
		d.report(Outcome{Tool: call.Name, CallID: call.ID, Status: StatusInvalid, Err: err})
		return map[string]interface{}{"result": AckReceived, "error": err.Error()}
	}

	d.deliver(ctx, ev)
	logger.DebugContext(ctx, "tool call scored", "tool", call.Name, "correct", ev.Correct)
	d.report(Outcome{Tool: call.Name, CallID: call.ID, Status: StatusOK})
	return map[string]interface{}{"result": specs[kind].ack}
}

// Parse validates a call and converts it to a ScoreEvent.
func (d *Dispatcher) Parse(call live.ToolCall) (ScoreEvent, Kind, error) {
	kind, ok := Lookup(call.Name)
	if !ok || (d.allowed != nil && !d.allowed[kind]) {
		return ScoreEvent{}, 0, fmt.Errorf("%w: %q", ErrUnrecognizedTool, call.Name)
	}

	args := call.Args
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := validate(specs[kind], args); err != nil {
		return ScoreEvent{}, kind, err
	}

	ev := ScoreEvent{
		Tool:      call.Name,
		CallID:    call.ID,
		SessionID: d.sessionID,
		At:        d.now(),
	}
	ev.Correct, _ = args["isCorrect"].(bool)
	ev.UserAnswer, _ = args["userAnswer"].(string)
	ev.Tip, _ = args["specificTip"].(string)
	if fb, ok := args["feedbackType"].(string); ok {
		ev.Feedback = Feedback(fb)
	}
	// A correct attempt is a success whatever feedback the model picked.
	if kind == EvaluateAttempt && ev.Correct {
		ev.Feedback = FeedbackSuccess
	}
	return ev, kind, nil
}

func validate(s *toolSpec, args map[string]interface{}) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return &ValidationError{Tool: s.name, Detail: err.Error()}
	}
	if !result.Valid() {
		details := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			details[i] = desc.String()
		}
		return &ValidationError{Tool: s.name, Detail: strings.Join(details, "; ")}
	}
	return nil
}

// deliver calls the sink and contains any panic it raises.
func (d *Dispatcher) deliver(ctx context.Context, ev ScoreEvent) {
	if d.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "score sink panicked", "tool", ev.Tool, "panic", r)
		}
	}()
	d.sink.OnScore(ev)
}

func (d *Dispatcher) report(o Outcome) {
	if d.observe != nil {
		d.observe(o)
	}
}
