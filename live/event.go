package live

import "strings"

// Event is one inbound server event. The set of variants is closed.
type Event interface {
	isEvent()
}

// AudioChunk is base64 PCM16 audio at 24 kHz.
type AudioChunk struct {
	Data string
}

// InputTranscript is recognised user speech.
type InputTranscript struct {
	Text string
}

// OutputTranscript is the text of the model's speech.
type OutputTranscript struct {
	Text string
}

// ToolCall is a function call request from the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// TurnComplete marks the end of a model turn.
type TurnComplete struct{}

// Interrupted reports that the user barged in and queued audio is stale.
type Interrupted struct{}

func (AudioChunk) isEvent()       {}
func (InputTranscript) isEvent()  {}
func (OutputTranscript) isEvent() {}
func (ToolCall) isEvent()         {}
func (TurnComplete) isEvent()     {}
func (Interrupted) isEvent()      {}

// TranscriptKind says whose speech a transcript belongs to.
type TranscriptKind int

// Transcript kinds.
const (
	TranscriptInput TranscriptKind = iota
	TranscriptOutput
)

func (k TranscriptKind) String() string {
	if k == TranscriptOutput {
		return "output"
	}
	return "input"
}

// Split turns one server message into events. Interrupted comes first so
// stale audio is flushed before anything new is scheduled; the rest follow
// the order audio, input transcript, output transcript, tool calls, turn
// complete.
func Split(msg *ServerMessage) []Event {
	var events []Event
	if msg == nil {
		return events
	}

	sc := msg.ServerContent
	if sc != nil {
		if sc.Interrupted {
			events = append(events, Interrupted{})
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.InlineData == nil || part.InlineData.Data == "" {
					continue
				}
				if mt := part.InlineData.MimeType; mt != "" && !strings.HasPrefix(mt, "audio/") {
					continue
				}
				events = append(events, AudioChunk{Data: part.InlineData.Data})
			}
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			events = append(events, InputTranscript{Text: sc.InputTranscription.Text})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			events = append(events, OutputTranscript{Text: sc.OutputTranscription.Text})
		}
	}

	if msg.ToolCall != nil {
		for _, fc := range msg.ToolCall.FunctionCalls {
			events = append(events, ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
	}

	if sc != nil && sc.TurnComplete {
		events = append(events, TurnComplete{})
	}
	return events
}
