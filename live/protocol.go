package live

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/glosings0n/Vut-Elimu/logger"
)

// Endpoint and model defaults.
const (
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/" +
		"google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice = "Puck"

	modalityAudio = "AUDIO"
	inlineDataLog = 100
)

// ServerMessage is one inbound wire message (BidiGenerateContentServerMessage).
type ServerMessage struct {
	SetupComplete *SetupComplete `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	ToolCall      *ToolCallMsg   `json:"toolCall,omitempty"`
}

// SetupComplete acknowledges the setup message (empty object).
type SetupComplete struct{}

// ToolCallMsg carries one or more function calls from the model.
type ToolCallMsg struct {
	FunctionCalls []FunctionCall `json:"functionCalls,omitempty"`
}

// FunctionCall is a single function call request.
type FunctionCall struct {
	Name string                 `json:"name,omitempty"`
	ID   string                 `json:"id,omitempty"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// ServerContent is the streamed model output for the current turn.
type ServerContent struct {
	ModelTurn           *ModelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

// Transcription is a fragment of recognised speech.
type Transcription struct {
	Text string `json:"text,omitempty"`
}

// ModelTurn holds the parts of a model response.
type ModelTurn struct {
	Parts []Part `json:"parts,omitempty"`
}

// Part is a text or inline-data content part.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData is base64 media embedded in a part.
type InlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// FunctionDeclaration describes a tool the model may call. Parameters is a
// JSON schema object.
type FunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// Setup is the immutable per-connection configuration sent in the first
// message.
type Setup struct {
	Instruction string
	Tools       []FunctionDeclaration
}

// setupMessage is the first client message on a connection.
type setupMessage struct {
	Setup setupBody `json:"setup"`
}

type setupBody struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *content         `json:"systemInstruction,omitempty"`
	Tools                    []toolGroup      `json:"tools,omitempty"`
	InputAudioTranscription  struct{}         `json:"inputAudioTranscription"`
	OutputAudioTranscription struct{}         `json:"outputAudioTranscription"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type content struct {
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

type toolGroup struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// newSetupMessage renders s for model and voice; empty values take the
// package defaults. Instruction and tools are omitted when empty.
func newSetupMessage(model, voice string, s Setup) setupMessage {
	if voice == "" {
		voice = DefaultVoice
	}
	body := setupBody{
		Model:            modelPath(model),
		GenerationConfig: generationConfig{ResponseModalities: []string{modalityAudio}},
	}
	body.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voice
	if s.Instruction != "" {
		body.SystemInstruction = &content{Parts: []textPart{{Text: s.Instruction}}}
	}
	if len(s.Tools) > 0 {
		body.Tools = []toolGroup{{FunctionDeclarations: s.Tools}}
	}
	return setupMessage{Setup: body}
}

// modelPath qualifies model as models/{model}.
func modelPath(model string) string {
	if model == "" {
		model = DefaultModel
	}
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

// endpointURL appends the API key as the key query parameter.
func endpointURL(endpoint, apiKey string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if apiKey != "" {
		q := u.Query()
		q.Set("key", apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// truncateInlineData recursively shortens large data fields for logging.
func truncateInlineData(v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		if data, ok := val["data"].(string); ok && len(data) > inlineDataLog {
			val["data"] = fmt.Sprintf("[%d bytes base64]", len(data))
		}
		for _, child := range val {
			truncateInlineData(child)
		}
	case []interface{}:
		for _, item := range val {
			truncateInlineData(item)
		}
	}
}

// logRawMessage logs an inbound message with media payloads elided.
func logRawMessage(raw []byte) {
	var logMsg map[string]interface{}
	if err := json.Unmarshal(raw, &logMsg); err != nil {
		return
	}
	keys := make([]string, 0, len(logMsg))
	for k := range logMsg {
		keys = append(keys, k)
	}
	truncateInlineData(logMsg)
	logBytes, _ := json.Marshal(logMsg)
	logger.Debug("live message", "keys", keys, "content", string(logBytes))
}
