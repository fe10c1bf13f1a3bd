package live

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glosings0n/Vut-Elimu/capture"
)

func TestModelPath(t *testing.T) {
	assert.Equal(t, "models/"+DefaultModel, modelPath(""))
	assert.Equal(t, "models/custom", modelPath("custom"))
	assert.Equal(t, "models/custom", modelPath("models/custom"))
}

func TestNewSetupMessage_OmitsEmptyParts(t *testing.T) {
	data, err := json.Marshal(newSetupMessage("", "", Setup{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"setup":{
		"model":"models/`+DefaultModel+`",
		"generationConfig":{
			"responseModalities":["AUDIO"],
			"speechConfig":{"voiceConfig":{"prebuiltVoiceConfig":{"voiceName":"`+DefaultVoice+`"}}}
		},
		"inputAudioTranscription":{},
		"outputAudioTranscription":{}
	}}`, string(data))
}

func TestNewSetupMessage_InstructionAndTools(t *testing.T) {
	msg := newSetupMessage("custom", "Kore", Setup{
		Instruction: "Count with me.",
		Tools:       []FunctionDeclaration{{Name: "report_result"}},
	})
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	setup := decoded["setup"]
	assert.Equal(t, "models/custom", setup["model"])
	assert.Equal(t, map[string]interface{}{"parts": []interface{}{map[string]interface{}{"text": "Count with me."}}}, setup["systemInstruction"])
	tools := setup["tools"].([]interface{})
	require.Len(t, tools, 1)
	decls := tools[0].(map[string]interface{})["functionDeclarations"].([]interface{})
	assert.Equal(t, "report_result", decls[0].(map[string]interface{})["name"])
}

func TestEndpointURL(t *testing.T) {
	u, err := endpointURL("wss://example.com/ws?alt=1", "secret")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/ws?alt=1&key=secret", u)

	u, err = endpointURL("wss://example.com/ws", "")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/ws", u)
}

func TestTruncateInlineData(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'A'
	}
	msg := map[string]interface{}{
		"serverContent": map[string]interface{}{
			"modelTurn": map[string]interface{}{
				"parts": []interface{}{
					map[string]interface{}{"inlineData": map[string]interface{}{"data": string(long)}},
				},
			},
		},
	}
	truncateInlineData(msg)
	part := msg["serverContent"].(map[string]interface{})["modelTurn"].(map[string]interface{})["parts"].([]interface{})[0]
	data := part.(map[string]interface{})["inlineData"].(map[string]interface{})["data"]
	assert.Equal(t, "[200 bytes base64]", data)
}

func TestSplit_Order(t *testing.T) {
	raw := `{
		"serverContent": {
			"modelTurn": {"parts": [
				{"inlineData": {"mimeType": "audio/pcm;rate=24000", "data": "A1"}},
				{"text": "thinking"},
				{"inlineData": {"mimeType": "image/png", "data": "IMG"}}
			]},
			"inputTranscription": {"text": "twelve"},
			"outputTranscription": {"text": "Well done"},
			"turnComplete": true,
			"interrupted": true
		},
		"toolCall": {"functionCalls": [{"id": "1", "name": "report_result", "args": {"isCorrect": true}}]}
	}`
	var msg ServerMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	events := Split(&msg)
	require.Len(t, events, 6)
	assert.Equal(t, Interrupted{}, events[0])
	assert.Equal(t, AudioChunk{Data: "A1"}, events[1])
	assert.Equal(t, InputTranscript{Text: "twelve"}, events[2])
	assert.Equal(t, OutputTranscript{Text: "Well done"}, events[3])
	assert.Equal(t, "report_result", events[4].(ToolCall).Name)
	assert.Equal(t, TurnComplete{}, events[5])
}

func TestSplit_EmptyMessage(t *testing.T) {
	assert.Empty(t, Split(nil))
	assert.Empty(t, Split(&ServerMessage{SetupComplete: &SetupComplete{}}))
}

func TestEnvelopeJSON(t *testing.T) {
	data, err := json.Marshal(ToolResponseEnvelope("id-1", "evaluate_attempt", map[string]interface{}{"result": "Evaluation received."}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"toolResponse":{"functionResponses":[{"id":"id-1","name":"evaluate_attempt","response":{"result":"Evaluation received."}}]}}`, string(data))

	data, err = json.Marshal(MediaEnvelope("audio/pcm;rate=16000", "AAAA"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"realtimeInput":{"media":{"mimeType":"audio/pcm;rate=16000","data":"AAAA"}}}`, string(data))
}

func TestFrameEnvelope(t *testing.T) {
	env := FrameEnvelope(capture.Frame{Kind: capture.KindVideo, JPEG: []byte{1, 2, 3}})
	assert.Equal(t, JPEGMIMEType, env.RealtimeInput.Media.MIMEType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), env.RealtimeInput.Media.Data)

	env = FrameEnvelope(capture.Frame{Kind: capture.KindAudio, Samples: []float32{0, 0.5}})
	assert.Equal(t, "audio/pcm;rate=16000", env.RealtimeInput.Media.MIMEType)
	raw, err := base64.StdEncoding.DecodeString(env.RealtimeInput.Media.Data)
	require.NoError(t, err)
	assert.Len(t, raw, 4)
}

func TestTransitions(t *testing.T) {
	assert.True(t, CanTransition(StateIdle, StateConnecting))
	assert.True(t, CanTransition(StateConnecting, StateOpen))
	assert.True(t, CanTransition(StateConnecting, StateError))
	assert.True(t, CanTransition(StateOpen, StateError))
	assert.True(t, CanTransition(StateOpen, StateClosing))
	assert.True(t, CanTransition(StateClosing, StateClosed))

	assert.False(t, CanTransition(StateIdle, StateOpen))
	assert.False(t, CanTransition(StateIdle, StateError))
	assert.False(t, CanTransition(StateClosed, StateConnecting))
	assert.False(t, CanTransition(StateError, StateClosing))
	assert.False(t, CanTransition(StateError, StateOpen))

	var m stateMachine
	err := m.transition(StateOpen)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateIdle, m.get())
	assert.Equal(t, "ERROR", StateError.String())
}
