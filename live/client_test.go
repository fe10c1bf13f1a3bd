package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glosings0n/Vut-Elimu/capture"
	"github.com/glosings0n/Vut-Elimu/live/livetest"
)

type toolFunc func(ctx context.Context, call ToolCall) map[string]interface{}

func (f toolFunc) HandleToolCall(ctx context.Context, call ToolCall) map[string]interface{} {
	return f(ctx, call)
}

type recorder struct {
	mu     sync.Mutex
	events []string
	states []string
	errs   []*ConnectionError
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.events = append(r.events, s)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) errors() []*ConnectionError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*ConnectionError(nil), r.errs...)
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnAudio: func(data string) { r.add("audio:" + data) },
		OnTranscript: func(kind TranscriptKind, text string) {
			r.add(kind.String() + ":" + text)
		},
		OnTurnComplete: func() { r.add("turn_complete") },
		OnInterrupted:  func() { r.add("interrupted") },
		OnStateChange: func(from, to State) {
			r.mu.Lock()
			r.states = append(r.states, from.String()+"->"+to.String())
			r.mu.Unlock()
		},
		OnError: func(err *ConnectionError) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func testSetup() Setup {
	return Setup{
		Instruction: "You are a helpful assistant.",
		Tools: []FunctionDeclaration{{
			Name:        "report_result",
			Description: "Report whether the answer was correct.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"isCorrect": map[string]interface{}{"type": "boolean"}},
				"required":   []string{"isCorrect"},
			},
		}},
	}
}

func connect(t *testing.T, srv *livetest.Server, rec *recorder, tools ToolHandler) *Client {
	t.Helper()
	c := NewClient(Config{Endpoint: srv.URL(), APIKey: "test-key"}, rec.handlers(), tools)
	require.NoError(t, c.Connect(context.Background(), testSetup()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_ConnectSendsSetup(t *testing.T) {
	srv := livetest.NewServer(livetest.Options{})
	defer srv.Close()
	rec := &recorder{}

	c := connect(t, srv, rec, nil)
	assert.Equal(t, StateOpen, c.State())

	setups := srv.Setups()
	require.Len(t, setups, 1)
	setup := setups[0]
	assert.Equal(t, "models/"+DefaultModel, setup["model"])
	assert.Contains(t, setup, "inputAudioTranscription")
	assert.Contains(t, setup, "outputAudioTranscription")

	gen := setup["generationConfig"].(map[string]interface{})
	assert.Equal(t, []interface{}{"AUDIO"}, gen["responseModalities"])

	instr := setup["systemInstruction"].(map[string]interface{})
	parts := instr["parts"].([]interface{})
	assert.Equal(t, "You are a helpful assistant.", parts[0].(map[string]interface{})["text"])

	assert.Equal(t, "key=test-key", srv.Queries()[0])
	assert.Equal(t, []string{"report_result"}, srv.Sessions()[0].ToolNames())

	rec.mu.Lock()
	assert.Equal(t, []string{"IDLE->CONNECTING", "CONNECTING->OPEN"}, rec.states)
	rec.mu.Unlock()
}

func TestClient_SendBeforeOpen(t *testing.T) {
	c := NewClient(Config{Endpoint: "ws://127.0.0.1:1"}, Handlers{}, nil)
	err := c.Send(MediaEnvelope("audio/pcm;rate=16000", "AAAA"))
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestClient_SendAfterCloseIsSwallowed(t *testing.T) {
	srv := livetest.NewServer(livetest.Options{})
	defer srv.Close()

	c := connect(t, srv, &recorder{}, nil)
	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())

	assert.NoError(t, c.Send(MediaEnvelope("audio/pcm;rate=16000", "AAAA")))
	assert.NoError(t, c.SendFrame(capture.Frame{Kind: capture.KindAudio, Samples: []float32{0.1}}))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c := NewClient(Config{}, Handlers{}, nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("done not closed")
	}
}

func TestClient_ConnectAfterCloseFails(t *testing.T) {
	c := NewClient(Config{}, Handlers{}, nil)
	require.NoError(t, c.Close())
	err := c.Connect(context.Background(), Setup{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestClient_StreamsFrames(t *testing.T) {
	srv := livetest.NewServer(livetest.Options{})
	defer srv.Close()

	c := connect(t, srv, &recorder{}, nil)
	require.NoError(t, c.SendFrame(capture.Frame{Kind: capture.KindAudio, Samples: make([]float32, 4096)}))
	require.NoError(t, c.SendFrame(capture.Frame{Kind: capture.KindVideo, JPEG: []byte{0xff, 0xd8}}))

	assert.True(t, livetest.WaitFor(time.Second, func() bool {
		return srv.MediaCount("audio/pcm;rate=16000") == 1 && srv.MediaCount("image/jpeg") == 1
	}))
}

func TestClient_DispatchesEventsInOrder(t *testing.T) {
	srv := livetest.NewServer(livetest.Options{Script: func(s *livetest.Session) {
		_ = s.Content(map[string]interface{}{
			"modelTurn": map[string]interface{}{"parts": []interface{}{
				map[string]interface{}{"inlineData": map[string]interface{}{"mimeType": "audio/pcm;rate=24000", "data": "A1"}},
				map[string]interface{}{"inlineData": map[string]interface{}{"mimeType": "audio/pcm;rate=24000", "data": "A2"}},
			}},
			"inputTranscription":  map[string]interface{}{"text": "seven"},
			"outputTranscription": map[string]interface{}{"text": "Correct!"},
			"turnComplete":        true,
		})
	}})
	defer srv.Close()
	rec := &recorder{}

	connect(t, srv, rec, nil)

	require.True(t, livetest.WaitFor(time.Second, func() bool { return len(rec.snapshot()) == 5 }))
	assert.Equal(t, []string{"audio:A1", "audio:A2", "input:seven", "output:Correct!", "turn_complete"}, rec.snapshot())
}

func TestClient_InterruptedIsDelivered(t *testing.T) {
	srv := livetest.NewServer(livetest.Options{Script: func(s *livetest.Session) {
		_ = s.Audio("A1")
		_ = s.Interrupt()
	}})
	defer srv.Close()
	rec := &recorder{}

	connect(t, srv, rec, nil)
	require.True(t, livetest.WaitFor(time.Second, func() bool { return len(rec.snapshot()) == 2 }))
	assert.Equal(t, []string{"audio:A1", "interrupted"}, rec.snapshot())
}

func TestClient_ToolCallIsAcknowledgedOnce(t *testing.T) {
	srv := livetest.NewServer(livetest.Options{Script: func(s *livetest.Session) {
		_ = s.ToolCall("call-1", "report_result", map[string]interface{}{"isCorrect": true})
	}})
	defer srv.Close()

	var calls atomic.Int32
	tools := toolFunc(func(_ context.Context, call ToolCall) map[string]interface{} {
		calls.Add(1)
		assert.Equal(t, "report_result", call.Name)
		assert.Equal(t, true, call.Args["isCorrect"])
		return map[string]interface{}{"result": "Score recorded"}
	})

	connect(t, srv, &recorder{}, tools)

	require.True(t, livetest.WaitFor(time.Second, func() bool { return len(srv.ToolResponses()) == 1 }))
	time.Sleep(50 * time.Millisecond)

	resps := srv.ToolResponses()
	require.Len(t, resps, 1)
	assert.Equal(t, "call-1", resps[0].ID)
	assert.Equal(t, "report_result", resps[0].Name)
	assert.Equal(t, "Score recorded", resps[0].Response["result"])
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ToolCallWithoutHandler(t *testing.T) {
	srv := livetest.NewServer(livetest.Options{Script: func(s *livetest.Session) {
		_ = s.ToolCall("call-9", "unknown_tool", nil)
	}})
	defer srv.Close()

	connect(t, srv, &recorder{}, nil)

	require.True(t, livetest.WaitFor(time.Second, func() bool { return len(srv.ToolResponses()) == 1 }))
	assert.Equal(t, "received", srv.ToolResponses()[0].Response["result"])
}

func TestClient_HandlerPanicIsContained(t *testing.T) {
	srv := livetest.NewServer(livetest.Options{Script: func(s *livetest.Session) {
		_ = s.Audio("A1")
		_ = s.TurnComplete()
	}})
	defer srv.Close()

	var turns atomic.Int32
	c := NewClient(Config{Endpoint: srv.URL()}, Handlers{
		OnAudio:        func(string) { panic("boom") },
		OnTurnComplete: func() { turns.Add(1) },
	}, nil)
	require.NoError(t, c.Connect(context.Background(), Setup{}))
	defer c.Close()

	assert.True(t, livetest.WaitFor(time.Second, func() bool { return turns.Load() == 1 }))
	assert.Equal(t, StateOpen, c.State())
}

func TestClient_SetupTimeout(t *testing.T) {
	srv := livetest.NewServer(livetest.Options{NoSetupComplete: true})
	defer srv.Close()
	rec := &recorder{}

	c := NewClient(Config{Endpoint: srv.URL(), SetupTimeout: 100 * time.Millisecond}, rec.handlers(), nil)
	err := c.Connect(context.Background(), Setup{})

	var cerr *ConnectionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, OpSetup, cerr.Op)
	assert.True(t, cerr.Handshake())
	assert.Equal(t, StateError, c.State())
	assert.Len(t, rec.errors(), 1)
}

func TestClient_DialFailure(t *testing.T) {
	rec := &recorder{}
	c := NewClient(Config{Endpoint: "ws://127.0.0.1:1", DialTimeout: time.Second}, rec.handlers(), nil)

	err := c.Connect(context.Background(), Setup{})
	var cerr *ConnectionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, OpDial, cerr.Op)
	assert.True(t, cerr.Handshake())
	assert.Equal(t, StateError, c.State())
	assert.Len(t, rec.errors(), 1)

	// Error is absorbing.
	require.NoError(t, c.Close())
	assert.Equal(t, StateError, c.State())
}

func TestClient_ServerDropIsAnError(t *testing.T) {
	srv := livetest.NewServer(livetest.Options{Script: func(s *livetest.Session) {
		time.Sleep(20 * time.Millisecond)
		s.Drop()
	}})
	defer srv.Close()
	rec := &recorder{}

	c := connect(t, srv, rec, nil)

	require.True(t, livetest.WaitFor(2*time.Second, func() bool { return c.State() == StateError }))
	errs := rec.errors()
	require.Len(t, errs, 1)
	assert.Equal(t, OpRead, errs[0].Op)
	assert.False(t, errs[0].Handshake())
}

func TestClient_ServerNormalCloseIsNotAnError(t *testing.T) {
	srv := livetest.NewServer(livetest.Options{Script: func(s *livetest.Session) {
		time.Sleep(20 * time.Millisecond)
		_ = s.CloseNormal()
	}})
	defer srv.Close()
	rec := &recorder{}

	c := connect(t, srv, rec, nil)

	require.True(t, livetest.WaitFor(2*time.Second, func() bool { return c.State() == StateClosed }))
	assert.Empty(t, rec.errors())
}

func TestClient_CloseDuringOpenStopsReceiving(t *testing.T) {
	srv := livetest.NewServer(livetest.Options{})
	defer srv.Close()
	rec := &recorder{}

	c := connect(t, srv, rec, nil)
	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("receive loop did not exit")
	}
	assert.Empty(t, rec.errors())

	rec.mu.Lock()
	assert.Equal(t, []string{"IDLE->CONNECTING", "CONNECTING->OPEN", "OPEN->CLOSING", "CLOSING->CLOSED"}, rec.states)
	rec.mu.Unlock()
}
