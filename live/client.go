// Package live implements the client side of a bidirectional live session
// with a conversational model: setup, media streaming, server event
// dispatch and tool-call acknowledgement.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glosings0n/Vut-Elimu/capture"
	"github.com/glosings0n/Vut-Elimu/internal/streaming"
	"github.com/glosings0n/Vut-Elimu/logger"
)

// DefaultSetupTimeout bounds the wait for setupComplete.
const DefaultSetupTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	Endpoint     string
	APIKey       string
	Model        string
	Voice        string
	SetupTimeout time.Duration
	DialTimeout  time.Duration
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
	if c.SetupTimeout == 0 {
		c.SetupTimeout = DefaultSetupTimeout
	}
}

// Handlers receive server events on the receive goroutine. Any field may be nil.
type Handlers struct {
	OnAudio        func(data string)
	OnTranscript   func(kind TranscriptKind, text string)
	OnTurnComplete func()
	OnInterrupted  func()
	OnStateChange  func(from, to State)
	OnError        func(err *ConnectionError)
}

// ToolHandler answers tool calls. The returned map becomes the response
// payload for the call id.
type ToolHandler interface {
	HandleToolCall(ctx context.Context, call ToolCall) map[string]interface{}
}

// TranscriptSink receives transcript text.
type TranscriptSink interface {
	OnTranscript(kind TranscriptKind, text string)
}

// Client is a single live connection. It is not reusable after Close.
type Client struct {
	cfg      Config
	handlers Handlers
	tools    ToolHandler
	sm       stateMachine

	mu     sync.Mutex
	conn   *streaming.Conn
	cancel context.CancelFunc

	errOnce  sync.Once
	doneOnce sync.Once
	done     chan struct{}
}

// NewClient creates an idle client. tools may be nil, in which case every
// call is acknowledged with {"result":"received"}.
func NewClient(cfg Config, handlers Handlers, tools ToolHandler) *Client {
	cfg.defaults()
	c := &Client{
		cfg:      cfg,
		handlers: handlers,
		tools:    tools,
		done:     make(chan struct{}),
	}
	c.sm.onChange = func(from, to State) {
		logger.Debug("live state changed", "from", from.String(), "to", to.String())
		if handlers.OnStateChange != nil {
			handlers.OnStateChange(from, to)
		}
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.sm.get()
}

// Done is closed once the client stops receiving.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Connect dials the endpoint, sends the setup message and waits for
// setupComplete. On success the receive loop runs until Close or a
// connection failure. ctx bounds the handshake only.
func (c *Client) Connect(ctx context.Context, setup Setup) error {
	if err := c.sm.transition(StateConnecting); err != nil {
		return err
	}
	ctx = logger.WithComponent(ctx, "live")

	wsURL, err := endpointURL(c.cfg.Endpoint, c.cfg.APIKey)
	if err != nil {
		return c.fail(ctx, OpDial, err)
	}

	conn := streaming.NewConn(streaming.Options{
		URL:         wsURL,
		DialTimeout: c.cfg.DialTimeout,
		Logger:      connLogger{},
		Redact:      logger.RedactSensitiveData,
	})
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := conn.Connect(ctx); err != nil {
		return c.fail(ctx, OpDial, err)
	}

	setupMsg := newSetupMessage(c.cfg.Model, c.cfg.Voice, setup)
	logSetupMessage(setupMsg)
	if err := c.sendAndWaitForSetup(ctx, conn, setupMsg); err != nil {
		return c.fail(ctx, OpSetup, err)
	}

	// Close may have won the race while the handshake was in flight.
	if err := c.sm.transition(StateOpen); err != nil {
		_ = conn.Close()
		c.markDone()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	logger.InfoContext(ctx, "live session open", "model", modelPath(c.cfg.Model))
	go c.receiveLoop(loopCtx, conn)
	return nil
}

func (c *Client) sendAndWaitForSetup(ctx context.Context, conn *streaming.Conn, setupMsg setupMessage) error {
	if err := conn.Send(setupMsg); err != nil {
		return fmt.Errorf("failed to send setup message: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, c.cfg.SetupTimeout)
	defer cancel()

	raw, err := conn.Receive(setupCtx)
	if err != nil {
		return fmt.Errorf("failed to receive setup response: %w", err)
	}

	var resp ServerMessage
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("failed to parse setup response: %w", err)
	}
	if resp.SetupComplete == nil {
		return errors.New("invalid setup response: setupComplete not received")
	}
	return nil
}

// Send writes an envelope. It fails with ErrNotOpen before the connection
// is open; after close the envelope is silently dropped.
func (c *Client) Send(env Envelope) error {
	switch c.sm.get() {
	case StateOpen:
	case StateIdle, StateConnecting:
		return ErrNotOpen
	default:
		logger.Debug("dropping send on closed live session")
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if err := conn.Send(env); err != nil {
		if errors.Is(err, streaming.ErrClosed) {
			logger.Debug("dropping send on closed live session")
			return nil
		}
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// SendFrame encodes a captured frame and sends it.
func (c *Client) SendFrame(f capture.Frame) error {
	return c.Send(FrameEnvelope(f))
}

// Close shuts the connection. It is idempotent and safe in any state.
func (c *Client) Close() error {
	if err := c.sm.transition(StateClosing); err != nil {
		// Already closing, closed or failed.
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if conn != nil {
		err = conn.Close()
		st := conn.Stats()
		logger.Debug("live connection closed", "sent", st.Sent, "received", st.Received,
			"bytes_sent", st.BytesSent, "bytes_received", st.BytesReceived)
	}
	if conn == nil || cancel == nil {
		c.markDone()
	}

	if terr := c.sm.transition(StateClosed); terr != nil {
		return terr
	}
	return err
}

// fail moves the client to StateError and reports the failure once. A
// failure after an intentional Close is returned but not reported.
func (c *Client) fail(ctx context.Context, op string, err error) error {
	cerr := &ConnectionError{Op: op, Err: err}

	if terr := c.sm.transition(StateError); terr != nil {
		logger.DebugContext(ctx, "ignoring connection failure after close", "op", op, "error", err)
		c.markDone()
		return cerr
	}

	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.markDone()

	logger.SessionError(ctx, "live."+op, err)
	c.errOnce.Do(func() {
		if c.handlers.OnError != nil {
			c.handlers.OnError(cerr)
		}
	})
	return cerr
}

func (c *Client) markDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Client) receiveLoop(ctx context.Context, conn *streaming.Conn) {
	defer c.markDone()

	for {
		raw, err := conn.Receive(ctx)
		if err != nil {
			c.handleReceiveError(ctx, err)
			return
		}
		logRawMessage(raw)

		var msg ServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.WarnContext(ctx, "failed to parse server message", "error", err)
			continue
		}
		c.dispatch(ctx, &msg)
	}
}

func (c *Client) handleReceiveError(ctx context.Context, err error) {
	state := c.sm.get()
	if state != StateOpen || ctx.Err() != nil {
		logger.DebugContext(ctx, "receive loop exiting after close")
		return
	}

	if streaming.IsNormalClose(err) {
		logger.InfoContext(ctx, "live session closed by server")
		_ = c.Close()
		return
	}

	_ = c.fail(ctx, OpRead, err)
}

// dispatch routes the events of one message to the handlers in order.
func (c *Client) dispatch(ctx context.Context, msg *ServerMessage) {
	for _, ev := range Split(msg) {
		if c.sm.get() != StateOpen {
			return
		}
		switch e := ev.(type) {
		case Interrupted:
			c.guard(ctx, "interrupted", c.handlers.OnInterrupted)
		case AudioChunk:
			if c.handlers.OnAudio != nil {
				c.guard(ctx, "audio", func() { c.handlers.OnAudio(e.Data) })
			}
		case InputTranscript:
			c.emitTranscript(ctx, TranscriptInput, e.Text)
		case OutputTranscript:
			c.emitTranscript(ctx, TranscriptOutput, e.Text)
		case ToolCall:
			c.handleToolCall(ctx, e)
		case TurnComplete:
			c.guard(ctx, "turn_complete", c.handlers.OnTurnComplete)
		}
	}
}

func (c *Client) emitTranscript(ctx context.Context, kind TranscriptKind, text string) {
	if c.handlers.OnTranscript == nil {
		return
	}
	c.guard(ctx, "transcript", func() { c.handlers.OnTranscript(kind, text) })
}

// handleToolCall sends exactly one response envelope for the call id.
func (c *Client) handleToolCall(ctx context.Context, call ToolCall) {
	var resp map[string]interface{}
	if c.tools != nil {
		c.guard(ctx, "tool_call", func() { resp = c.tools.HandleToolCall(ctx, call) })
	}
	if resp == nil {
		resp = map[string]interface{}{"result": "received"}
	}

	if err := c.Send(ToolResponseEnvelope(call.ID, call.Name, resp)); err != nil {
		logger.WarnContext(ctx, "failed to send tool response", "tool", call.Name, "id", call.ID, "error", err)
		return
	}
	logger.DebugContext(ctx, "tool response sent", "tool", call.Name, "id", call.ID)
}

// guard runs a handler and contains any panic it raises.
func (c *Client) guard(ctx context.Context, name string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "live handler panicked", "handler", name, "panic", r)
		}
	}()
	fn()
}

func logSetupMessage(msg setupMessage) {
	if data, err := json.Marshal(msg); err == nil {
		logger.Debug("live setup message", "model", msg.Setup.Model,
			"tool_count", len(msg.Setup.Tools), "setup", string(data))
	}
}

// connLogger forwards transport logs to the package logger.
type connLogger struct{}

func (connLogger) Debug(msg string, kv ...interface{}) { logger.Debug(msg, kv...) }
func (connLogger) Info(msg string, kv ...interface{})  { logger.Info(msg, kv...) }
func (connLogger) Warn(msg string, kv ...interface{})  { logger.Warn(msg, kv...) }
func (connLogger) Error(msg string, kv ...interface{}) { logger.Error(msg, kv...) }
