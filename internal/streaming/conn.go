// Package streaming is the WebSocket transport under the live client. It
// owns dialing, serialised writes, a single read pump and close. Message
// encoding is left to the caller.
package streaming

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Transport defaults.
const (
	DefaultDialTimeout      = 10 * time.Second
	DefaultWriteWait        = 10 * time.Second
	DefaultMaxMessageSize   = 16 * 1024 * 1024
	DefaultCloseGracePeriod = 2 * time.Second
)

// ErrClosed is returned by operations on a closed or unconnected Conn.
var ErrClosed = errors.New("websocket is not connected")

// Options configures a Conn.
type Options struct {
	URL     string
	Headers http.Header

	DialTimeout time.Duration
	// WriteWait bounds each write.
	WriteWait      time.Duration
	MaxMessageSize int64
	// CloseGracePeriod bounds writing the close frame.
	CloseGracePeriod time.Duration

	// Logger is optional.
	Logger Logger
	// Redact rewrites the URL before it is logged.
	Redact func(string) string
}

// Logger is the logging surface the transport needs.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

func (o *Options) defaults() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.WriteWait <= 0 {
		o.WriteWait = DefaultWriteWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	if o.CloseGracePeriod <= 0 {
		o.CloseGracePeriod = DefaultCloseGracePeriod
	}
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	if o.Redact == nil {
		o.Redact = func(s string) string { return s }
	}
}

// inbound is one result of the read pump.
type inbound struct {
	data []byte
	err  error
}

// Stats counts messages moved over a Conn.
type Stats struct {
	Sent          uint64
	Received      uint64
	BytesSent     uint64
	BytesReceived uint64
}

// Conn is one WebSocket connection. Writes are serialised; reads come from
// a single pump goroutine started by Connect, so Receive may be called with
// different contexts without racing the socket. A Conn is not reusable
// after Close.
type Conn struct {
	opts Options

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool

	writeMu sync.Mutex
	inbox   chan inbound
	done    chan struct{}

	sent, received    atomic.Uint64
	bytesOut, bytesIn atomic.Uint64
}

// NewConn returns an unconnected Conn.
func NewConn(opts Options) *Conn {
	opts.defaults()
	return &Conn{
		opts:  opts,
		inbox: make(chan inbound),
		done:  make(chan struct{}),
	}
}

// Connect dials the endpoint and starts the read pump.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.ws != nil {
		return errors.New("websocket already connected")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.DialTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}
	c.opts.Logger.Debug("dialing websocket", "url", c.opts.Redact(c.opts.URL))

	ws, resp, err := dialer.DialContext(ctx, c.opts.URL, c.opts.Headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			c.opts.Logger.Error("websocket handshake rejected", "status", resp.StatusCode, "error", err)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	ws.SetReadLimit(c.opts.MaxMessageSize)
	c.ws = ws
	go c.pump(ws)

	c.opts.Logger.Info("websocket connected")
	return nil
}

// pump reads until the socket fails, handing each message to Receive.
func (c *Conn) pump(ws *websocket.Conn) {
	for {
		kind, data, err := ws.ReadMessage()
		if err == nil && kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		select {
		case c.inbox <- inbound{data: data, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Send JSON-encodes msg and writes it as a text message.
func (c *Conn) Send(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.SendRaw(data)
}

// SendRaw writes pre-encoded data.
func (c *Conn) SendRaw(data []byte) error {
	ws, err := c.socket()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	err = ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	if err == nil {
		err = ws.WriteMessage(websocket.TextMessage, data)
	}
	c.writeMu.Unlock()

	if err != nil {
		if c.IsClosed() {
			return ErrClosed
		}
		return fmt.Errorf("failed to write message: %w", err)
	}
	c.sent.Add(1)
	c.bytesOut.Add(uint64(len(data)))
	return nil
}

// Receive returns the next message. It blocks until one arrives, the
// socket fails, ctx is done or the Conn is closed.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	if _, err := c.socket(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	case in := <-c.inbox:
		if in.err != nil {
			return nil, in.err
		}
		c.received.Add(1)
		c.bytesIn.Add(uint64(len(in.data)))
		return in.data, nil
	}
}

func (c *Conn) socket() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.ws == nil {
		return nil, ErrClosed
	}
	return c.ws, nil
}

// IsNormalClose reports whether err is a clean close by either side.
func IsNormalClose(err error) bool {
	return errors.Is(err, ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// Close sends a close frame and releases the socket. It is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = ws.SetWriteDeadline(time.Now().Add(c.opts.CloseGracePeriod))
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return ws.Close()
}

// Done is closed by Close.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Stats returns message counters.
func (c *Conn) Stats() Stats {
	return Stats{
		Sent:          c.sent.Load(),
		Received:      c.received.Load(),
		BytesSent:     c.bytesOut.Load(),
		BytesReceived: c.bytesIn.Load(),
	}
}
