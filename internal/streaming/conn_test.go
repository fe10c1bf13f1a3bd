package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsUpgrader is the test WebSocket upgrader.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// echoServer returns a test server that echoes WebSocket messages back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

// wsURL converts an HTTP test server URL to a WebSocket URL.
func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

type recordingLogger struct {
	noopLogger
	debug []string
}

func (l *recordingLogger) Debug(msg string, kv ...interface{}) {
	for i := 1; i < len(kv); i += 2 {
		if s, ok := kv[i].(string); ok {
			msg += " " + s
		}
	}
	l.debug = append(l.debug, msg)
}

func TestConn_ConnectAndSendReceive(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(Options{URL: wsURL(srv)})
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	require.NoError(t, c.Send(map[string]string{"hello": "world"}))

	data, err := c.Receive(ctx)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "world", got["hello"])
}

func TestConn_ConnectFailure(t *testing.T) {
	c := NewConn(Options{URL: "ws://127.0.0.1:1/nothing", DialTimeout: 200 * time.Millisecond})
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
	_, err = c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConn_RedactsURLInLogs(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	log := &recordingLogger{}
	c := NewConn(Options{
		URL:    wsURL(srv) + "?key=secret",
		Logger: log,
		Redact: func(s string) string { return strings.ReplaceAll(s, "secret", "[REDACTED]") },
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	require.NotEmpty(t, log.debug)
	assert.NotContains(t, log.debug[0], "secret")
	assert.Contains(t, log.debug[0], "[REDACTED]")
}

func TestConn_SendBeforeConnectAndAfterClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(Options{URL: wsURL(srv)})
	assert.ErrorIs(t, c.SendRaw([]byte("x")), ErrClosed)

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "Close must be idempotent")

	assert.True(t, c.IsClosed())
	assert.ErrorIs(t, c.Send(map[string]int{"a": 1}), ErrClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestConn_SendMarshalError(t *testing.T) {
	c := NewConn(Options{URL: "ws://unused"})
	err := c.Send(make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")
}

func TestConn_ReceiveContextCanceled(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(Options{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Receive(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestConn_ReceiveAcrossContexts(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(Options{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	// A timed-out Receive must not lose the next message.
	short, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	_, err := c.Receive(short)
	cancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, c.SendRaw([]byte(`{"n":1}`)))
	require.NoError(t, c.SendRaw([]byte(`{"n":2}`)))
	first, err := c.Receive(context.Background())
	require.NoError(t, err)
	second, err := c.Receive(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(first))
	assert.JSONEq(t, `{"n":2}`, string(second))

	st := c.Stats()
	assert.Equal(t, uint64(2), st.Sent)
	assert.Equal(t, uint64(2), st.Received)
	assert.Equal(t, uint64(14), st.BytesSent)
	assert.Equal(t, uint64(14), st.BytesReceived)
}

func TestConn_ReceiveUnblocksOnClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(Options{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Receive(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.Close())
	select {
	case err := <-errCh:
		assert.True(t, IsNormalClose(err), "local close is a normal shutdown: %v", err)
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after Close")
	}
}

func TestConn_ServerDrop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// abrupt close without a close frame
		_ = conn.UnderlyingConn().Close()
	}))
	defer srv.Close()

	c := NewConn(Options{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	_, err := c.Receive(context.Background())
	require.Error(t, err)
	assert.False(t, IsNormalClose(err))
}

func TestConn_ConnectTwice(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(Options{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()
	assert.Error(t, c.Connect(context.Background()))
}

func TestIsNormalClose(t *testing.T) {
	assert.True(t, IsNormalClose(&websocket.CloseError{Code: websocket.CloseNormalClosure}))
	assert.True(t, IsNormalClose(ErrClosed))
	assert.False(t, IsNormalClose(errors.New("boom")))
}
