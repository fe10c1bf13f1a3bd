// Package livetest provides an in-process live endpoint for tests and the
// simulated CLI mode. It speaks the same wire protocol as the real model
// service: a setup handshake, realtimeInput media and toolResponse replies.
package livetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Options control the fake endpoint.
type Options struct {
	// NoSetupComplete withholds the setupComplete reply.
	NoSetupComplete bool

	// Script runs once per session after the handshake, on its own goroutine.
	Script func(s *Session)

	// OnMessage is called for every message after setup.
	OnMessage func(s *Session, msg Inbound)
}

// Inbound is a decoded client message.
type Inbound struct {
	Setup         map[string]interface{} `json:"setup,omitempty"`
	RealtimeInput *struct {
		Media struct {
			MimeType string `json:"mimeType"`
			Data     string `json:"data"`
		} `json:"media"`
	} `json:"realtimeInput,omitempty"`
	ToolResponse *struct {
		FunctionResponses []FunctionResponse `json:"functionResponses"`
	} `json:"toolResponse,omitempty"`
}

// FunctionResponse is a tool response received from the client.
type FunctionResponse struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// Server is a fake live endpoint.
type Server struct {
	opts     Options
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	setups    []map[string]interface{}
	queries   []string
	media     map[string]int
	responses []FunctionResponse
	sessions  []*Session
}

// NewServer starts a fake endpoint.
func NewServer(opts Options) *Server {
	s := &Server{opts: opts, media: make(map[string]int)}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the ws:// address of the endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Close drops every session and stops the server.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := append([]*Session(nil), s.sessions...)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Drop()
	}
	s.srv.Close()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sess := &Session{conn: conn, done: make(chan struct{})}
	defer sess.markDone()

	var first Inbound
	if err := conn.ReadJSON(&first); err != nil || first.Setup == nil {
		return
	}

	sess.setup = first.Setup
	s.mu.Lock()
	s.setups = append(s.setups, first.Setup)
	s.queries = append(s.queries, r.URL.RawQuery)
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()

	if s.opts.NoSetupComplete {
		_, _, _ = conn.ReadMessage()
		return
	}
	if err := sess.Send(map[string]interface{}{"setupComplete": map[string]interface{}{}}); err != nil {
		return
	}

	if s.opts.Script != nil {
		go s.opts.Script(sess)
	}

	for {
		var msg Inbound
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.record(msg)
		if s.opts.OnMessage != nil {
			s.opts.OnMessage(sess, msg)
		}
	}
}

func (s *Server) record(msg Inbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.RealtimeInput != nil {
		s.media[msg.RealtimeInput.Media.MimeType]++
	}
	if msg.ToolResponse != nil {
		s.responses = append(s.responses, msg.ToolResponse.FunctionResponses...)
	}
}

// Setups returns every setup payload received, one per session.
func (s *Server) Setups() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]interface{}(nil), s.setups...)
}

// Queries returns the raw query string of each session's handshake.
func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// MediaCount returns the number of media messages whose MIME type starts
// with prefix.
func (s *Server) MediaCount(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for mime, c := range s.media {
		if strings.HasPrefix(mime, prefix) {
			n += c
		}
	}
	return n
}

// ToolResponses returns every function response received.
func (s *Server) ToolResponses() []FunctionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FunctionResponse(nil), s.responses...)
}

// Sessions returns the sessions accepted so far.
func (s *Server) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Session(nil), s.sessions...)
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// Session is one accepted client connection.
type Session struct {
	conn  *websocket.Conn
	setup map[string]interface{}

	writeMu  sync.Mutex
	doneOnce sync.Once
	done     chan struct{}
}

// Done is closed when the client disconnects.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// ToolNames lists the function declarations sent in setup.
func (s *Session) ToolNames() []string {
	var names []string
	tools, _ := s.setup["tools"].([]interface{})
	for _, t := range tools {
		tm, _ := t.(map[string]interface{})
		decls, _ := tm["functionDeclarations"].([]interface{})
		for _, d := range decls {
			dm, _ := d.(map[string]interface{})
			if name, ok := dm["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	return names
}

// Send writes a raw server message.
func (s *Session) Send(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Content sends a serverContent message.
func (s *Session) Content(content map[string]interface{}) error {
	return s.Send(map[string]interface{}{"serverContent": content})
}

// Audio sends base64 PCM as a model turn part.
func (s *Session) Audio(data ...string) error {
	parts := make([]map[string]interface{}, len(data))
	for i, d := range data {
		parts[i] = map[string]interface{}{
			"inlineData": map[string]interface{}{"mimeType": "audio/pcm;rate=24000", "data": d},
		}
	}
	return s.Content(map[string]interface{}{"modelTurn": map[string]interface{}{"parts": parts}})
}

// OutputTranscript sends model speech text.
func (s *Session) OutputTranscript(text string) error {
	return s.Content(map[string]interface{}{"outputTranscription": map[string]interface{}{"text": text}})
}

// InputTranscript sends recognised user speech.
func (s *Session) InputTranscript(text string) error {
	return s.Content(map[string]interface{}{"inputTranscription": map[string]interface{}{"text": text}})
}

// TurnComplete ends the model turn.
func (s *Session) TurnComplete() error {
	return s.Content(map[string]interface{}{"turnComplete": true})
}

// Interrupt reports a user barge-in.
func (s *Session) Interrupt() error {
	return s.Content(map[string]interface{}{"interrupted": true})
}

// ToolCall asks the client to run a function.
func (s *Session) ToolCall(id, name string, args map[string]interface{}) error {
	return s.Send(map[string]interface{}{
		"toolCall": map[string]interface{}{
			"functionCalls": []map[string]interface{}{{"id": id, "name": name, "args": args}},
		},
	})
}

// CloseNormal performs a clean websocket close.
func (s *Session) CloseNormal() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	s.writeMu.Lock()
	err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return err
}

// Drop closes the socket without a close frame.
func (s *Session) Drop() {
	_ = s.conn.Close()
}
