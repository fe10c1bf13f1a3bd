// Package lifecycle owns the one live session of a game screen. It tears the
// previous session down before every open, and guards asynchronous callbacks
// with a generation number so a closed session can never touch the next one.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/glosings0n/Vut-Elimu/capture"
	"github.com/glosings0n/Vut-Elimu/events"
	"github.com/glosings0n/Vut-Elimu/game"
	"github.com/glosings0n/Vut-Elimu/live"
	"github.com/glosings0n/Vut-Elimu/logger"
	"github.com/glosings0n/Vut-Elimu/playback"
	"github.com/glosings0n/Vut-Elimu/toolcall"
)

// Defaults for Config.
const (
	DefaultSettleDelay  = 100 * time.Millisecond
	DefaultAdvanceDelay = 2 * time.Second
)

// Failure reasons published with session.failed.
const (
	ReasonMediaDenied = "media_denied"
	ReasonMedia       = "media"
	ReasonOutput      = "output"
	ReasonConnection  = "connection"
)

// Config wires a Manager to its devices, endpoint and sinks. Device, Outputs
// are required; everything else is optional.
type Config struct {
	Live    live.Config
	Device  capture.Device
	Outputs playback.OutputFactory

	FrameSize   int
	Video       capture.VideoConfig
	OrderPolicy playback.OrderPolicy

	SettleDelay  time.Duration
	AdvanceDelay time.Duration
	// Advancer picks the next content after a correct answer. Nil disables
	// automatic advancing.
	Advancer Advancer

	// Bus receives session events. Nil disables publishing.
	Bus *events.Bus

	Scores toolcall.ScoreSink
	// Results receives every score after Scores, typically a
	// results.Recorder.
	Results     toolcall.ScoreSink
	Transcripts live.TranscriptSink
	// OnSpeaking follows the player's speaking indicator.
	OnSpeaking func(speaking bool)
	// OnAbort is called once when Open fails to acquire media.
	OnAbort func(err error)
	// OnError is called once per session when an open connection fails.
	OnError func(err *live.ConnectionError)
}

func (c *Config) defaults() {
	if c.FrameSize <= 0 {
		c.FrameSize = capture.DefaultFrameSize
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.AdvanceDelay <= 0 {
		c.AdvanceDelay = DefaultAdvanceDelay
	}
}

// handle is everything one open session owns.
type handle struct {
	gen      uint64
	id       string
	content  game.Content
	profile  game.Profile
	emitter  *events.Emitter
	openedAt time.Time

	runCtx   context.Context
	cancel   context.CancelFunc
	stopOpen context.CancelFunc

	stream *capture.Stream
	audio  *capture.AudioPipeline
	video  *capture.VideoPipeline
	out    playback.Output
	player *playback.Player
	client *live.Client
}

// Manager owns at most one live session. Open, Close and Restart may be
// called from any goroutine; Close never waits for an Open in progress.
type Manager struct {
	cfg Config

	mu          sync.Mutex
	h           *handle
	last        live.State
	lastContent game.Content
	gen         atomic.Uint64
	active      atomic.Uint64

	micOn   atomic.Bool
	videoOn atomic.Bool

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewManager creates an idle manager with mic and video enabled.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	m := &Manager{cfg: cfg, last: live.StateIdle}
	m.micOn.Store(true)
	m.videoOn.Store(true)
	return m
}

// Generation returns the number of sessions opened so far.
func (m *Manager) Generation() uint64 {
	return m.gen.Load()
}

// State returns the connection state of the current session, or the final
// state of the last one.
func (m *Manager) State() live.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.h != nil && m.h.client != nil {
		return m.h.client.State()
	}
	return m.last
}

// SessionID returns the id of the open session, or "" when none is open.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.h == nil {
		return ""
	}
	return m.h.id
}

// Content returns what the open session is about or, when none is open,
// what the most recent one was about. ok reports whether a session is open.
func (m *Manager) Content() (c game.Content, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastContent, m.h != nil
}

func (m *Manager) current(gen uint64) bool {
	return m.active.Load() == gen
}

// ErrOpenAbandoned is returned by Open when Close, or a newer Open, ends the
// session before it finished starting.
var ErrOpenAbandoned = errors.New("session closed while opening")

// Open starts a session for c. Any open session is closed first. When media
// or audio output cannot be acquired the session is torn down, OnAbort is
// called once and the error is returned. Connection failures during the
// handshake are returned and not passed to OnError.
//
// Media acquisition and the handshake run without the manager lock, so Close
// stays effective while Open waits on a permission prompt or a slow server.
func (m *Manager) Open(ctx context.Context, c game.Content) error {
	aborted, err := m.open(ctx, c)
	if aborted && m.cfg.OnAbort != nil {
		m.cfg.OnAbort(err)
	}
	return err
}

func (m *Manager) open(ctx context.Context, c game.Content) (aborted bool, err error) {
	m.mu.Lock()
	if err := m.closeLocked(); err != nil {
		logger.WarnContext(ctx, "error closing previous session", "error", err)
	}

	profile, err := game.NewProfile(c)
	if err != nil {
		m.mu.Unlock()
		return false, err
	}

	h, sctx := m.beginLocked(ctx, c, profile)
	openCtx, stopOpen := context.WithCancel(sctx)
	defer stopOpen()
	h.stopOpen = stopOpen

	if profile.PlayAudio {
		out, err := m.cfg.Outputs(sctx)
		if err != nil {
			err = m.abortLocked(sctx, h, ReasonOutput, fmt.Errorf("open audio output: %w", err))
			m.mu.Unlock()
			return true, err
		}
		h.out = out
		h.player = m.newPlayer(h, out)
	}
	m.mu.Unlock()

	stream, err := m.cfg.Device.Open(openCtx, profile.Constraints)

	m.mu.Lock()
	if m.h != h {
		m.mu.Unlock()
		if err == nil {
			stream.Stop()
		}
		logger.DebugContext(sctx, "session closed during media acquisition")
		return false, ErrOpenAbandoned
	}
	if err != nil {
		reason := ReasonMedia
		if errors.Is(err, capture.ErrMediaAccessDenied) {
			reason = ReasonMediaDenied
		}
		err = m.abortLocked(sctx, h, reason, err)
		m.mu.Unlock()
		return true, err
	}
	h.stream = stream

	dispatcher := toolcall.NewDispatcher(m.scoreSink(h),
		toolcall.WithKinds(profile.Tools...),
		toolcall.WithSessionID(h.id),
		toolcall.WithObserver(func(o toolcall.Outcome) {
			h.emitter.ToolCallHandled(o.Tool, o.CallID, o.Status)
		}),
	)
	client := live.NewClient(m.cfg.Live, m.handlers(h.runCtx, h), dispatcher)
	h.client = client
	m.mu.Unlock()

	setup := live.Setup{Instruction: profile.Instruction, Tools: toolcall.Declarations(profile.Tools...)}
	err = client.Connect(openCtx, setup)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.h != h {
		logger.DebugContext(sctx, "session closed during connect")
		return false, ErrOpenAbandoned
	}
	if err != nil {
		h.emitter.SessionFailed(ReasonConnection, err)
		_ = m.closeLocked()
		return false, err
	}

	m.startPipelines(h.runCtx, h)
	h.openedAt = time.Now()
	h.emitter.SessionOpened(h.audio != nil, h.video != nil)
	logger.SessionEvent(sctx, "session opened",
		"audio", h.audio != nil, "video", h.video != nil, "tools", len(profile.Tools))
	return false, nil
}

// beginLocked registers a new handle for c as the current session.
func (m *Manager) beginLocked(ctx context.Context, c game.Content, profile game.Profile) (*handle, context.Context) {
	gen := m.gen.Add(1)
	id := uuid.New().String()
	h := &handle{
		gen:     gen,
		id:      id,
		content: c,
		profile: profile,
		emitter: events.NewEmitter(m.cfg.Bus, id, gen, string(c.Mode)),
	}

	sctx := logger.WithSessionID(ctx, id)
	sctx = logger.WithGeneration(sctx, gen)
	sctx = logger.WithGameMode(sctx, string(c.Mode))
	sctx = logger.WithComponent(sctx, "lifecycle")
	h.runCtx, h.cancel = context.WithCancel(context.WithoutCancel(sctx))

	m.h = h
	m.lastContent = c
	m.active.Store(gen)
	m.last = live.StateIdle
	return h, sctx
}

// abortLocked tears down a half-open session after a capture or output
// failure.
func (m *Manager) abortLocked(ctx context.Context, h *handle, reason string, err error) error {
	logger.SessionError(ctx, "lifecycle.open", err, "reason", reason)
	h.emitter.SessionFailed(reason, err)
	_ = m.closeLocked()
	return err
}

func (m *Manager) newPlayer(h *handle, out playback.Output) *playback.Player {
	gen := h.gen
	return playback.NewPlayer(out,
		playback.WithOrderPolicy(m.cfg.OrderPolicy),
		playback.WithCurrentCheck(func() bool { return m.current(gen) }),
		playback.WithSpeakingHandler(func(speaking bool) {
			if m.current(gen) && m.cfg.OnSpeaking != nil {
				m.cfg.OnSpeaking(speaking)
			}
		}),
		playback.WithScheduledHandler(h.emitter.AudioScheduled),
		playback.WithDropHandler(h.emitter.AudioDropped),
	)
}

func (m *Manager) handlers(ctx context.Context, h *handle) live.Handlers {
	gen := h.gen
	return live.Handlers{
		OnAudio: func(data string) {
			if m.current(gen) && h.player != nil {
				h.player.Enqueue(ctx, data)
			}
		},
		OnInterrupted: func() {
			if m.current(gen) && h.player != nil {
				h.player.Flush()
			}
		},
		OnTranscript: func(kind live.TranscriptKind, text string) {
			if !m.current(gen) {
				return
			}
			h.emitter.Transcript(kind.String(), text)
			if m.cfg.Transcripts != nil {
				m.cfg.Transcripts.OnTranscript(kind, text)
			}
		},
		OnTurnComplete: func() {
			if m.current(gen) {
				h.emitter.TurnCompleted()
			}
		},
		OnStateChange: func(from, to live.State) {
			h.emitter.StateChanged(from.String(), to.String())
		},
		OnError: func(err *live.ConnectionError) {
			if err.Handshake() {
				return
			}
			go m.connectionFailed(h, err)
		},
	}
}

// connectionFailed tears down the session that owned the failed connection,
// if it is still the open one, then reports the error.
func (m *Manager) connectionFailed(h *handle, err *live.ConnectionError) {
	m.mu.Lock()
	if m.h == h {
		h.emitter.SessionFailed(ReasonConnection, err)
		_ = m.closeLocked()
		m.last = live.StateError
	}
	m.mu.Unlock()

	if m.cfg.OnError != nil {
		m.cfg.OnError(err)
	}
}

func (m *Manager) scoreSink(h *handle) toolcall.ScoreSink {
	gen := h.gen
	return toolcall.ScoreSinkFunc(func(ev toolcall.ScoreEvent) {
		if !m.current(gen) {
			return
		}
		h.emitter.ScoreRecorded(ev)
		if m.cfg.Scores != nil {
			m.cfg.Scores.OnScore(ev)
		}
		if m.cfg.Results != nil {
			m.cfg.Results.OnScore(ev)
		}
		if ev.Correct {
			m.scheduleAdvance(gen, h.content)
		}
	})
}

func (m *Manager) startPipelines(ctx context.Context, h *handle) {
	send := m.frameSink(ctx, h)
	if track := h.stream.AudioTrack(); track != nil {
		h.audio = capture.NewAudioPipeline(track, m.cfg.FrameSize, send)
		h.audio.SetActive(m.micOn.Load())
		h.audio.Start(ctx)
	}
	if track := h.stream.VideoTrack(); track != nil {
		h.video = capture.NewVideoPipeline(track, m.cfg.Video, send)
		h.video.SetActive(m.videoOn.Load())
		h.video.Start(ctx)
	}
}

func (m *Manager) frameSink(ctx context.Context, h *handle) capture.FrameSink {
	gen := h.gen
	client := h.client
	return func(f capture.Frame) {
		if !m.current(gen) {
			return
		}
		if err := client.SendFrame(f); err != nil {
			logger.WarnContext(ctx, "failed to send frame", "kind", f.Kind.String(), "error", err)
			return
		}
		size := len(f.JPEG)
		if f.Kind == capture.KindAudio {
			size = len(f.Samples) * 2
		}
		h.emitter.FrameSent(f.Kind.String(), size)
	}
}

// SetMicActive toggles audio transmission without releasing the microphone.
// The setting carries over to later sessions.
func (m *Manager) SetMicActive(active bool) {
	m.micOn.Store(active)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.h != nil && m.h.audio != nil {
		m.h.audio.SetActive(active)
	}
}

// SetVideoActive toggles snapshot transmission without releasing the camera.
func (m *Manager) SetVideoActive(active bool) {
	m.videoOn.Store(active)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.h != nil && m.h.video != nil {
		m.h.video.SetActive(active)
	}
}

// MicActive reports the microphone toggle.
func (m *Manager) MicActive() bool { return m.micOn.Load() }

// VideoActive reports the camera toggle.
func (m *Manager) VideoActive() bool { return m.videoOn.Load() }

// Close tears the open session down. It is idempotent and safe when nothing
// was ever opened.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

// closeLocked stops capture first, then audio output, then the connection.
func (m *Manager) closeLocked() error {
	m.cancelAdvance()

	h := m.h
	if h == nil {
		return nil
	}
	m.h = nil
	m.active.Store(0)
	if h.stopOpen != nil {
		h.stopOpen()
	}

	if h.audio != nil {
		h.audio.Stop()
	}
	if h.video != nil {
		h.video.Stop()
	}
	if h.stream != nil {
		h.stream.Stop()
	}

	if h.player != nil {
		h.player.Close()
	}
	var errs []error
	if h.out != nil {
		if err := h.out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audio output: %w", err))
		}
	}

	if h.client != nil {
		if err := h.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		m.last = h.client.State()
	} else {
		m.last = live.StateClosed
	}
	h.cancel()

	var d time.Duration
	if !h.openedAt.IsZero() {
		d = time.Since(h.openedAt)
	}
	h.emitter.SessionClosed(d)
	logger.Debug("session closed", "session_id", h.id, "generation", h.gen)
	return errors.Join(errs...)
}

// Restart closes the open session, waits for the settle delay and opens c.
func (m *Manager) Restart(ctx context.Context, c game.Content) error {
	if err := m.Close(); err != nil {
		logger.WarnContext(ctx, "error closing session before restart", "error", err)
	}

	t := time.NewTimer(m.cfg.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	return m.Open(ctx, c)
}
