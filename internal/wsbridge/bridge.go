// Package wsbridge runs the bidirectional session protocol: context and
// screenshot captures in from connected frontends, analyzer-derived
// instructions back out.
package wsbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/contextbridge/bridged/internal/analyzer"
	"github.com/contextbridge/bridged/internal/page"
	"github.com/contextbridge/bridged/internal/protocol"
)

// ErrNoSession is returned when an operation targets a session id that is
// not connected.
var ErrNoSession = errors.New("no such session")

// Recorder observes every instruction emitted to a session. The bridge
// never reads it back; delivery stays fire-and-forget.
type Recorder interface {
	Record(sessionID string, ins protocol.Instruction)
}

// Options configures the bridge.
type Options struct {
	CheckOrigin     func(*http.Request) bool
	ReadBufferSize  int
	WriteBufferSize int
	WriteWait       time.Duration
	// InstructionDelay paces consecutive instruction sends so a burst does
	// not overwhelm the frontend.
	InstructionDelay time.Duration
	HistoryLimit     int
	Recorder         Recorder
	Logger           *zap.Logger
}

// Bridge owns the session set and the per-session message loops. Each
// session's read loop is the only writer to that session's history entry.
type Bridge struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	upgrader  websocket.Upgrader
	writeWait time.Duration
	delay     time.Duration

	store      *page.Store
	history    *page.History
	analyzer   *analyzer.Analyzer
	summarizer *page.Summarizer
	recorder   Recorder
	log        *zap.Logger
}

// Session is one connected frontend.
type Session struct {
	ID          string
	Conn        *websocket.Conn
	RemoteAddr  string
	UserAgent   string
	ConnectedAt time.Time

	mu               sync.Mutex
	lastSeen         time.Time
	lastURL          string
	contextsReceived int
	instructionsSent int
}

func NewBridge(store *page.Store, history *page.History, an *analyzer.Analyzer, summarizer *page.Summarizer, opts Options) *Bridge {
	up := websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     opts.CheckOrigin,
	}
	if up.ReadBufferSize == 0 {
		up.ReadBufferSize = 4096
	}
	if up.WriteBufferSize == 0 {
		up.WriteBufferSize = 4096
	}
	writeWait := opts.WriteWait
	if writeWait == 0 {
		writeWait = 5 * time.Second
	}
	delay := opts.InstructionDelay
	if delay == 0 {
		delay = 100 * time.Millisecond
	}
	if store == nil {
		store = page.NewStore()
	}
	if history == nil {
		history = page.NewHistory(opts.HistoryLimit)
	}
	if an == nil {
		an = analyzer.New()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Bridge{
		sessions:   make(map[string]*Session),
		upgrader:   up,
		writeWait:  writeWait,
		delay:      delay,
		store:      store,
		history:    history,
		analyzer:   an,
		summarizer: summarizer,
		recorder:   opts.Recorder,
		log:        log,
	}
}

// HandleWS upgrades the request and runs the session loop until the peer
// disconnects. The session's history is discarded on exit; nothing
// survives a reconnect.
func (b *Bridge) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	now := time.Now()
	session := &Session{
		ID:          uuid.NewString(),
		Conn:        conn,
		RemoteAddr:  r.RemoteAddr,
		UserAgent:   r.UserAgent(),
		ConnectedAt: now,
		lastSeen:    now,
	}

	b.mu.Lock()
	b.sessions[session.ID] = session
	b.mu.Unlock()

	b.log.Info("session connected",
		zap.String("session", session.ID),
		zap.String("remote", session.RemoteAddr))

	b.readLoop(session)

	b.mu.Lock()
	delete(b.sessions, session.ID)
	b.mu.Unlock()
	b.history.Drop(session.ID)

	conn.Close()
	b.log.Info("session disconnected", zap.String("session", session.ID))
}

func (b *Bridge) readLoop(session *Session) {
	for {
		_, raw, err := session.Conn.ReadMessage()
		if err != nil {
			return
		}
		session.touch()

		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			b.sendAck(session, protocol.TypeContextError, protocol.Ack{
				Status: "error",
				Error:  fmt.Sprintf("invalid message: %v", err),
			})
			continue
		}
		b.dispatch(session, msg)
	}
}

// dispatch handles one inbound message. Handler failures are reported back
// as a context_error acknowledgment and never end the loop; only a
// transport-level disconnect does that.
func (b *Bridge) dispatch(session *Session, msg protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("message handler panicked",
				zap.String("session", session.ID),
				zap.String("type", string(msg.Type)),
				zap.Any("panic", r))
			b.sendAck(session, protocol.TypeContextError, protocol.Ack{
				Status: "error",
				Error:  fmt.Sprintf("internal error handling %s", msg.Type),
			})
		}
	}()

	switch msg.Type {
	case protocol.TypeAuth:
		b.sendAck(session, protocol.TypeAuthResponse, protocol.Ack{Status: "success"})

	case protocol.TypeContext, protocol.TypeContextChange:
		b.handleContext(session, msg)

	case protocol.TypeScreenshot:
		b.handleScreenshot(session, msg)

	case protocol.TypeInstructionResult:
		var result protocol.InstructionResult
		if err := json.Unmarshal(msg.Data, &result); err != nil {
			b.log.Warn("bad instruction result", zap.String("session", session.ID), zap.Error(err))
			return
		}
		// Log only: no reply, no retry, no state change.
		b.log.Info("instruction result",
			zap.String("session", session.ID),
			zap.String("instruction", result.InstructionID),
			zap.String("status", result.Status),
			zap.String("error", result.Error))

	case protocol.TypePong:
		// Keepalive, nothing to do.

	default:
		b.echo(session, msg)
	}
}

func (b *Bridge) handleContext(session *Session, msg protocol.Message) {
	snap, err := page.ParseSnapshot(msg.Data)
	if err != nil {
		b.sendAck(session, protocol.TypeContextError, protocol.Ack{
			Status: "error",
			Error:  err.Error(),
		})
		return
	}
	if b.summarizer != nil {
		snap = b.summarizer.Summarize(snap)
	}

	b.store.PutContext(snap)
	session.noteContext(snap.URL)

	analysis := b.analyzer.Analyze(snap)
	instructions := b.analyzer.Instructions(snap, analysis)
	b.log.Debug("context analyzed",
		zap.String("session", session.ID),
		zap.String("url", snap.URL),
		zap.String("pageType", string(analysis.PageType)),
		zap.Int("issues", len(analysis.Issues)),
		zap.Int("instructions", len(instructions)))

	for i, ins := range instructions {
		if i > 0 {
			time.Sleep(b.delay)
		}
		if err := b.sendInstruction(session, ins); err != nil {
			b.log.Warn("instruction send failed",
				zap.String("session", session.ID), zap.Error(err))
			break
		}
	}

	b.history.Append(session.ID, snap)
	b.sendAck(session, protocol.TypeContextReceived, protocol.Ack{
		Status:       "success",
		URL:          snap.URL,
		Instructions: len(instructions),
	})
}

func (b *Bridge) handleScreenshot(session *Session, msg protocol.Message) {
	var payload protocol.ScreenshotPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		b.sendAck(session, protocol.TypeContextError, protocol.Ack{
			Status: "error",
			Error:  fmt.Sprintf("invalid screenshot payload: %v", err),
		})
		return
	}
	url := payload.URL
	if url == "" {
		url = "unknown"
	}
	b.store.PutScreenshot(url, payload.Screenshot)
	b.sendAck(session, protocol.TypeScreenshotAck, protocol.Ack{
		Status: "success",
		URL:    url,
		Size:   len(payload.Screenshot),
	})
}

// echo wraps unrecognized messages and sends them back with a fresh
// timestamp, preserving the original id.
func (b *Bridge) echo(session *Session, msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = b.send(session, protocol.Message{
		Type:      protocol.TypeEcho,
		Data:      data,
		Timestamp: protocol.NowMillis(),
		ID:        msg.ID,
	})
}

func (b *Bridge) sendInstruction(session *Session, ins protocol.Instruction) error {
	msg, err := protocol.NewMessage(protocol.TypeInstruction, ins)
	if err != nil {
		return err
	}
	msg.ID = ins.ID
	if err := b.send(session, msg); err != nil {
		return err
	}
	session.noteInstruction()
	if b.recorder != nil {
		b.recorder.Record(session.ID, ins)
	}
	return nil
}

func (b *Bridge) sendAck(session *Session, t protocol.MessageType, ack protocol.Ack) {
	msg, err := protocol.NewMessage(t, ack)
	if err != nil {
		b.log.Error("encode ack failed", zap.Error(err))
		return
	}
	if err := b.send(session, msg); err != nil {
		b.log.Warn("ack send failed",
			zap.String("session", session.ID),
			zap.String("type", string(t)),
			zap.Error(err))
	}
}

func (b *Bridge) send(session *Session, msg protocol.Message) error {
	session.mu.Lock()
	defer session.mu.Unlock()
	_ = session.Conn.SetWriteDeadline(time.Now().Add(b.writeWait))
	return session.Conn.WriteJSON(msg)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) noteContext(url string) {
	s.mu.Lock()
	s.contextsReceived++
	s.lastURL = url
	s.mu.Unlock()
}

func (s *Session) noteInstruction() {
	s.mu.Lock()
	s.instructionsSent++
	s.mu.Unlock()
}

// SessionInfo is the admin-facing view of one session.
type SessionInfo struct {
	ID               string    `json:"id"`
	RemoteAddr       string    `json:"remote_addr,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	ConnectedAt      time.Time `json:"connected_at"`
	LastSeen         time.Time `json:"last_seen"`
	LastURL          string    `json:"last_url,omitempty"`
	ContextsReceived int       `json:"contexts_received"`
	InstructionsSent int       `json:"instructions_sent"`
}

// ListSessions reports every connected session.
func (b *Bridge) ListSessions() []SessionInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]SessionInfo, 0, len(b.sessions))
	for _, s := range b.sessions {
		s.mu.Lock()
		out = append(out, SessionInfo{
			ID:               s.ID,
			RemoteAddr:       s.RemoteAddr,
			UserAgent:        s.UserAgent,
			ConnectedAt:      s.ConnectedAt,
			LastSeen:         s.lastSeen,
			LastURL:          s.lastURL,
			ContextsReceived: s.contextsReceived,
			InstructionsSent: s.instructionsSent,
		})
		s.mu.Unlock()
	}
	return out
}

// Count reports the number of connected sessions.
func (b *Bridge) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// DisconnectSession force-closes one session; its read loop then winds the
// session down as usual.
func (b *Bridge) DisconnectSession(id string) error {
	b.mu.RLock()
	session := b.sessions[id]
	b.mu.RUnlock()
	if session == nil {
		return ErrNoSession
	}
	return session.Conn.Close()
}

// History exposes the bridge's session history store.
func (b *Bridge) History() *page.History {
	return b.history
}
