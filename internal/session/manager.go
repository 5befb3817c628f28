package session

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/pocketrelay/internal/blaze"
	"github.com/dcrodman/pocketrelay/internal/core"
	"github.com/dcrodman/pocketrelay/internal/lobby"
	"github.com/dcrodman/pocketrelay/internal/matchmaking"
	"github.com/dcrodman/pocketrelay/internal/retriever"
	"github.com/dcrodman/pocketrelay/internal/tls3"
	"github.com/dcrodman/pocketrelay/internal/tunnel"
)

// Manager owns every live Session and wires the component handler table to
// the Lobby Manager, Matchmaking Engine, and Retriever. It satisfies
// lobby.SessionLookup and tunnel.SessionResolver so those packages never
// need a direct dependency on this one.
type Manager struct {
	Config      *core.Config
	Logger      *logrus.Logger
	Lobby       *lobby.Manager
	Matchmaking *matchmaking.Engine
	Retriever   *retriever.Retriever
	TLSConfig   *tls3.ServerConfig

	mu       sync.RWMutex
	sessions map[uint32]*Session
	nextID   uint32

	// tokens maps the opaque tunnel-auth token issued at login back to the
	// owning session id, used by ResolveToken.
	tokenMu sync.RWMutex
	tokens  map[string]uint32
}

func NewManager(cfg *core.Config, logger *logrus.Logger, tlsConfig *tls3.ServerConfig) *Manager {
	m := &Manager{
		Config:    cfg,
		Logger:    logger,
		TLSConfig: tlsConfig,
		sessions:  make(map[uint32]*Session),
		tokens:    make(map[string]uint32),
	}
	m.Lobby = &lobby.Manager{
		Sessions:    m,
		Notify:      m.notify,
		Subscribe:   m.subscribeSessions,
		Unsubscribe: m.unsubscribeSessions,
		Logger:      logger,
	}
	m.Matchmaking = matchmaking.NewEngine(m.Lobby, m.notify, logger)
	return m
}

// IsLive implements lobby.SessionLookup.
func (m *Manager) IsLive(sessionID uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok
}

// ResolveToken implements tunnel.SessionResolver.
func (m *Manager) ResolveToken(token string) (uint32, bool) {
	m.tokenMu.RLock()
	defer m.tokenMu.RUnlock()
	id, ok := m.tokens[token]
	return id, ok
}

// GameSlot implements tunnel.SessionResolver.
func (m *Manager) GameSlot(sessionID uint32) (uint32, int, bool) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return 0, 0, false
	}
	gameID, inGame := s.GameID()
	if !inGame {
		return 0, 0, false
	}
	g := m.Lobby.Game(gameID)
	if g == nil {
		return 0, 0, false
	}
	return gameID, g.SlotOf(sessionID), true
}

// SlotSession implements tunnel.SessionResolver.
func (m *Manager) SlotSession(gameID uint32, slot int) (uint32, bool) {
	g := m.Lobby.Game(gameID)
	if g == nil || slot < 0 || slot >= lobby.MaxSlots {
		return 0, false
	}
	id := g.Slots[slot]
	return id, id != 0
}

var _ tunnel.SessionResolver = (*Manager)(nil)

func (m *Manager) issueToken(sessionID uint32) string {
	token := generateToken(sessionID)
	m.tokenMu.Lock()
	m.tokens[token] = sessionID
	m.tokenMu.Unlock()
	return token
}

// generateToken mints an opaque tunnel/session auth token. A UUID gives
// callers something log-friendly without leaking the session id it maps
// to, unlike a simple counter.
func generateToken(sessionID uint32) string {
	return uuid.NewString()
}

func (m *Manager) forgetTokensFor(sessionID uint32) {
	m.tokenMu.Lock()
	for tok, id := range m.tokens {
		if id == sessionID {
			delete(m.tokens, tok)
		}
	}
	m.tokenMu.Unlock()
}

// subscribeSessions registers subscriberID as wanting presence updates
// about targetID, the callback passed to lobby.Manager for its implicit
// game-membership subscriptions.
func (m *Manager) subscribeSessions(subscriberID, targetID uint32) {
	m.mu.RLock()
	s, ok := m.sessions[subscriberID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	s.Subscribe(targetID)
}

// unsubscribeSessions reverses subscribeSessions.
func (m *Manager) unsubscribeSessions(subscriberID, targetID uint32) {
	m.mu.RLock()
	s, ok := m.sessions[subscriberID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	s.Unsubscribe(targetID)
}

// notify delivers a notify-type packet to one session's outbound queue, the
// callback passed to both lobby.Manager and matchmaking.Engine.
func (m *Manager) notify(sessionID uint32, componentID, commandID uint16, body blaze.Object) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	frame := blaze.EncodePacket(blaze.Header{
		ComponentID: componentID,
		CommandID:   commandID,
		Type:        blaze.MessageTypeNotify,
	}, blaze.Encode(body))
	s.enqueue(frame)
}

// Listen runs the main session server's accept loop on addr until ctx is
// canceled.
func (m *Manager) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	m.Logger.Infof("session: listening on %s", addr)

	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.Logger.Warnf("session: accept error: %v", err)
			continue
		}
		go m.accept(ctx, raw)
	}
}

func (m *Manager) accept(ctx context.Context, raw net.Conn) {
	conn, err := tls3.Server(raw, m.TLSConfig)
	if err != nil {
		m.Logger.Warnf("session: handshake failed: %v", err)
		raw.Close()
		return
	}

	id := atomic.AddUint32(&m.nextID, 1)
	s := newSession(id, conn)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.Logger.Debugf("session %d: connected", id)
	m.serve(ctx, s)
	m.cleanup(s)
}

func (m *Manager) cleanup(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	subscribers := m.subscribersOfLocked(s.ID)
	m.mu.Unlock()

	m.forgetTokensFor(s.ID)
	m.Matchmaking.CancelSession(s.ID)
	if gameID, inGame := s.GameID(); inGame {
		m.Lobby.LeaveGame(gameID, s.ID)
	}
	if m.Retriever != nil {
		m.Retriever.ForgetSession(s.ID)
	}

	removedBody := blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("PID0"), Value: blaze.VarInt(s.ID)},
	}}
	for _, sub := range subscribers {
		m.notify(sub, blaze.ComponentUserSessions, blaze.NotifyUserSessionsSessionDetails, removedBody)
	}

	s.terminate()
	m.Logger.Debugf("session %d: disconnected", s.ID)
}

// subscribersOfLocked returns every live session subscribed to targetID.
// Must be called with m.mu held.
func (m *Manager) subscribersOfLocked(targetID uint32) []uint32 {
	var out []uint32
	for id, sess := range m.sessions {
		if sess.IsSubscribedTo(targetID) {
			out = append(out, id)
		}
	}
	return out
}
