// Package session implements the per-connection state machine that sits
// between the framed Blaze transport and the Lobby Manager, Matchmaking
// Engine, and Tunnel Server: it owns connection lifecycle, authentication,
// subscriptions, and the bounded outbound queue every reply and
// notification is delivered through.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dcrodman/pocketrelay/internal/core/data"
	"github.com/dcrodman/pocketrelay/internal/tls3"
)

// OutboundQueueSize bounds how many encoded packets may be pending delivery
// to a session before it's considered unresponsive and terminated.
const OutboundQueueSize = 256

// IdleTimeout disconnects a session that hasn't sent the server any data in
// this long; outbound traffic does not count as activity.
const IdleTimeout = 5 * time.Minute

// NetworkInfo is the client-reported address/port information cached at
// PreAuth time and handed back out in the session-info snapshot a subscriber
// receives (sessionInfoBody) so peers can establish direct or tunneled
// connections to each other.
type NetworkInfo struct {
	InternalAddr string
	InternalPort uint16
	ExternalAddr string
	ExternalPort uint16
}

// Session is one connected client's state. Every mutable field is guarded
// by mu except outbound, which is its own channel.
type Session struct {
	ID   uint32
	conn *tls3.Conn

	mu            sync.Mutex
	account       *data.Account
	networkInfo   NetworkInfo
	gameID        uint32
	inGame        bool
	subscriptions map[uint32]struct{}

	outbound  chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	lastActivity atomic.Value
}

func newSession(id uint32, conn *tls3.Conn) *Session {
	s := &Session{
		ID:            id,
		conn:          conn,
		subscriptions: make(map[uint32]struct{}),
		outbound:      make(chan []byte, OutboundQueueSize),
		closed:        make(chan struct{}),
	}
	s.touch()
	return s
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now())
}

func (s *Session) idleFor() time.Duration {
	last, _ := s.lastActivity.Load().(time.Time)
	return time.Since(last)
}

// Account returns the authenticated account, or nil if this session hasn't
// logged in yet.
func (s *Session) Account() *data.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

func (s *Session) setAccount(a *data.Account) {
	s.mu.Lock()
	s.account = a
	s.mu.Unlock()
}

func (s *Session) PlayerID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return 0
	}
	return uint32(s.account.ID)
}

func (s *Session) NetworkInfo() NetworkInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.networkInfo
}

func (s *Session) SetNetworkInfo(info NetworkInfo) {
	s.mu.Lock()
	s.networkInfo = info
	s.mu.Unlock()
}

func (s *Session) GameID() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameID, s.inGame
}

func (s *Session) SetGameID(gameID uint32) {
	s.mu.Lock()
	s.gameID = gameID
	s.inGame = true
	s.mu.Unlock()
}

func (s *Session) ClearGame() {
	s.mu.Lock()
	s.gameID = 0
	s.inGame = false
	s.mu.Unlock()
}

func (s *Session) Subscribe(targetID uint32) {
	s.mu.Lock()
	s.subscriptions[targetID] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) Unsubscribe(targetID uint32) {
	s.mu.Lock()
	delete(s.subscriptions, targetID)
	s.mu.Unlock()
}

func (s *Session) IsSubscribedTo(targetID uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subscriptions[targetID]
	return ok
}

// enqueue places an already-framed packet on the outbound queue. If the
// queue is full the session is considered unresponsive and is terminated,
// per the bounded-queue overflow policy.
func (s *Session) enqueue(frame []byte) {
	select {
	case s.outbound <- frame:
	case <-s.closed:
	default:
		s.terminate()
	}
}

func (s *Session) terminate() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}
