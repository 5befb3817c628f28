// Package tunnel implements the UDP data plane that relays peer-to-peer
// game traffic between NAT-restricted players via the server. It never
// inspects the opaque FORWARD payload; it's a pure L4 relay keyed by
// session-assigned tunnel associations.
package tunnel

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	MsgKeepalive byte = 0
	MsgHello     byte = 1
	MsgForward   byte = 2
	MsgAck       byte = 3

	headerSize  = 1 + 4 + 1 + 2 // version + tunnelId + type + length
	IdleTimeout = 60 * time.Second
)

// SessionResolver validates a session token and, for FORWARD routing, maps
// a session to its current game membership.
type SessionResolver interface {
	// ResolveToken returns the sessionId a token authenticates, or ok=false.
	ResolveToken(token string) (sessionID uint32, ok bool)
	// GameSlot returns the (gameId, slot) a session currently occupies, or
	// ok=false if it isn't in a game.
	GameSlot(sessionID uint32) (gameID uint32, slot int, ok bool)
	// SlotSession returns the session occupying slot within gameID.
	SlotSession(gameID uint32, slot int) (sessionID uint32, ok bool)
}

type association struct {
	tunnelID  uint32
	sessionID uint32
	addr      *net.UDPAddr
	lastSeen  time.Time
}

// Server owns the UDP socket and the live tunnel associations.
type Server struct {
	Resolver SessionResolver
	Logger   *logrus.Logger

	conn *net.UDPConn

	mu             sync.Mutex
	byTunnel       map[uint32]*association
	bySession      map[uint32]*association
}

func NewServer(resolver SessionResolver, logger *logrus.Logger) *Server {
	return &Server{
		Resolver:  resolver,
		Logger:    logger,
		byTunnel:  make(map[uint32]*association),
		bySession: make(map[uint32]*association),
	}
}

// Listen opens the UDP socket on addr and runs the read loop until ctx is
// canceled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.conn = conn
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go s.expireLoop(ctx)

	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return nil
		default:
		}

		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.Logger.Warnf("tunnel: read error: %v", err)
			continue
		}

		s.handleDatagram(buf[:n], remote)
	}
}

func (s *Server) handleDatagram(data []byte, remote *net.UDPAddr) {
	if len(data) < headerSize {
		return
	}
	tunnelID := binary.LittleEndian.Uint32(data[1:5])
	msgType := data[5]
	length := binary.LittleEndian.Uint16(data[6:8])
	if int(length) > len(data)-headerSize {
		return
	}
	payload := data[headerSize : headerSize+int(length)]

	switch msgType {
	case MsgHello:
		s.handleHello(tunnelID, string(payload), remote)
	case MsgKeepalive:
		s.touch(tunnelID)
	case MsgForward:
		s.handleForward(tunnelID, payload)
	}
}

func (s *Server) handleHello(tunnelID uint32, token string, remote *net.UDPAddr) {
	sessionID, ok := s.Resolver.ResolveToken(token)
	if !ok {
		return
	}

	assoc := &association{tunnelID: tunnelID, sessionID: sessionID, addr: remote, lastSeen: time.Now()}

	s.mu.Lock()
	s.byTunnel[tunnelID] = assoc
	s.bySession[sessionID] = assoc
	s.mu.Unlock()

	s.send(remote, tunnelID, MsgAck, nil)
}

func (s *Server) touch(tunnelID uint32) {
	s.mu.Lock()
	if a, ok := s.byTunnel[tunnelID]; ok {
		a.lastSeen = time.Now()
	}
	s.mu.Unlock()
}

// handleForward rewrites the target slot field to identify the sender and
// forwards the opaque payload to that slot's last-known address, never
// inspecting what follows the slot field.
func (s *Server) handleForward(tunnelID uint32, payload []byte) {
	if len(payload) < 1 {
		return
	}
	targetSlot := int(payload[0])

	s.mu.Lock()
	sender, ok := s.byTunnel[tunnelID]
	if ok {
		sender.lastSeen = time.Now()
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	gameID, senderSlot, ok := s.Resolver.GameSlot(sender.sessionID)
	if !ok {
		return
	}
	targetSession, ok := s.Resolver.SlotSession(gameID, targetSlot)
	if !ok {
		return
	}

	s.mu.Lock()
	targetAssoc, ok := s.bySession[targetSession]
	s.mu.Unlock()
	if !ok {
		return
	}

	rewritten := make([]byte, len(payload))
	copy(rewritten, payload)
	rewritten[0] = byte(senderSlot)

	s.send(targetAssoc.addr, targetAssoc.tunnelID, MsgForward, rewritten)
}

func (s *Server) send(addr *net.UDPAddr, tunnelID uint32, msgType byte, payload []byte) {
	header := make([]byte, headerSize)
	header[0] = 1 // version
	binary.LittleEndian.PutUint32(header[1:5], tunnelID)
	header[5] = msgType
	binary.LittleEndian.PutUint16(header[6:8], uint16(len(payload)))

	datagram := append(header, payload...)
	if _, err := s.conn.WriteToUDP(datagram, addr); err != nil {
		s.Logger.Warnf("tunnel: write error: %v", err)
	}
}

// Forget removes a session's tunnel association. The session manager does
// not call it on disconnect; a disconnected session's association stays
// until expireIdle drops it after IdleTimeout without traffic.
func (s *Server) Forget(sessionID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.bySession[sessionID]; ok {
		delete(s.byTunnel, a.tunnelID)
		delete(s.bySession, sessionID)
	}
}

func (s *Server) expireLoop(ctx context.Context) {
	ticker := time.NewTicker(IdleTimeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.expireIdle()
		}
	}
}

func (s *Server) expireIdle() {
	cutoff := time.Now().Add(-IdleTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	for tunnelID, a := range s.byTunnel {
		if a.lastSeen.Before(cutoff) {
			delete(s.byTunnel, tunnelID)
			delete(s.bySession, a.sessionID)
		}
	}
}
