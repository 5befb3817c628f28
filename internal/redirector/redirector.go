// Package redirector implements the stateless SSLv3 service that tells a
// freshly launched client which host and port to reconnect to for the main
// session server.
package redirector

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/pocketrelay/internal/blaze"
	"github.com/dcrodman/pocketrelay/internal/tls3"
)

// Server accepts a connection, answers exactly one GET_SERVER_INSTANCE
// request with the configured main server address, and closes.
type Server struct {
	TargetHost string
	TargetPort uint16

	TLSConfig *tls3.ServerConfig
	Logger    *logrus.Logger
}

func New(targetHost string, targetPort uint16, tlsConfig *tls3.ServerConfig, logger *logrus.Logger) *Server {
	return &Server{
		TargetHost: targetHost,
		TargetPort: targetPort,
		TLSConfig:  tlsConfig,
		Logger:     logger,
	}
}

// Listen runs the accept loop on addr until ctx is canceled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.Logger.Infof("redirector: listening on %s", addr)

	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.Logger.Warnf("redirector: accept error: %v", err)
			continue
		}
		go s.serveOne(raw)
	}
}

// serveOne handles a single connection: handshake, one request, one reply,
// close. The service holds no session state between connections.
func (s *Server) serveOne(raw net.Conn) {
	defer raw.Close()

	conn, err := tls3.Server(raw, s.TLSConfig)
	if err != nil {
		s.Logger.Warnf("redirector: handshake failed: %v", err)
		return
	}
	defer conn.Close()

	reader := &blaze.Reader{}
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		packets, err := reader.Feed(buf[:n])
		if err != nil {
			s.Logger.Warnf("redirector: malformed packet: %v", err)
			return
		}
		for _, pkt := range packets {
			if pkt.Header.ComponentID != blaze.ComponentRedirector || pkt.Header.CommandID != blaze.CmdRedirectorGetServerInstance {
				continue
			}
			s.replyServerInstance(conn, pkt.Header.MessageID)
			return
		}
	}
}

func (s *Server) replyServerInstance(conn *tls3.Conn, messageID uint32) {
	body := blaze.Encode(blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("ADDR"), Value: blaze.Pair{int64(hostToInt(s.TargetHost)), int64(s.TargetPort)}},
		{Tag: blaze.PackTag("HOST"), Value: blaze.Str(s.TargetHost)},
		{Tag: blaze.PackTag("PORT"), Value: blaze.VarInt(s.TargetPort)},
	}})

	frame := blaze.EncodePacket(blaze.Header{
		ComponentID: blaze.ComponentRedirector,
		CommandID:   blaze.CmdRedirectorGetServerInstance,
		Type:        blaze.MessageTypeResponse,
		MessageID:   messageID,
	}, body)

	if _, err := conn.Write(frame); err != nil {
		s.Logger.Warnf("redirector: write error: %v", err)
	}
}

// hostToInt packs a dotted IPv4 address into a big-endian uint32, the form
// the real client expects in the ADDR pair; hostnames that don't resolve to
// an IPv4 literal yield 0 and the client falls back to HOST/PORT.
func hostToInt(host string) uint32 {
	ip := net.ParseIP(host)
	if ip == nil {
		return 0
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return 0
	}
	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
}
