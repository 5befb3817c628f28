// Package tls3 is a from-scratch, narrowly scoped implementation of SSLv3
// sufficient to speak to a game client that negotiates nothing newer. It
// MUST NOT be used as a general-purpose TLS library: SSLv3 with RC4 offers
// no meaningful confidentiality by modern standards. It exists purely for
// wire compatibility with a client that cannot be patched.
package tls3

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// CipherSuite identifies one of the two suites this package will ever
// negotiate.
type CipherSuite uint16

const (
	// SuiteRC4128SHA is TLS_RSA_WITH_RC4_128_SHA.
	SuiteRC4128SHA CipherSuite = 0x0005
	// SuiteRC4128MD5 is TLS_RSA_WITH_RC4_128_MD5.
	SuiteRC4128MD5 CipherSuite = 0x0004
)

var supportedSuites = map[CipherSuite]bool{
	SuiteRC4128SHA: true,
	SuiteRC4128MD5: true,
}

var warnOnce sync.Once

func warnInsecure(log *logrus.Logger) {
	warnOnce.Do(func() {
		log.Warn("tls3: hand-rolled SSLv3/RC4 transport active — this provides NO real " +
			"confidentiality and exists only for compatibility with a client that cannot " +
			"negotiate anything newer. Never reuse this package as a general-purpose TLS stack.")
	})
}

// ServerConfig carries the material the server handshake needs.
type ServerConfig struct {
	Certificate *x509.Certificate
	PrivateKey  *rsa.PrivateKey
	Logger      *logrus.Logger
}

// Server wraps raw to produce an *Conn that has completed the SSLv3 server
// handshake, or returns a *HandshakeFailed error.
func Server(raw net.Conn, cfg *ServerConfig) (*Conn, error) {
	warnInsecure(cfg.Logger)

	st, err := serverHandshake(raw, cfg)
	if err != nil {
		return nil, err
	}
	return newConn(raw, st), nil
}

// ClientConfig carries the material the client handshake needs. Pocket
// Relay uses the client path only to speak to the real upstream servers, so
// it deliberately never validates the peer certificate — the genuine
// servers present a long-expired certificate in the wild.
type ClientConfig struct {
	Logger *logrus.Logger
}

// Client performs the SSLv3 client handshake over raw and returns a ready
// *Conn.
func Client(raw net.Conn, cfg *ClientConfig) (*Conn, error) {
	warnInsecure(cfg.Logger)

	st, err := clientHandshake(raw, cfg)
	if err != nil {
		return nil, err
	}
	return newConn(raw, st), nil
}

func suiteName(s CipherSuite) string {
	switch s {
	case SuiteRC4128SHA:
		return "TLS_RSA_WITH_RC4_128_SHA"
	case SuiteRC4128MD5:
		return "TLS_RSA_WITH_RC4_128_MD5"
	default:
		return fmt.Sprintf("0x%04x", uint16(s))
	}
}
