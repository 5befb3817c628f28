package tls3

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"net"
)

// clientHandshake implements the SSLv3 client side used by the Upstream
// Retriever against the real game servers. Per spec §4.3 it processes the
// server's certificate only to extract its RSA public key for key
// exchange — it never validates the certificate chain, since the real
// servers present a long-expired certificate in the wild.
func clientHandshake(raw net.Conn, cfg *ClientConfig) (*handshakeState, error) {
	hs := &plaintextHandshakeIO{conn: raw}

	clientRandom := make([]byte, 32)
	if _, err := rand.Read(clientRandom); err != nil {
		return nil, handshakeFailed("client_hello", err)
	}

	if err := writeClientHello(hs, clientRandom); err != nil {
		return nil, handshakeFailed("client_hello", err)
	}

	serverRandom, suite, err := readServerHello(hs)
	if err != nil {
		return nil, handshakeFailed("server_hello", err)
	}

	pub, err := readServerCertificate(hs)
	if err != nil {
		return nil, handshakeFailed("certificate", err)
	}

	if err := readServerHelloDone(hs); err != nil {
		return nil, handshakeFailed("server_hello_done", err)
	}

	preMaster := make([]byte, 48)
	preMaster[0] = 0x03
	preMaster[1] = 0x00
	if _, err := rand.Read(preMaster[2:]); err != nil {
		return nil, handshakeFailed("client_key_exchange", err)
	}

	if err := writeClientKeyExchange(hs, pub, preMaster); err != nil {
		return nil, handshakeFailed("client_key_exchange", err)
	}

	masterSecret := masterSecretFrom(preMaster, clientRandom, serverRandom)
	macLen := 20
	if suite == SuiteRC4128MD5 {
		macLen = 16
	}
	keys := deriveKeys(masterSecret, clientRandom, serverRandom, macLen, 16)

	st, err := newHandshakeState(suite, keys, false)
	if err != nil {
		return nil, handshakeFailed("key_derivation", err)
	}

	if err := writeChangeCipherSpec(hs); err != nil {
		return nil, handshakeFailed("change_cipher_spec", err)
	}
	if err := writeFinished(hs, st, masterSecret, hs.transcript(), false); err != nil {
		return nil, handshakeFailed("client_finished", err)
	}

	if err := readChangeCipherSpec(hs); err != nil {
		return nil, handshakeFailed("change_cipher_spec", err)
	}
	transcriptForServerFinished := hs.transcript()
	if err := readFinished(hs, st, masterSecret, transcriptForServerFinished, true); err != nil {
		return nil, handshakeFailed("server_finished", err)
	}

	return st, nil
}

func writeClientHello(hs *plaintextHandshakeIO, clientRandom []byte) error {
	msg := make([]byte, 0, 40)
	msg = append(msg, byte(versionSSL30>>8), byte(versionSSL30&0xff))
	msg = append(msg, clientRandom...)
	msg = append(msg, 0) // no session id

	suites := []CipherSuite{SuiteRC4128SHA, SuiteRC4128MD5}
	msg = append(msg, byte((len(suites)*2)>>8), byte(len(suites)*2))
	for _, s := range suites {
		msg = append(msg, byte(s>>8), byte(s))
	}
	msg = append(msg, 1, 0) // one compression method: null

	return writeHandshakeMessage(hs, hsClientHello, msg)
}

func readServerHello(hs *plaintextHandshakeIO) ([]byte, CipherSuite, error) {
	rt, body, err := hs.readRecord()
	if err != nil {
		return nil, 0, err
	}
	if rt != recordTypeHandshake || len(body) < 4 || body[0] != hsServerHello {
		return nil, 0, errors.New("expected ServerHello")
	}

	msg := body[4:]
	if len(msg) < 2+32 {
		return nil, 0, errors.New("truncated ServerHello")
	}
	if binary.BigEndian.Uint16(msg[0:2]) != versionSSL30 {
		return nil, 0, errors.New("server did not select SSLv3")
	}
	random := append([]byte(nil), msg[2:34]...)

	pos := 34
	sessIDLen := int(msg[pos])
	pos += 1 + sessIDLen
	if pos+2 > len(msg) {
		return nil, 0, errors.New("truncated ServerHello cipher suite")
	}
	suite := CipherSuite(binary.BigEndian.Uint16(msg[pos : pos+2]))
	if !supportedSuites[suite] {
		return nil, 0, &UnsupportedSuite{Offered: []CipherSuite{suite}}
	}

	return random, suite, nil
}

func readServerCertificate(hs *plaintextHandshakeIO) (*rsa.PublicKey, error) {
	rt, body, err := hs.readRecord()
	if err != nil {
		return nil, err
	}
	if rt != recordTypeHandshake || len(body) < 4 || body[0] != hsCertificate {
		return nil, errors.New("expected Certificate")
	}

	msg := body[4:]
	if len(msg) < 3 {
		return nil, errors.New("truncated Certificate list")
	}
	listLen := int(msg[0])<<16 | int(msg[1])<<8 | int(msg[2])
	if len(msg) < 3+listLen || listLen < 3 {
		return nil, errors.New("truncated Certificate list body")
	}
	certLen := int(msg[3])<<16 | int(msg[4])<<8 | int(msg[5])
	if 3+3+certLen > len(msg) {
		return nil, errors.New("truncated leaf certificate")
	}
	der := msg[6 : 6+certLen]

	// Parsed for its public key only; the certificate's validity window and
	// chain are deliberately never checked (see package doc).
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("server certificate does not carry an RSA key")
	}
	return pub, nil
}

func readServerHelloDone(hs *plaintextHandshakeIO) error {
	rt, body, err := hs.readRecord()
	if err != nil {
		return err
	}
	if rt != recordTypeHandshake || len(body) < 1 || body[0] != hsServerHelloDone {
		return errors.New("expected ServerHelloDone")
	}
	return nil
}

func writeClientKeyExchange(hs *plaintextHandshakeIO, pub *rsa.PublicKey, preMaster []byte) error {
	encrypted, err := rsa.EncryptPKCS1v15(rand.Reader, pub, preMaster)
	if err != nil {
		return err
	}

	msg := make([]byte, 0, 2+len(encrypted))
	msg = append(msg, byte(len(encrypted)>>8), byte(len(encrypted)))
	msg = append(msg, encrypted...)

	return writeHandshakeMessage(hs, hsClientKeyExchange, msg)
}
