package tls3

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// handshake message types, within the handshake record.
const (
	hsClientHello       = 1
	hsServerHello       = 2
	hsCertificate       = 11
	hsServerHelloDone   = 14
	hsClientKeyExchange = 16
	hsFinished          = 20
)

func serverHandshake(raw net.Conn, cfg *ServerConfig) (*handshakeState, error) {
	hs := &plaintextHandshakeIO{conn: raw}

	clientHello, err := readClientHello(hs)
	if err != nil {
		return nil, handshakeFailed("client_hello", err)
	}

	suite, err := pickSuite(clientHello.suites)
	if err != nil {
		return nil, handshakeFailed("cipher_suite", err)
	}

	serverRandom := make([]byte, 32)
	if _, err := rand.Read(serverRandom); err != nil {
		return nil, handshakeFailed("server_hello", err)
	}

	if err := writeServerHello(hs, serverRandom, suite); err != nil {
		return nil, handshakeFailed("server_hello", err)
	}
	if err := writeCertificate(hs, cfg.Certificate.Raw); err != nil {
		return nil, handshakeFailed("certificate", err)
	}
	if err := writeServerHelloDone(hs); err != nil {
		return nil, handshakeFailed("server_hello_done", err)
	}

	preMaster, err := readClientKeyExchange(hs, cfg.PrivateKey)
	if err != nil {
		return nil, handshakeFailed("client_key_exchange", err)
	}

	masterSecret := masterSecretFrom(preMaster, clientHello.random, serverRandom)
	macLen := 20
	if suite == SuiteRC4128MD5 {
		macLen = 16
	}
	keys := deriveKeys(masterSecret, clientHello.random, serverRandom, macLen, 16)

	st, err := newHandshakeState(suite, keys, true)
	if err != nil {
		return nil, handshakeFailed("key_derivation", err)
	}

	if err := readChangeCipherSpec(hs); err != nil {
		return nil, handshakeFailed("change_cipher_spec", err)
	}

	transcript := hs.transcript()
	if err := readFinished(hs, st, masterSecret, transcript, false); err != nil {
		return nil, handshakeFailed("client_finished", err)
	}

	if err := writeChangeCipherSpec(hs); err != nil {
		return nil, handshakeFailed("change_cipher_spec", err)
	}
	if err := writeFinished(hs, st, masterSecret, hs.transcript(), true); err != nil {
		return nil, handshakeFailed("server_finished", err)
	}

	return st, nil
}

type clientHelloMsg struct {
	random []byte
	suites []CipherSuite
}

// plaintextHandshakeIO reads/writes unencrypted handshake records (the
// handshake itself precedes any cipher activation) while accumulating the
// handshake message transcript used by Finished.
type plaintextHandshakeIO struct {
	conn net.Conn
	log  []byte
}

func (h *plaintextHandshakeIO) transcript() []byte {
	out := make([]byte, len(h.log))
	copy(out, h.log)
	return out
}

func (h *plaintextHandshakeIO) writeRecord(recordType byte, body []byte) error {
	header := make([]byte, 5)
	header[0] = recordType
	binary.BigEndian.PutUint16(header[1:3], versionSSL30)
	binary.BigEndian.PutUint16(header[3:5], uint16(len(body)))
	if _, err := h.conn.Write(header); err != nil {
		return err
	}
	if _, err := h.conn.Write(body); err != nil {
		return err
	}
	if recordType == recordTypeHandshake {
		h.log = append(h.log, body...)
	}
	return nil
}

func (h *plaintextHandshakeIO) readRecord() (byte, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(h.conn, header); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint16(header[3:5])
	body := make([]byte, length)
	if _, err := io.ReadFull(h.conn, body); err != nil {
		return 0, nil, err
	}
	if header[0] == recordTypeHandshake {
		h.log = append(h.log, body...)
	}
	return header[0], body, nil
}

func readClientHello(hs *plaintextHandshakeIO) (*clientHelloMsg, error) {
	rt, body, err := hs.readRecord()
	if err != nil {
		return nil, err
	}
	if rt != recordTypeHandshake || len(body) < 4 || body[0] != hsClientHello {
		return nil, errors.New("expected ClientHello")
	}

	msg := body[4:]
	if len(msg) < 2+32 {
		return nil, errors.New("truncated ClientHello")
	}
	version := binary.BigEndian.Uint16(msg[0:2])
	if version != versionSSL30 {
		return nil, errors.New("client did not offer SSLv3")
	}
	random := append([]byte(nil), msg[2:34]...)

	pos := 34
	if pos >= len(msg) {
		return nil, errors.New("truncated ClientHello session id")
	}
	sessIDLen := int(msg[pos])
	pos += 1 + sessIDLen
	if pos+2 > len(msg) {
		return nil, errors.New("truncated ClientHello cipher suites")
	}
	suiteCount := int(binary.BigEndian.Uint16(msg[pos:pos+2])) / 2
	pos += 2

	var suites []CipherSuite
	for i := 0; i < suiteCount; i++ {
		if pos+2 > len(msg) {
			return nil, errors.New("truncated cipher suite list")
		}
		suites = append(suites, CipherSuite(binary.BigEndian.Uint16(msg[pos:pos+2])))
		pos += 2
	}

	return &clientHelloMsg{random: random, suites: suites}, nil
}

func pickSuite(offered []CipherSuite) (CipherSuite, error) {
	for _, s := range offered {
		if supportedSuites[s] {
			return s, nil
		}
	}
	return 0, &UnsupportedSuite{Offered: offered}
}

func writeServerHello(hs *plaintextHandshakeIO, serverRandom []byte, suite CipherSuite) error {
	body := make([]byte, 0, 40)
	body = append(body, 0, 0, 0, 0) // placeholder type+length, filled below
	msg := make([]byte, 0, 40)
	msg = append(msg, byte(versionSSL30>>8), byte(versionSSL30&0xff))
	msg = append(msg, serverRandom...)
	msg = append(msg, 0) // session id length 0, no resumption support
	msg = append(msg, byte(suite>>8), byte(suite))
	msg = append(msg, 0) // no compression

	return writeHandshakeMessage(hs, hsServerHello, msg)
}

func writeCertificate(hs *plaintextHandshakeIO, der []byte) error {
	inner := make([]byte, 0, len(der)+3)
	inner = append(inner, byte(len(der)>>16), byte(len(der)>>8), byte(len(der)))
	inner = append(inner, der...)

	msg := make([]byte, 0, len(inner)+3)
	msg = append(msg, byte(len(inner)>>16), byte(len(inner)>>8), byte(len(inner)))
	msg = append(msg, inner...)

	return writeHandshakeMessage(hs, hsCertificate, msg)
}

func writeServerHelloDone(hs *plaintextHandshakeIO) error {
	return writeHandshakeMessage(hs, hsServerHelloDone, nil)
}

func writeHandshakeMessage(hs *plaintextHandshakeIO, msgType byte, body []byte) error {
	full := make([]byte, 0, 4+len(body))
	full = append(full, msgType, byte(len(body)>>16), byte(len(body)>>8), byte(len(body)))
	full = append(full, body...)
	return hs.writeRecord(recordTypeHandshake, full)
}

func readClientKeyExchange(hs *plaintextHandshakeIO, priv *rsa.PrivateKey) ([]byte, error) {
	rt, body, err := hs.readRecord()
	if err != nil {
		return nil, err
	}
	if rt != recordTypeHandshake || len(body) < 4 || body[0] != hsClientKeyExchange {
		return nil, errors.New("expected ClientKeyExchange")
	}

	msg := body[4:]
	if len(msg) < 2 {
		return nil, errors.New("truncated ClientKeyExchange")
	}
	encLen := int(binary.BigEndian.Uint16(msg[0:2]))
	if len(msg) < 2+encLen {
		return nil, errors.New("truncated ClientKeyExchange ciphertext")
	}
	ciphertext := msg[2 : 2+encLen]

	preMaster, err := rsa.DecryptPKCS1v15(rand.Reader, priv, ciphertext)
	if err != nil {
		return nil, errors.New("failed to decrypt pre-master secret")
	}
	if len(preMaster) != 48 {
		return nil, errors.New("pre-master secret has unexpected length")
	}
	return preMaster, nil
}

func readChangeCipherSpec(hs *plaintextHandshakeIO) error {
	rt, body, err := hs.readRecord()
	if err != nil {
		return err
	}
	if rt != recordTypeChangeCipherSpec || len(body) != 1 || body[0] != 1 {
		return errors.New("expected ChangeCipherSpec")
	}
	return nil
}

func writeChangeCipherSpec(hs *plaintextHandshakeIO) error {
	return hs.writeRecord(recordTypeChangeCipherSpec, []byte{1})
}

// finishedHash computes the SSLv3 Finished message contents: MD5 and SHA1
// digests of the handshake transcript, the master secret, and a
// sender-specific label, each further hashed with the secret-padded
// construction the spec calls "ssl3_MAC" applied over a fixed pad.
func finishedHash(masterSecret, transcript []byte, senderIsServer bool) []byte {
	label := []byte("CLNT")
	if senderIsServer {
		label = []byte("SRVR")
	}

	md5Part := md5Handshake(masterSecret, label, transcript)
	sha1Part := sha1Handshake(masterSecret, label, transcript)

	out := make([]byte, 0, len(md5Part)+len(sha1Part))
	out = append(out, md5Part...)
	out = append(out, sha1Part...)
	return out
}

func md5Handshake(masterSecret, label, transcript []byte) []byte {
	pad1 := bytesOf(0x36, 48)
	pad2 := bytesOf(0x5c, 48)

	inner := md5.New()
	inner.Write(label)
	inner.Write(masterSecret)
	inner.Write(transcript)
	inner.Write(pad1)
	innerSum := inner.Sum(nil)

	outer := md5.New()
	outer.Write(masterSecret)
	outer.Write(pad2)
	outer.Write(innerSum)
	return outer.Sum(nil)
}

func sha1Handshake(masterSecret, label, transcript []byte) []byte {
	pad1 := bytesOf(0x36, 40)
	pad2 := bytesOf(0x5c, 40)

	inner := sha1.New()
	inner.Write(label)
	inner.Write(masterSecret)
	inner.Write(transcript)
	inner.Write(pad1)
	innerSum := inner.Sum(nil)

	outer := sha1.New()
	outer.Write(masterSecret)
	outer.Write(pad2)
	outer.Write(innerSum)
	return outer.Sum(nil)
}

func readFinished(hs *plaintextHandshakeIO, st *handshakeState, masterSecret, transcript []byte, peerIsServer bool) error {
	rt, encrypted, err := hs.readRecord()
	if err != nil {
		return err
	}
	if rt != recordTypeHandshake {
		return errors.New("expected Finished")
	}

	plain := make([]byte, len(encrypted))
	st.readCipher.XORKeyStream(plain, encrypted)

	if len(plain) < st.macLen {
		return &BadMAC{}
	}
	body := plain[:len(plain)-st.macLen]
	gotMAC := plain[len(plain)-st.macLen:]
	wantMAC := ssl3MAC(st.newHash, st.macLen, st.readMAC, st.readSeq, recordTypeHandshake, body)
	st.readSeq++
	if !macEqual(gotMAC, wantMAC) {
		return &BadMAC{}
	}

	if len(body) < 4 || body[0] != hsFinished {
		return errors.New("expected Finished message type")
	}
	want := finishedHash(masterSecret, transcript, peerIsServer)
	if !macEqual(body[4:], want) {
		return errors.New("finished hash mismatch")
	}
	return nil
}

func writeFinished(hs *plaintextHandshakeIO, st *handshakeState, masterSecret, transcript []byte, senderIsServer bool) error {
	sum := finishedHash(masterSecret, transcript, senderIsServer)
	body := make([]byte, 0, 4+len(sum))
	body = append(body, hsFinished, byte(len(sum)>>16), byte(len(sum)>>8), byte(len(sum)))
	body = append(body, sum...)

	mac := ssl3MAC(st.newHash, st.macLen, st.writeMAC, st.writeSeq, recordTypeHandshake, body)
	st.writeSeq++

	plain := append(append([]byte{}, body...), mac...)
	encrypted := make([]byte, len(plain))
	st.writeCipher.XORKeyStream(encrypted, plain)

	header := make([]byte, 5)
	header[0] = recordTypeHandshake
	binary.BigEndian.PutUint16(header[1:3], versionSSL30)
	binary.BigEndian.PutUint16(header[3:5], uint16(len(encrypted)))
	if _, err := hs.conn.Write(header); err != nil {
		return err
	}
	_, err := hs.conn.Write(encrypted)
	return err
}
