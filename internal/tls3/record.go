package tls3

import (
	"crypto/md5"
	"crypto/rc4"
	"crypto/sha1"
	"encoding/binary"
	"hash"
	"io"
	"net"
)

const (
	recordTypeChangeCipherSpec = 20
	recordTypeAlert            = 21
	recordTypeHandshake        = 22
	recordTypeApplicationData  = 23

	versionSSL30 = 0x0300
)

// ssl3Pad lengths, fixed by the SSLv3 spec independent of the digest's own
// block size.
const (
	pad1MD5  = 48
	pad2MD5  = 48
	pad1SHA1 = 40
	pad2SHA1 = 40
)

func newHash(macLen int) func() hash.Hash {
	if macLen == sha1.Size {
		return sha1.New
	}
	return md5.New
}

func padLens(macLen int) (pad1, pad2 int) {
	if macLen == sha1.Size {
		return pad1SHA1, pad2SHA1
	}
	return pad1MD5, pad2MD5
}

// ssl3MAC computes the SSLv3 (non-HMAC) concatenated-pad MAC:
//
//	hash(secret || pad2 || hash(secret || pad1 || seq || type || length || content))
func ssl3MAC(newHash func() hash.Hash, macLen int, secret []byte, seq uint64, recordType byte, content []byte) []byte {
	pad1, pad2 := padLens(macLen)

	inner := newHash()
	inner.Write(secret)
	inner.Write(bytesOf(0x36, pad1))

	var seqAndHeader [11]byte
	binary.BigEndian.PutUint64(seqAndHeader[0:8], seq)
	seqAndHeader[8] = recordType
	binary.BigEndian.PutUint16(seqAndHeader[9:11], uint16(len(content)))
	inner.Write(seqAndHeader[:])
	inner.Write(content)
	innerSum := inner.Sum(nil)

	outer := newHash()
	outer.Write(secret)
	outer.Write(bytesOf(0x5c, pad2))
	outer.Write(innerSum)

	return outer.Sum(nil)
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// handshakeState is everything a Conn needs to read/write application-data
// records after a completed handshake.
type handshakeState struct {
	suite   CipherSuite
	macLen  int
	newHash func() hash.Hash

	readCipher  *rc4.Cipher
	writeCipher *rc4.Cipher
	readMAC     []byte
	writeMAC    []byte

	readSeq  uint64
	writeSeq uint64

	// isServer controls which derived key is the "read" vs "write" key,
	// since client and server use opposite halves of the key block.
	isServer bool
}

func newHandshakeState(suite CipherSuite, keys connectionKeys, isServer bool) (*handshakeState, error) {
	macLen := 20
	if suite == SuiteRC4128MD5 {
		macLen = 16
	}

	st := &handshakeState{suite: suite, macLen: macLen, newHash: newHash(macLen), isServer: isServer}

	var readKey, writeKey, readMAC, writeMAC []byte
	if isServer {
		readKey, writeKey = keys.clientKey, keys.serverKey
		readMAC, writeMAC = keys.clientMAC, keys.serverMAC
	} else {
		readKey, writeKey = keys.serverKey, keys.clientKey
		readMAC, writeMAC = keys.serverMAC, keys.clientMAC
	}

	var err error
	st.readCipher, err = rc4.NewCipher(readKey)
	if err != nil {
		return nil, err
	}
	st.writeCipher, err = rc4.NewCipher(writeKey)
	if err != nil {
		return nil, err
	}
	st.readMAC = readMAC
	st.writeMAC = writeMAC

	return st, nil
}

// Conn is an established SSLv3 connection: a net.Conn wrapped with RC4
// encryption and SSLv3 MAC verification of the record layer.
type Conn struct {
	raw   net.Conn
	state *handshakeState

	readBuf []byte
}

func newConn(raw net.Conn, st *handshakeState) *Conn {
	return &Conn{raw: raw, state: st}
}

// Read returns decrypted application-data bytes, blocking until at least
// one record is available.
func (c *Conn) Read(p []byte) (int, error) {
	for len(c.readBuf) == 0 {
		rt, payload, err := c.readRecord()
		if err != nil {
			return 0, err
		}
		if rt == recordTypeApplicationData {
			c.readBuf = payload
		}
		// Alerts/handshake records post-handshake are ignored; a real
		// implementation would act on close_notify alerts here.
	}

	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// Write encrypts and sends p as one or more application-data records.
func (c *Conn) Write(p []byte) (int, error) {
	const maxFragment = 16384
	total := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxFragment {
			chunk = chunk[:maxFragment]
		}
		if err := c.writeRecord(recordTypeApplicationData, chunk); err != nil {
			return total, err
		}
		total += len(chunk)
		p = p[len(chunk):]
	}
	return total, nil
}

// Close closes the underlying connection. SSLv3 close_notify alerting is
// skipped since the real client doesn't depend on it.
func (c *Conn) Close() error {
	return c.raw.Close()
}

func (c *Conn) writeRecord(recordType byte, payload []byte) error {
	mac := ssl3MAC(c.state.newHash, c.state.macLen, c.state.writeMAC, c.state.writeSeq, recordType, payload)
	c.state.writeSeq++

	plain := make([]byte, 0, len(payload)+len(mac))
	plain = append(plain, payload...)
	plain = append(plain, mac...)

	encrypted := make([]byte, len(plain))
	c.state.writeCipher.XORKeyStream(encrypted, plain)

	header := make([]byte, 5)
	header[0] = recordType
	binary.BigEndian.PutUint16(header[1:3], versionSSL30)
	binary.BigEndian.PutUint16(header[3:5], uint16(len(encrypted)))

	if _, err := c.raw.Write(header); err != nil {
		return err
	}
	_, err := c.raw.Write(encrypted)
	return err
}

func (c *Conn) readRecord() (byte, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(c.raw, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, nil, &Truncated{}
		}
		return 0, nil, err
	}

	recordType := header[0]
	length := binary.BigEndian.Uint16(header[3:5])

	encrypted := make([]byte, length)
	if _, err := io.ReadFull(c.raw, encrypted); err != nil {
		return 0, nil, &Truncated{}
	}

	plain := make([]byte, len(encrypted))
	c.state.readCipher.XORKeyStream(plain, encrypted)

	if len(plain) < c.state.macLen {
		return 0, nil, &BadMAC{}
	}
	payload := plain[:len(plain)-c.state.macLen]
	gotMAC := plain[len(plain)-c.state.macLen:]

	wantMAC := ssl3MAC(c.state.newHash, c.state.macLen, c.state.readMAC, c.state.readSeq, recordType, payload)
	c.state.readSeq++

	if !macEqual(gotMAC, wantMAC) {
		return 0, nil, &BadMAC{}
	}

	return recordType, payload, nil
}

func macEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
