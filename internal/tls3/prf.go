package tls3

import (
	"crypto/md5"
	"crypto/sha1"
)

// ssl3PRF implements the SSLv3 "PRF": repeated rounds of
// MD5(secret || SHA1(label || secret || seed)) concatenated until at least
// outLen bytes are produced, where label for round i (0-indexed) is the
// ASCII character at position i repeated i+1 times ('A', 'BB', 'CCC', ...).
func ssl3PRF(secret, seed []byte, outLen int) []byte {
	out := make([]byte, 0, outLen+md5.Size)
	for round := 0; len(out) < outLen; round++ {
		label := make([]byte, round+1)
		for i := range label {
			label[i] = byte('A' + round)
		}

		sha := sha1.New()
		sha.Write(label)
		sha.Write(secret)
		sha.Write(seed)
		shaSum := sha.Sum(nil)

		m := md5.New()
		m.Write(secret)
		m.Write(shaSum)
		out = append(out, m.Sum(nil)...)
	}
	return out[:outLen]
}

// masterSecretFrom derives the 48-byte master secret from the pre-master
// secret and the two handshake randoms.
func masterSecretFrom(preMaster, clientRandom, serverRandom []byte) []byte {
	seed := make([]byte, 0, len(clientRandom)+len(serverRandom))
	seed = append(seed, clientRandom...)
	seed = append(seed, serverRandom...)
	return ssl3PRF(preMaster, seed, 48)
}

// connectionKeys are the four symmetric secrets derived from the master
// secret for one connection direction pair.
type connectionKeys struct {
	clientMAC []byte
	serverMAC []byte
	clientKey []byte
	serverKey []byte
}

// deriveKeys expands masterSecret into the key block and slices out the
// per-direction MAC and RC4 keys. macLen is 20 for suites using SHA1 MACs
// and 16 for suites using MD5 MACs; keyLen is 16 for RC4-128.
func deriveKeys(masterSecret, clientRandom, serverRandom []byte, macLen, keyLen int) connectionKeys {
	seed := make([]byte, 0, len(serverRandom)+len(clientRandom))
	seed = append(seed, serverRandom...)
	seed = append(seed, clientRandom...)

	total := 2*macLen + 2*keyLen
	block := ssl3PRF(masterSecret, seed, total)

	off := 0
	next := func(n int) []byte {
		s := block[off : off+n]
		off += n
		return s
	}

	return connectionKeys{
		clientMAC: next(macLen),
		serverMAC: next(macLen),
		clientKey: next(keyLen),
		serverKey: next(keyLen),
	}
}
