// Noise-based mutual authentication and stream encryption for ChordVault
// connections, replacing GoVaultFS's p2p/handshake.go NOPHandshakeFunc.
// Grounded on github.com/flynn/noise, present in the dependency graph of
// _examples/nehraa-Omnyxnet/go and
// _examples/other_examples/manifests/Klingon-tech-klingnet.
package transport

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/flynn/noise"
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256)

// StaticKeyPair is a peer's Noise identity key. It is generated when the
// peer starts and is not persisted, so a restarted peer presents a new key.
type StaticKeyPair = noise.DHKey

// GenerateStaticKeyPair creates a fresh Curve25519 static keypair.
func GenerateStaticKeyPair() (StaticKeyPair, error) {
	return cipherSuite.GenerateKeypair(rand.Reader)
}

// SecureConn wraps a raw net.Conn with a post-handshake Noise transport
// cipher: every Write is sealed as one length-prefixed AEAD record, every
// Read is served from the most recently opened record.
type SecureConn struct {
	net.Conn
	send *noise.CipherState
	recv *noise.CipherState
	buf  bytes.Buffer
}

func (c *SecureConn) Write(p []byte) (int, error) {
	ct, err := c.send.Encrypt(nil, nil, p)
	if err != nil {
		return 0, fmt.Errorf("noise encrypt: %w", err)
	}
	if err := writeFrame(c.Conn, ct); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *SecureConn) Read(p []byte) (int, error) {
	for c.buf.Len() == 0 {
		ct, err := readFrame(c.Conn)
		if err != nil {
			return 0, err
		}
		pt, err := c.recv.Decrypt(nil, nil, ct)
		if err != nil {
			return 0, fmt.Errorf("noise decrypt: %w", err)
		}
		c.buf.Write(pt)
	}
	return c.buf.Read(p)
}

func writeFrame(w io.Writer, b []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Handshake runs the Noise XX pattern over conn (mutual static-key
// authentication: both sides prove possession of their long-term key
// without revealing it up front) and returns a SecureConn ready for framed
// message and file traffic.
func Handshake(conn net.Conn, initiator bool, static StaticKeyPair) (*SecureConn, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: static,
	})
	if err != nil {
		return nil, fmt.Errorf("noise init: %w", err)
	}

	var cs1, cs2 *noise.CipherState

	// XX is three messages: -> e, <- e,ee,s,es, -> s,se.
	if initiator {
		msg, _, _, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return nil, err
		}
		if err := writeFrame(conn, msg); err != nil {
			return nil, err
		}

		resp, err := readFrame(conn)
		if err != nil {
			return nil, err
		}
		if _, _, _, err := hs.ReadMessage(nil, resp); err != nil {
			return nil, fmt.Errorf("noise handshake rejected: %w", err)
		}

		msg, cs1, cs2, err = hs.WriteMessage(nil, nil)
		if err != nil {
			return nil, err
		}
		if err := writeFrame(conn, msg); err != nil {
			return nil, err
		}
	} else {
		req, err := readFrame(conn)
		if err != nil {
			return nil, err
		}
		if _, _, _, err := hs.ReadMessage(nil, req); err != nil {
			return nil, fmt.Errorf("noise handshake rejected: %w", err)
		}

		msg, _, _, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return nil, err
		}
		if err := writeFrame(conn, msg); err != nil {
			return nil, err
		}

		final, err := readFrame(conn)
		if err != nil {
			return nil, err
		}
		if _, cs1, cs2, err = hs.ReadMessage(nil, final); err != nil {
			return nil, fmt.Errorf("noise handshake rejected: %w", err)
		}
	}

	sc := &SecureConn{Conn: conn}
	if initiator {
		sc.send, sc.recv = cs1, cs2
	} else {
		sc.send, sc.recv = cs2, cs1
	}
	return sc, nil
}
