package transport

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/delgado-dev/chordvault/protoerr"
)

// Conn is one scoped connection owned by exactly one caller for its
// lifetime, per spec §4.1 ("scoped acquisition of one connection per
// remote operation; guaranteed close on all exit paths"). Grounded on
// GoVaultFS p2p.TCPPeer, generalized from the teacher's always-on shared
// peer map to a connection any single protocol task dials, uses once, and
// closes.
type Conn struct {
	sc    *SecureConn
	local PeerRef

	closeOnce sync.Once
	closeErr  error
}

// Connect dials address, runs the Noise handshake as initiator, and
// returns a ready-to-use Conn. Fails with protoerr.ErrUnreachable or
// protoerr.ErrHandshakeFailed.
func Connect(address string, local PeerRef, static StaticKeyPair) (*Conn, error) {
	raw, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", protoerr.ErrUnreachable, address, err)
	}

	sc, err := Handshake(raw, true, static)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("%w: %v", protoerr.ErrHandshakeFailed, err)
	}

	return &Conn{sc: sc, local: local}, nil
}

// Send writes one framed message, stamped with this peer's sender reference.
func (c *Conn) Send(msgType byte, body string) error {
	msg := Message{Type: msgType, Sender: c.local, Body: body}
	if err := WriteMessage(c.sc, msg); err != nil {
		return fmt.Errorf("%w: %v", protoerr.ErrIO, err)
	}
	return nil
}

// Receive blocks for one full message frame, failing with
// protoerr.ErrTimeout if the deadline elapses first.
func (c *Conn) Receive(timeout time.Duration) (Message, error) {
	if err := c.sc.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Message{}, fmt.Errorf("%w: %v", protoerr.ErrIO, err)
	}
	defer c.sc.Conn.SetReadDeadline(time.Time{})

	msg, err := ReadMessage(c.sc)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return Message{}, protoerr.ErrTimeout
		}
		return Message{}, fmt.Errorf("%w: %v", protoerr.ErrIO, err)
	}
	return msg, nil
}

// SendFile streams exactly size bytes from r in chunkBytes pieces. Spec
// §4.1: "streams size bytes in chunks of TLS_CHUNK_SIZE bytes."
func (c *Conn) SendFile(r io.Reader, size int64, chunkBytes int) error {
	buf := make([]byte, chunkBytes)
	n, err := io.CopyBuffer(c.sc, io.LimitReader(r, size), buf)
	if err == nil && n < size {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return fmt.Errorf("%w: %v", protoerr.ErrIO, err)
	}
	return nil
}

// ReceiveFile consumes exactly size bytes into w.
func (c *Conn) ReceiveFile(w io.Writer, size int64) error {
	if _, err := io.CopyN(w, c.sc, size); err != nil {
		return fmt.Errorf("%w: %v", protoerr.ErrIO, err)
	}
	return nil
}

// RemoteAddr returns the underlying socket's remote address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.sc.Conn.RemoteAddr()
}

// Close is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.sc.Conn.Close()
	})
	return c.closeErr
}
