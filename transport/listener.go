package transport

import (
	"errors"
	"net"

	"go.uber.org/zap"
)

// Listener accepts inbound connections and hands each one, post-handshake,
// to Handler on its own goroutine. Grounded on GoVaultFS
// p2p.TCPTransport.startAcceptLoop/handleConn, adapted from the teacher's
// shared rpcch fan-in to a per-connection handler matching the spec's
// "scoped acquisition of one connection per remote operation".
type Listener struct {
	addr     string
	static   StaticKeyPair
	local    PeerRef
	listener net.Listener
	log      *zap.SugaredLogger

	Handler func(*Conn)
}

// NewListener builds a Listener bound to addr, not yet accepting.
func NewListener(addr string, local PeerRef, static StaticKeyPair, log *zap.SugaredLogger) *Listener {
	return &Listener{addr: addr, local: local, static: static, log: log}
}

// ListenAndAccept starts the TCP listener and the accept loop in the
// background, returning once the socket is bound.
func (l *Listener) ListenAndAccept() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.listener = ln

	go l.acceptLoop()
	l.log.Infow("transport listening", "addr", l.addr)
	return nil
}

func (l *Listener) acceptLoop() {
	for {
		raw, err := l.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			l.log.Warnw("accept error", "err", err)
			continue
		}

		go l.handle(raw)
	}
}

func (l *Listener) handle(raw net.Conn) {
	sc, err := Handshake(raw, false, l.static)
	if err != nil {
		l.log.Warnw("handshake failed, dropping peer", "remote", raw.RemoteAddr(), "err", err)
		raw.Close()
		return
	}

	conn := &Conn{sc: sc, local: l.local}
	if l.Handler != nil {
		l.Handler(conn)
	} else {
		conn.Close()
	}
}

// Addr returns the address actually bound (resolving ":0" to the port the
// OS assigned), falling back to the configured address before Listen runs.
func (l *Listener) Addr() string {
	if l.listener != nil {
		return l.listener.Addr().String()
	}
	return l.addr
}

// Close shuts down the listener. Idempotent at the net.Listener level.
func (l *Listener) Close() error {
	if l.listener == nil {
		return nil
	}
	return l.listener.Close()
}
