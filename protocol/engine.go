package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/delgado-dev/chordvault/chord"
	"github.com/delgado-dev/chordvault/chordid"
	"github.com/delgado-dev/chordvault/metrics"
	"github.com/delgado-dev/chordvault/protoerr"
	"github.com/delgado-dev/chordvault/store"
	"github.com/delgado-dev/chordvault/transport"
	"go.uber.org/zap"
)

// Notify is the façade's per-command callback sink (spec §4.6). The engine
// calls it synchronously on the command's goroutine, so a slow consumer
// delays the end of that command.
type Notify func(message string)

// Config bundles the stream chunk size and the timeouts from spec §4.5/§6
// that the engine needs at construction time. Pool sizes are not part of
// it: the pools are built by the caller and passed to New.
type Config struct {
	ChunkBytes        int
	BackupAckTimeout  time.Duration
	BackupDataTimeout time.Duration
	RestoreAckTimeout time.Duration
}

// Engine coordinates BACKUP/RESTORE/DELETE/RECLAIM across the ring,
// spec §4.5. Grounded on GoVaultFS server.go's FileServer, which owns a
// Store and a Transport and coordinates replication the same way; the
// engine additionally owns a Ring for routing and a bounded PROTOCOL_POOL
// for fan-out instead of the teacher's unbounded broadcast-to-all-peers.
type Engine struct {
	self   chord.PeerRef
	static transport.StaticKeyPair

	ring  *chord.Ring
	state *store.State
	blobs *store.Blobs

	protocolPool *Pool
	keys         chordid.KeySource
	metrics      *metrics.Registry
	log          *zap.SugaredLogger
	cfg          Config
}

// New builds an Engine. protocolPool bounds per-target fan-out
// concurrency (PROTOCOL_POOL, default 16).
func New(self chord.PeerRef, static transport.StaticKeyPair, ring *chord.Ring, state *store.State, blobs *store.Blobs, protocolPool *Pool, keys chordid.KeySource, reg *metrics.Registry, log *zap.SugaredLogger, cfg Config) *Engine {
	return &Engine{
		self: self, static: static, ring: ring, state: state, blobs: blobs,
		protocolPool: protocolPool, keys: keys, metrics: reg, log: log, cfg: cfg,
	}
}

func (e *Engine) ownerRef() store.OwnerRef {
	return store.OwnerRef{Address: e.self.Address, GUID: e.self.GUID}
}

func parseOwnerRef(s string) (store.OwnerRef, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return store.OwnerRef{}, fmt.Errorf("malformed ownerRef %q", s)
	}
	guid, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return store.OwnerRef{}, fmt.Errorf("malformed ownerRef guid %q: %w", s, err)
	}
	return store.OwnerRef{Address: parts[0] + ":" + parts[1], GUID: chordid.ID(guid)}, nil
}

// HandleInbound is the single tagged-variant dispatcher for every
// connection this peer accepts, matching the spec's user-facing protocol
// frames plus the chord control-plane frames from transport/message.go.
// Design note "inheritance chain": the only true polymorphism in this
// system is this one dispatch switch.
func (e *Engine) HandleInbound(conn *transport.Conn) {
	defer conn.Close()

	msg, err := conn.Receive(5 * time.Second)
	if err != nil {
		e.log.Debugw("inbound receive failed", "err", err, "remote", conn.RemoteAddr())
		return
	}

	switch msg.Type {
	case transport.TypeBackup:
		e.handleBackup(conn, msg)
	case transport.TypeGet:
		e.handleGet(conn, msg)
	case transport.TypeDelete:
		e.handleDelete(msg)
	case transport.TypeRemoved:
		e.handleRemoved(msg)
	case transport.TypeFindSuccessor:
		e.handleFindSuccessor(conn, msg)
	case transport.TypeGetPredecessor:
		e.handleGetPredecessor(conn)
	case transport.TypeNotify:
		e.handleNotify(msg)
	case transport.TypePing:
		conn.Send(transport.TypePong, "")
	default:
		e.log.Warnw(protoerr.ErrProtocolViolation.Error(), "type", msg.Type, "remote", conn.RemoteAddr())
	}
}

func (e *Engine) handleFindSuccessor(conn *transport.Conn, msg transport.Message) {
	k, err := strconv.ParseUint(msg.Body, 10, 32)
	if err != nil {
		return
	}
	succ, err := e.ring.FindSuccessor(chordid.ID(k))
	if err != nil {
		return
	}
	conn.Send(transport.TypeSuccessorReply, fmt.Sprintf("%s::%d", succ.Address, uint32(succ.GUID)))
}

func (e *Engine) handleGetPredecessor(conn *transport.Conn) {
	pred, ok := e.ring.Predecessor()
	if !ok {
		conn.Send(transport.TypePredecessorReply, "none")
		return
	}
	conn.Send(transport.TypePredecessorReply, fmt.Sprintf("%s::%d", pred.Address, uint32(pred.GUID)))
}

func (e *Engine) handleNotify(msg transport.Message) {
	guid, err := strconv.ParseUint(strings.SplitN(msg.Body, "::", 2)[1], 10, 32)
	if err != nil {
		return
	}
	addr := strings.SplitN(msg.Body, "::", 2)[0]
	e.ring.Notify(chord.PeerRef{Address: addr, GUID: chordid.ID(guid)})
}
