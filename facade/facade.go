// Package facade implements the command façade from spec §4.6: it
// receives BACKUP/RESTORE/DELETE/RECLAIM/STATE/CHORD/LOOKUP commands,
// tags each with a correlation id, and fans the mutating ones out onto a
// bounded CLIENT_POOL so a slow protocol run never blocks the next
// command from being accepted. Grounded on GoVaultFS server.go's
// FileServer, which is itself the single front door callers use to
// drive Store/Get/broadcast; uuid correlation ids are grounded on
// _examples/other_examples/manifests/Skpow1234-PeerVault and
// Klingon-tech-klingnet, both of which tag requests with
// github.com/google/uuid.
package facade

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/delgado-dev/chordvault/chord"
	"github.com/delgado-dev/chordvault/chordid"
	"github.com/delgado-dev/chordvault/protocol"
	"github.com/delgado-dev/chordvault/store"
)

// Notify delivers one line of output for the command identified by id.
// A command may call it multiple times (BACKUP reports one line, RECLAIM
// reports a summary) but always at least once.
type Notify func(id, message string)

// Facade is the single entry point client code (a CLI, a REPL, an RPC
// handler) drives a peer through.
type Facade struct {
	engine *protocol.Engine
	ring   *chord.Ring
	state  *store.State
	pool   *protocol.Pool
}

// New builds a Facade. pool is CLIENT_POOL (spec §6, default 8),
// bounding how many commands run concurrently against the engine.
func New(engine *protocol.Engine, ring *chord.Ring, state *store.State, pool *protocol.Pool) *Facade {
	return &Facade{engine: engine, ring: ring, state: state, pool: pool}
}

func newID() string {
	return uuid.NewString()
}

// Backup submits a BACKUP command and returns its correlation id
// immediately; notify is called asynchronously on CLIENT_POOL.
func (f *Facade) Backup(filename string, r int, notify Notify) string {
	id := newID()
	f.pool.Submit(func() {
		f.engine.Backup(filename, r, func(m string) { notify(id, m) })
	})
	return id
}

// Restore submits a RESTORE command.
func (f *Facade) Restore(filename string, notify Notify) string {
	id := newID()
	f.pool.Submit(func() {
		f.engine.Restore(filename, func(m string) { notify(id, m) })
	})
	return id
}

// Delete submits a DELETE command.
func (f *Facade) Delete(filename string, notify Notify) string {
	id := newID()
	f.pool.Submit(func() {
		f.engine.Delete(filename, func(m string) { notify(id, m) })
	})
	return id
}

// Reclaim submits a RECLAIM command. targetBytes==0 reclaims everything.
func (f *Facade) Reclaim(targetBytes int64, notify Notify) string {
	id := newID()
	f.pool.Submit(func() {
		f.engine.Reclaim(targetBytes, func(m string) { notify(id, m) })
	})
	return id
}

// State renders this peer's sent files, stored files and
// capacity/occupation as human-readable text, spec §4.6's STATE command.
// Runs synchronously: it only reads already-resident state.
func (f *Facade) State() (string, error) {
	var b strings.Builder

	sent, err := f.state.AllSent()
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(sent))
	for name := range sent {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(&b, "Sent files (%d):\n", len(names))
	for _, name := range names {
		pf := sent[name]
		fmt.Fprintf(&b, "  %s  fileId=%s  size=%d  degree=%d  replicas=%d  beingDeleted=%v\n",
			name, pf.FileID, pf.Size, pf.ReplicationDegree, len(pf.Keys), pf.BeingDeleted)
	}

	stored, err := f.state.AllStored()
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(stored))
	for id := range stored {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(&b, "Stored files (%d):\n", len(ids))
	for _, id := range ids {
		pf := stored[id]
		fmt.Fprintf(&b, "  %s  owner=%s  size=%d\n", id, pf.Owner.String(), pf.Size)
	}

	fmt.Fprintf(&b, "Capacity: %d/%d bytes\n", f.state.Occupation(), f.state.Capacity())

	return b.String(), nil
}

// Chord renders this peer's routing view (predecessor, successor list and
// finger table), spec §4.6's CHORD command.
func (f *Facade) Chord() string {
	snap := f.ring.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "Self: %s (%s)\n", snap.Self.Address, snap.Self.GUID.String())
	if snap.Predecessor != nil {
		fmt.Fprintf(&b, "Predecessor: %s (%s)\n", snap.Predecessor.Address, snap.Predecessor.GUID.String())
	} else {
		fmt.Fprintf(&b, "Predecessor: none\n")
	}

	fmt.Fprintf(&b, "Successor list:\n")
	for _, s := range snap.SuccessorList {
		fmt.Fprintf(&b, "  %s (%s)\n", s.Address, s.GUID.String())
	}

	fmt.Fprintf(&b, "Finger table:\n")
	for i, fg := range snap.Fingers {
		fmt.Fprintf(&b, "  [%d] start=%s -> %s (%s)\n", i, snap.Self.Add(i).String(), fg.Address, fg.GUID.String())
	}

	return b.String()
}

// Lookup runs find_successor for key (a decimal identifier) and reports
// the owning peer, spec §4.6's LOOKUP command.
func (f *Facade) Lookup(key string) (string, error) {
	v, err := strconv.ParseUint(key, 10, 32)
	if err != nil {
		return "", fmt.Errorf("lookup: malformed key %q: %w", key, err)
	}

	peer, err := f.ring.FindSuccessor(chordid.ID(v))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s owned by %s (%s)", chordid.ID(v).String(), peer.Address, peer.GUID.String()), nil
}
