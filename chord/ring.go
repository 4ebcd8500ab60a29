// Package chord implements the overlay from spec §4.3: ring membership,
// the finger table, and the find_successor/join/notify/stabilize family of
// operations. The algorithm itself has no teacher precedent in GoVaultFS
// (a two-peer gossip store, not a DHT); it is written in the teacher's
// idiom — plain structs, explicit mutexes, no interfaces beyond what's
// needed to swap the network for a test double — the way GoVaultFS's
// FileServer owns and coordinates its Transport.
package chord

import (
	"fmt"
	"sync"

	"github.com/delgado-dev/chordvault/chordid"
	"github.com/delgado-dev/chordvault/transport"
)

// PeerRef is a plain value: address + guid, with no back-pointer to the
// ring. Design note "cyclic state references": breaking the
// Peer->State->PeerFile->PeerReference cycle by making references
// comparable values rather than pointers back into live peer state.
type PeerRef = transport.PeerRef

// RemoteCaller is the chord control-plane client: everything the ring
// needs to ask of a remote peer. Implemented over transport by rpc.go;
// swappable in tests for a fake ring of in-memory nodes.
type RemoteCaller interface {
	FindSuccessor(addr string, k chordid.ID) (PeerRef, error)
	GetPredecessor(addr string) (PeerRef, bool, error)
	Notify(addr string, self PeerRef) error
	Ping(addr string) error
}

// Ring holds one peer's view of the Chord overlay: its predecessor,
// successor list and finger table, all owned by this component per spec
// §5 ("single-writer to finger table and predecessor").
type Ring struct {
	self   PeerRef
	caller RemoteCaller

	mu            sync.RWMutex
	predecessor   *PeerRef
	fingers       [chordid.M]PeerRef
	successorList []PeerRef

	nextFinger int
}

// NewRing creates a ring view for self, initially solitary (its own
// successor, no predecessor).
func NewRing(self PeerRef, caller RemoteCaller) *Ring {
	r := &Ring{self: self, caller: caller}
	for i := range r.fingers {
		r.fingers[i] = self
	}
	r.successorList = []PeerRef{self}
	return r
}

// Self returns this peer's reference.
func (r *Ring) Self() PeerRef { return r.self }

// Successor returns finger[0], the canonical successor.
func (r *Ring) Successor() PeerRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fingers[0]
}

// Predecessor returns the current predecessor, if any.
func (r *Ring) Predecessor() (PeerRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.predecessor == nil {
		return PeerRef{}, false
	}
	return *r.predecessor, true
}

// Solitary reports whether this peer believes it is alone in the ring.
func (r *Ring) Solitary() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fingers[0].GUID == r.self.GUID
}

// Join contacts bootstrap (or becomes solitary if bootstrap is self) and
// installs the resulting successor as finger[0].
func (r *Ring) Join(bootstrap PeerRef) error {
	if bootstrap.GUID == r.self.GUID {
		r.mu.Lock()
		r.predecessor = nil
		r.fingers[0] = r.self
		r.successorList = []PeerRef{r.self}
		r.mu.Unlock()
		return nil
	}

	succ, err := r.caller.FindSuccessor(bootstrap.Address, r.self.GUID)
	if err != nil {
		return fmt.Errorf("join via %s: %w", bootstrap.Address, err)
	}

	r.mu.Lock()
	r.fingers[0] = succ
	r.successorList = []PeerRef{succ}
	r.mu.Unlock()
	return nil
}

// FindSuccessor answers spec §4.3's routing rule, recursing over the
// network via closest_preceding_node until the owning peer answers for
// itself.
func (r *Ring) FindSuccessor(k chordid.ID) (PeerRef, error) {
	r.mu.RLock()
	self := r.self
	pred := r.predecessor
	succ := r.fingers[0]
	r.mu.RUnlock()

	if pred != nil && chordid.BetweenInclusiveRight(k, pred.GUID, self.GUID) {
		return self, nil
	}
	if k == self.GUID {
		return self, nil
	}
	if chordid.BetweenInclusiveRight(k, self.GUID, succ.GUID) {
		return succ, nil
	}

	next := r.closestPrecedingNode(k)
	if next.GUID == self.GUID {
		// No finger strictly progresses us; we are the best answer.
		return self, nil
	}
	return r.caller.FindSuccessor(next.Address, k)
}

// closestPrecedingNode scans the finger table high to low for the last
// finger strictly between self and k.
func (r *Ring) closestPrecedingNode(k chordid.ID) PeerRef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := chordid.M - 1; i >= 0; i-- {
		f := r.fingers[i]
		if chordid.BetweenExclusive(f.GUID, r.self.GUID, k) {
			return f
		}
	}
	return r.self
}

// Notify handles an incoming claim from n that it may be our predecessor.
func (r *Ring) Notify(n PeerRef) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.predecessor == nil || chordid.BetweenExclusive(n.GUID, r.predecessor.GUID, r.self.GUID) {
		p := n
		r.predecessor = &p
	}
}

// Stabilize asks the current successor for its predecessor and adopts it
// if it lies strictly between self and successor, then notifies the
// (possibly updated) successor of self. When this peer believes it is
// its own successor (solitary, or not yet stabilized since a join), it
// consults its own predecessor instead of calling out over the network —
// this is how an existing ring's bootstrap node discovers a newcomer
// that has already notified it.
func (r *Ring) Stabilize() error {
	succ := r.Successor()

	var p PeerRef
	var ok bool
	if succ.GUID == r.self.GUID {
		p, ok = r.Predecessor()
	} else {
		var err error
		p, ok, err = r.caller.GetPredecessor(succ.Address)
		if err != nil {
			return err
		}
	}

	if ok && chordid.BetweenExclusive(p.GUID, r.self.GUID, succ.GUID) {
		r.mu.Lock()
		r.fingers[0] = p
		r.successorList = append([]PeerRef{p}, r.successorList...)
		r.mu.Unlock()
		succ = p
	}

	if succ.GUID == r.self.GUID {
		return nil
	}
	return r.caller.Notify(succ.Address, r.self)
}

// FixFingers refreshes one finger table slot per call, cycling through all
// M indices, per spec §4.3 ("refresh one finger index per tick").
func (r *Ring) FixFingers() error {
	r.mu.Lock()
	i := r.nextFinger
	r.nextFinger = (r.nextFinger + 1) % chordid.M
	target := r.self.Add(i)
	r.mu.Unlock()

	succ, err := r.FindSuccessor(target)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.fingers[i] = succ
	r.mu.Unlock()
	return nil
}

// CheckPredecessor pings the predecessor and clears it if unreachable.
func (r *Ring) CheckPredecessor() {
	r.mu.RLock()
	pred := r.predecessor
	r.mu.RUnlock()
	if pred == nil {
		return
	}

	if err := r.caller.Ping(pred.Address); err != nil {
		r.mu.Lock()
		if r.predecessor != nil && r.predecessor.GUID == pred.GUID {
			r.predecessor = nil
		}
		r.mu.Unlock()
	}
}

// Snapshot is a read-only view of ring state for STATE/CHORD commands.
type Snapshot struct {
	Self          PeerRef
	Predecessor   *PeerRef
	Fingers       [chordid.M]PeerRef
	SuccessorList []PeerRef
}

// Snapshot captures the current ring view without holding the lock for callers.
func (r *Ring) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{Self: r.self, Fingers: r.fingers}
	if r.predecessor != nil {
		p := *r.predecessor
		s.Predecessor = &p
	}
	s.SuccessorList = append([]PeerRef(nil), r.successorList...)
	return s
}
