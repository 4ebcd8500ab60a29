// Package store implements spec §4.4: the persistent sent-files and
// stored-files registries and the capacity/occupation invariant pair.
// Grounded on go.etcd.io/bbolt (present in
// _examples/other_examples/manifests/man0j-012-distributed_object_store's
// dependency graph for exactly this kind of node metadata store),
// replacing GoVaultFS store.go's bare os.* tree walk with a single
// transactional state file as spec §6 fixes ("<root>/<peer-guid>/state").
package store

import (
	"fmt"

	"github.com/delgado-dev/chordvault/chordid"
)

// OwnerRef encodes a file owner as "host:port:guid", spec §6.
type OwnerRef struct {
	Address string
	GUID    chordid.ID
}

func (o OwnerRef) String() string {
	return fmt.Sprintf("%s:%d", o.Address, uint32(o.GUID))
}

// PeerFile is the attribute set from spec §3.
type PeerFile struct {
	FileID            string
	Owner             OwnerRef
	Size              int64
	ReplicationDegree int
	Keys              map[chordid.ID]bool // routing keys under which copies exist (sent-files entries)
	LocalKey          int32               // -1 if unset; the key under which this peer stores it (stored-files entries)
	BeingDeleted      bool
}

// KeyList returns the sorted-by-insertion-irrelevant set of keys as a slice.
func (pf PeerFile) KeyList() []chordid.ID {
	out := make([]chordid.ID, 0, len(pf.Keys))
	for k := range pf.Keys {
		out = append(out, k)
	}
	return out
}
