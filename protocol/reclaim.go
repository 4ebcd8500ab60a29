package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/delgado-dev/chordvault/chordid"
	"github.com/delgado-dev/chordvault/config"
	"github.com/delgado-dev/chordvault/store"
	"github.com/delgado-dev/chordvault/transport"
)

// Reclaim implements spec §4.5.4. targetBytes==0 evicts every stored file
// and resets capacity to the §6 default; targetBytes>0 evicts in map order
// until occupation falls at or below targetBytes, then sets that as the
// new capacity.
func (e *Engine) Reclaim(targetBytes int64, notify Notify) {
	all, err := e.state.AllStored()
	if err != nil {
		notify(fmt.Sprintf("RECLAIM failed: %v", err))
		return
	}

	evicted := 0
	for fileID, pf := range all {
		if targetBytes > 0 && e.state.Occupation() <= targetBytes {
			break
		}

		if err := e.blobs.Delete(fileID); err != nil {
			e.log.Warnw("reclaim: failed deleting blob", "fileId", fileID, "err", err)
		}
		if err := e.state.RemoveStored(fileID); err != nil {
			e.log.Warnw("reclaim: failed removing stored-files entry", "fileId", fileID, "err", err)
			continue
		}
		e.state.UpdateOccupation()
		e.metrics.ReclaimEvicted.Inc()
		evicted++

		// Best effort: the owner may be gone, in which case this file is
		// simply lost to that owner's replication bookkeeping.
		e.protocolPool.Submit(func() {
			e.sendRemoved(pf.Owner.Address, fileID, pf.LocalKey)
		})
	}

	if targetBytes == 0 {
		e.state.SetCapacity(config.DefaultCapacity)
	} else {
		e.state.SetCapacity(targetBytes)
	}
	e.metrics.Capacity.Set(float64(e.state.Capacity()))
	e.metrics.Occupation.Set(float64(e.state.Occupation()))

	notify(fmt.Sprintf("RECLAIM evicted %d file(s), capacity now %d bytes", evicted, e.state.Capacity()))
}

func (e *Engine) sendRemoved(addr, fileID string, key int32) {
	conn, err := transport.Connect(addr, e.self, e.static)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.Send(transport.TypeRemoved, fmt.Sprintf("%s:%d", fileID, key))
}

// handleRemoved is the owner-side receiver of REMOVED, spec §4.5.4. On
// losing a replica, drop the key and, if the remaining replication degree
// falls short and the file isn't being deleted, enqueue a fresh BACKUP
// excluding the peers that already hold a copy.
func (e *Engine) handleRemoved(msg transport.Message) {
	parts := strings.SplitN(msg.Body, ":", 2)
	if len(parts) != 2 {
		return
	}
	fileID := parts[0]
	keyVal, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return
	}
	key := chordid.ID(keyVal)

	all, err := e.state.AllSent()
	if err != nil {
		return
	}
	var filename string
	for name, pf := range all {
		if pf.FileID == fileID {
			filename = name
			break
		}
	}
	if filename == "" {
		return
	}

	pf, err := e.state.MutateSent(filename, func(pf *store.PeerFile) {
		delete(pf.Keys, key)
	})
	if err != nil {
		return
	}

	if pf.BeingDeleted || len(pf.Keys) >= pf.ReplicationDegree {
		return
	}

	// exclude must name the peers still holding a copy, not the routing
	// keys themselves: resolveTargets checks exclude against peer GUIDs
	// (backup.go), so each remaining routing key is resolved to its
	// owning peer first.
	exclude := make(map[chordid.ID]bool, len(pf.Keys))
	for k := range pf.Keys {
		peer, err := e.ring.FindSuccessor(k)
		if err != nil {
			continue
		}
		exclude[peer.GUID] = true
	}

	targets := e.resolveTargets(pf.ReplicationDegree-len(pf.Keys), exclude)
	if len(targets) == 0 {
		return
	}

	for _, target := range targets {
		target := target
		e.protocolPool.Submit(func() {
			line := e.backupToTarget(filename, fileID, pf.Size, target.peer, target.key, pf.ReplicationDegree)
			if outcomeLabel(line) == "success" {
				e.state.MutateSent(filename, func(pf *store.PeerFile) {
					if pf.Keys == nil {
						pf.Keys = map[chordid.ID]bool{}
					}
					pf.Keys[target.key] = true
				})
			}
		})
	}
}
