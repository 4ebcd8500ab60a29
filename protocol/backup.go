package protocol

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/delgado-dev/chordvault/chord"
	"github.com/delgado-dev/chordvault/chordid"
	"github.com/delgado-dev/chordvault/store"
	"github.com/delgado-dev/chordvault/transport"
)

// Backup implements spec §4.5.1.
func (e *Engine) Backup(filename string, r int, notify Notify) {
	if e.ring.Solitary() {
		notify("BACKUP aborted: peer is not bootstrapped")
		return
	}

	f, err := os.Open(filename)
	if err != nil {
		notify(fmt.Sprintf("BACKUP failed: cannot read %s: %v", filename, err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		notify(fmt.Sprintf("BACKUP failed: cannot stat %s: %v", filename, err))
		return
	}

	fileID := chordid.FileID(filename, info, e.ownerRef().String())
	size := info.Size()

	targets := e.resolveTargets(r, nil)
	if len(targets) == 0 {
		notify("BACKUP failed: no reachable peers to hold any copy")
		return
	}

	tasks := make([]func() string, len(targets))
	for i, target := range targets {
		target := target
		tasks[i] = func() string {
			return e.backupToTarget(filename, fileID, size, target.peer, target.key, r)
		}
	}

	lines := RunBounded(e.protocolPool, tasks)

	for i, line := range lines {
		label := outcomeLabel(line)
		e.metrics.BackupOutcomes.WithLabelValues(label).Inc()
		if label == "success" || label == "havefile" {
			targets[i].accepted = true
		}
	}

	e.state.MutateSent(filename, func(pf *store.PeerFile) {
		pf.FileID = fileID
		pf.Owner = e.ownerRef()
		pf.Size = size
		pf.ReplicationDegree = r
		if pf.Keys == nil {
			pf.Keys = map[chordid.ID]bool{}
		}
		for _, t := range targets {
			if t.accepted {
				pf.Keys[t.key] = true
			}
		}
	})

	notify("BACKUP " + filename + ": " + strings.Join(lines, "; "))
}

func outcomeLabel(line string) string {
	switch {
	case strings.Contains(line, "Backup Successful"):
		return "success"
	case strings.Contains(line, "no space"):
		return "nospace"
	case strings.Contains(line, "already has the file"):
		return "havefile"
	case strings.Contains(line, "Failed to receive ACK"):
		return "timeout"
	default:
		return "unexpected"
	}
}

type backupTarget struct {
	peer     chord.PeerRef
	key      chordid.ID
	accepted bool
}

// resolveTargets draws 4r candidate keys, resolves each via find_successor
// in order, and accepts up to r distinct non-self targets not already
// chosen. exclude lets RECLAIM-triggered re-backups skip current holders.
func (e *Engine) resolveTargets(r int, exclude map[chordid.ID]bool) []*backupTarget {
	candidates := e.keys.Draw(4 * r)

	chosen := make(map[chordid.ID]bool)
	var out []*backupTarget

	for _, k := range candidates {
		if len(out) >= r {
			break
		}
		peer, err := e.ring.FindSuccessor(k)
		if err != nil {
			continue
		}
		if peer.GUID == e.self.GUID {
			continue
		}
		if chosen[peer.GUID] {
			continue
		}
		if exclude != nil && exclude[peer.GUID] {
			continue
		}
		chosen[peer.GUID] = true
		out = append(out, &backupTarget{peer: peer, key: k})
	}

	return out
}

// backupToTarget runs the per-target BACKUP dialogue, spec §4.5.1a.
func (e *Engine) backupToTarget(filename, fileID string, size int64, target chord.PeerRef, key chordid.ID, r int) string {
	conn, err := transport.Connect(target.Address, e.self, e.static)
	if err != nil {
		return fmt.Sprintf("Failed to Backup file on Peer %s", target.Address)
	}
	defer conn.Close()

	body := fmt.Sprintf("%s::%d::%s::%d::%d", fileID, size, e.ownerRef().String(), uint32(key), r)
	if err := conn.Send(transport.TypeBackup, body); err != nil {
		return fmt.Sprintf("Failed to Backup file on Peer %s", target.Address)
	}

	reply, err := conn.Receive(e.cfg.BackupAckTimeout)
	if err != nil {
		return fmt.Sprintf("Failed to Backup file on Peer %s", target.Address)
	}

	switch reply.Type {
	case transport.TypeNack:
		switch reply.Body {
		case "NOSPACE":
			return fmt.Sprintf("Peer %s has no space", target.Address)
		case "HAVEFILE":
			return fmt.Sprintf("Peer %s already has the file", target.Address)
		default:
			return "unexpected message"
		}
	case transport.TypeAck:
		f, err := os.Open(filename)
		if err != nil {
			return "unexpected message"
		}
		defer f.Close()

		if err := conn.SendFile(f, size, e.cfg.ChunkBytes); err != nil {
			return "Failed to receive ACK"
		}

		reply2, err := conn.Receive(e.cfg.BackupDataTimeout)
		if err != nil || reply2.Type != transport.TypeAck {
			return "Failed to receive ACK"
		}
		return fmt.Sprintf("Backup Successful on Peer %s", target.Address)
	default:
		return "unexpected message"
	}
}

// handleBackup is the receiver side of BACKUP, spec §4.5.1 "Receiver side".
func (e *Engine) handleBackup(conn *transport.Conn, msg transport.Message) {
	parts := strings.SplitN(msg.Body, "::", 5)
	if len(parts) != 5 {
		e.log.Warnw("malformed BACKUP body", "body", msg.Body)
		return
	}

	fileID := parts[0]
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return
	}
	owner, err := parseOwnerRef(parts[2])
	if err != nil {
		return
	}
	keyVal, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil {
		return
	}

	has, err := e.state.HasStored(fileID)
	if err != nil {
		return
	}
	if has {
		conn.Send(transport.TypeNack, "HAVEFILE")
		return
	}
	if !e.state.HasSpace(size) {
		conn.Send(transport.TypeNack, "NOSPACE")
		return
	}

	if err := conn.Send(transport.TypeAck, ""); err != nil {
		return
	}

	f, err := e.blobs.Create(fileID)
	if err != nil {
		e.log.Warnw("failed opening file for write", "fileId", fileID, "err", err)
		return
	}
	writeErr := conn.ReceiveFile(f, size)
	f.Close()
	if writeErr != nil {
		e.log.Warnw("failed writing received file", "fileId", fileID, "err", writeErr)
		return
	}

	pf := store.PeerFile{
		FileID:   fileID,
		Owner:    owner,
		Size:     size,
		LocalKey: int32(keyVal),
	}
	if err := e.state.AddStored(pf); err != nil {
		e.log.Warnw("failed to record stored file", "fileId", fileID, "err", err)
		return
	}
	e.metrics.Occupation.Set(float64(e.state.Occupation()))

	conn.Send(transport.TypeAck, "")
}
