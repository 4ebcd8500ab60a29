package protocol

import (
	"os"
	"path/filepath"

	"github.com/delgado-dev/chordvault/store"
	"github.com/delgado-dev/chordvault/transport"
)

// Restore implements spec §4.5.2.
func (e *Engine) Restore(filename string, notify Notify) {
	pf, ok, err := e.state.GetSent(filename)
	if err != nil || !ok {
		notify("RESTORE failed: no record of " + filename)
		return
	}

	for _, key := range pf.KeyList() {
		target, err := e.ring.FindSuccessor(key)
		if err != nil {
			continue
		}

		ok := e.restoreFromTarget(filename, pf, target.Address)
		e.metrics.RestoreOutcomes.WithLabelValues(boolLabel(ok)).Inc()
		if ok {
			notify(filename + " restored successfully")
			return
		}
	}

	notify(filename + " could not be restored")
}

func boolLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (e *Engine) restoreFromTarget(filename string, pf store.PeerFile, addr string) bool {
	conn, err := transport.Connect(addr, e.self, e.static)
	if err != nil {
		return false
	}
	defer conn.Close()

	if err := conn.Send(transport.TypeGet, pf.FileID); err != nil {
		return false
	}

	reply, err := conn.Receive(e.cfg.RestoreAckTimeout)
	if err != nil || reply.Type != transport.TypeAck {
		return false
	}

	// Double-GET: the second GET is the spec's in-band "start streaming"
	// signal (design note "double-GET in RESTORE"), preserved verbatim.
	if err := conn.Send(transport.TypeGet, pf.FileID); err != nil {
		return false
	}

	dest := "restored_" + filepath.Base(filename)
	f, err := createLocal(dest)
	if err != nil {
		return false
	}
	writeErr := conn.ReceiveFile(f, pf.Size)
	f.Close()
	if writeErr != nil {
		return false
	}

	localPF := pf
	localPF.LocalKey = -1
	e.state.AddStored(localPF)

	return true
}

// handleGet is the receiver side of GET, spec §4.5.2 "Receiver side of GET".
func (e *Engine) handleGet(conn *transport.Conn, msg transport.Message) {
	fileID := msg.Body

	pf, ok, err := e.state.GetStored(fileID)
	if err != nil || !ok {
		conn.Send(transport.TypeNack, "")
		return
	}

	if err := conn.Send(transport.TypeAck, ""); err != nil {
		return
	}

	// Await the signal second GET before streaming.
	if _, err := conn.Receive(e.cfg.RestoreAckTimeout); err != nil {
		return
	}

	size, r, err := e.blobs.Read(fileID)
	if err != nil {
		return
	}
	defer r.Close()

	if size != pf.Size {
		e.log.Warnw("on-disk size mismatch for stored file", "fileId", fileID, "recorded", pf.Size, "onDisk", size)
	}

	if err := conn.SendFile(r, size, e.cfg.ChunkBytes); err != nil {
		e.log.Warnw("failed serving file over restore", "fileId", fileID, "err", err)
	}
}

func createLocal(path string) (*os.File, error) {
	return os.Create(path)
}
