package protocol

import (
	"fmt"
	"strings"
	"sync"

	"github.com/delgado-dev/chordvault/store"
	"github.com/delgado-dev/chordvault/transport"
)

// Delete implements spec §4.5.3. DELETE is fire-and-forget; no
// acknowledgement is awaited.
func (e *Engine) Delete(filename string, notify Notify) {
	pf, ok, err := e.state.GetSent(filename)
	if err != nil || !ok {
		notify("DELETE failed: no record of " + filename)
		return
	}

	e.state.MutateSent(filename, func(pf *store.PeerFile) {
		pf.BeingDeleted = true
	})

	var mu sync.Mutex
	var targets []string
	var wg sync.WaitGroup

	for _, key := range pf.KeyList() {
		key := key
		target, err := e.ring.FindSuccessor(key)
		if err != nil {
			continue
		}

		mu.Lock()
		targets = append(targets, target.Address)
		mu.Unlock()

		wg.Add(1)
		e.protocolPool.Submit(func() {
			defer wg.Done()
			e.sendDelete(target.Address, pf.FileID)
		})
	}

	wg.Wait()
	e.metrics.DeleteCount.Inc()

	if err := e.state.RemoveSent(filename); err != nil {
		e.log.Warnw("failed purging sent-files entry", "filename", filename, "err", err)
	}

	notify(fmt.Sprintf("DELETE %s dispatched to: %s", filename, strings.Join(targets, ", ")))
}

func (e *Engine) sendDelete(addr, fileID string) {
	conn, err := transport.Connect(addr, e.self, e.static)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.Send(transport.TypeDelete, fileID)
}

// handleDelete is the receiver side of DELETE, spec §4.5.3. Idempotent:
// re-issuing DELETE for an already-removed fileId is a no-op.
func (e *Engine) handleDelete(msg transport.Message) {
	fileID := msg.Body

	if err := e.blobs.Delete(fileID); err != nil {
		e.log.Warnw("failed deleting blob", "fileId", fileID, "err", err)
	}
	if err := e.state.RemoveStored(fileID); err != nil {
		e.log.Warnw("failed removing stored-files entry", "fileId", fileID, "err", err)
		return
	}
	e.state.UpdateOccupation()
	e.metrics.Occupation.Set(float64(e.state.Occupation()))
}
