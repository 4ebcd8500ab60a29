package protocol

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/delgado-dev/chordvault/chord"
	"github.com/delgado-dev/chordvault/chordid"
	"github.com/delgado-dev/chordvault/metrics"
	"github.com/delgado-dev/chordvault/store"
	"github.com/delgado-dev/chordvault/transport"
)

// testPeer bundles a fully wired ChordVault peer, listening on a real
// loopback socket, for end-to-end BACKUP/RESTORE/DELETE/RECLAIM tests
// mirroring spec §8's scenarios.
type testPeer struct {
	self     chord.PeerRef
	ring     *chord.Ring
	engine   *Engine
	state    *store.State
	blobs    *store.Blobs
	listener *transport.Listener
}

// newTestPeer binds a real loopback listener and assigns it guid
// directly rather than deriving it from the ephemeral port (which the OS
// assigns unpredictably), so tests can place peers at known positions on
// the ring instead of depending on chance port-driven hash placement.
// keys lets a test inject a deterministic KeySource in place of the
// production random one.
func newTestPeer(t *testing.T, guid chordid.ID, keys chordid.KeySource) *testPeer {
	t.Helper()
	log := zap.NewNop().Sugar()

	static, err := transport.GenerateStaticKeyPair()
	require.NoError(t, err)

	ln := transport.NewListener("127.0.0.1:0", chord.PeerRef{}, static, log)
	require.NoError(t, ln.ListenAndAccept())
	t.Cleanup(func() { ln.Close() })

	self := chord.PeerRef{Address: ln.Addr(), GUID: guid}

	root := t.TempDir()
	state, err := store.Open(filepath.Join(root, "state.db"), 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })

	blobs := store.NewBlobs(root, self.GUID.String())

	client := chord.NewClient(self, static)
	ring := chord.NewRing(self, client)

	pool := NewPool(4)
	reg := metrics.New()

	engine := New(self, static, ring, state, blobs, pool, keys, reg, log, Config{
		ChunkBytes:        4096,
		BackupAckTimeout:  2 * time.Second,
		BackupDataTimeout: 2 * time.Second,
		RestoreAckTimeout: 2 * time.Second,
	})
	ln.Handler = engine.HandleInbound

	return &testPeer{self: self, ring: ring, engine: engine, state: state, blobs: blobs, listener: ln}
}

func collectNotify(t *testing.T) (Notify, func() []string) {
	t.Helper()
	var lines []string
	return func(m string) { lines = append(lines, m) }, func() []string { return lines }
}

func TestBackupRestoreDeleteEndToEnd(t *testing.T) {
	defaultKeys := func() chordid.KeySource { return chordid.NewRandKeySource(rand.New(rand.NewSource(1))) }
	storer := newTestPeer(t, chordid.ID(1), defaultKeys())
	owner := newTestPeer(t, chordid.ID(2), defaultKeys())

	require.NoError(t, owner.ring.Join(storer.self))
	require.NoError(t, owner.ring.Stabilize()) // owner notifies storer, so storer learns of owner
	require.NoError(t, storer.ring.Stabilize())

	dir := t.TempDir()
	filename := filepath.Join(dir, "picture.png")
	require.NoError(t, os.WriteFile(filename, []byte("backed up bytes"), 0o644))

	notify, lines := collectNotify(t)
	owner.engine.Backup(filename, 1, notify)
	require.NotEmpty(t, lines())

	sent, ok, err := owner.state.GetSent(filename)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, sent.Keys, "backup must have recorded at least one accepted key")

	has, err := storer.state.HasStored(sent.FileID)
	require.NoError(t, err)
	require.True(t, has, "the only other peer in a 2-node ring must hold the replica")

	restoreNotify, restoreLines := collectNotify(t)
	t.Chdir(dir)

	owner.engine.Restore(filename, restoreNotify)
	require.Contains(t, restoreLines()[len(restoreLines())-1], "restored successfully")

	restoredPath := filepath.Join(dir, "restored_picture.png")
	got, err := os.ReadFile(restoredPath)
	require.NoError(t, err)
	require.Equal(t, "backed up bytes", string(got))

	deleteNotify, _ := collectNotify(t)
	owner.engine.Delete(filename, deleteNotify)

	require.Eventually(t, func() bool {
		has, _ := storer.state.HasStored(sent.FileID)
		return !has
	}, time.Second, 10*time.Millisecond, "DELETE must eventually remove the replica")
}

func TestReclaimEvictsAndNotifiesOwner(t *testing.T) {
	defaultKeys := func() chordid.KeySource { return chordid.NewRandKeySource(rand.New(rand.NewSource(1))) }
	storer := newTestPeer(t, chordid.ID(1), defaultKeys())
	owner := newTestPeer(t, chordid.ID(2), defaultKeys())

	require.NoError(t, owner.ring.Join(storer.self))
	require.NoError(t, owner.ring.Stabilize()) // owner notifies storer, so storer learns of owner
	require.NoError(t, storer.ring.Stabilize())

	dir := t.TempDir()
	filename := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(filename, []byte("reclaim me"), 0o644))

	notify, _ := collectNotify(t)
	owner.engine.Backup(filename, 1, notify)

	sent, ok, err := owner.state.GetSent(filename)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, sent.Keys)

	reclaimNotify, reclaimLines := collectNotify(t)
	storer.engine.Reclaim(0, reclaimNotify)
	require.NotEmpty(t, reclaimLines())

	has, err := storer.state.HasStored(sent.FileID)
	require.NoError(t, err)
	require.False(t, has)

	require.Eventually(t, func() bool {
		got, _, err := owner.state.GetSent(filename)
		return err == nil && len(got.Keys) >= 1
	}, 2*time.Second, 20*time.Millisecond, "REMOVED-triggered re-backup should eventually restore the replication degree")
}
