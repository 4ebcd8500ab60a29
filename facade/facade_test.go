package facade

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/delgado-dev/chordvault/chord"
	"github.com/delgado-dev/chordvault/chordid"
	"github.com/delgado-dev/chordvault/metrics"
	"github.com/delgado-dev/chordvault/protocol"
	"github.com/delgado-dev/chordvault/store"
	"github.com/delgado-dev/chordvault/transport"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	log := zap.NewNop().Sugar()

	static, err := transport.GenerateStaticKeyPair()
	require.NoError(t, err)

	self := chord.PeerRef{Address: "127.0.0.1:9999", GUID: chordid.ID(5)}
	client := chord.NewClient(self, static)
	ring := chord.NewRing(self, client)

	state, err := store.Open(filepath.Join(t.TempDir(), "state.db"), 1024)
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })

	blobs := store.NewBlobs(t.TempDir(), self.GUID.String())
	pool := protocol.NewPool(2)
	keys := chordid.NewRandKeySource(rand.New(rand.NewSource(1)))
	reg := metrics.New()

	engine := protocol.New(self, static, ring, state, blobs, pool, keys, reg, log, protocol.Config{
		ChunkBytes:        4096,
		BackupAckTimeout:  time.Second,
		BackupDataTimeout: time.Second,
		RestoreAckTimeout: time.Second,
	})

	clientPool := protocol.NewPool(2)
	return New(engine, ring, state, clientPool)
}

func TestBackupReturnsIDAndNotifiesAbortOnSolitaryRing(t *testing.T) {
	f := newTestFacade(t)

	resultCh := make(chan string, 1)
	id := f.Backup("does-not-matter.png", 1, func(gotID, message string) {
		resultCh <- message
		assert.NotEmpty(t, gotID)
	})
	assert.NotEmpty(t, id)

	select {
	case msg := <-resultCh:
		assert.Contains(t, msg, "not bootstrapped")
	case <-time.After(time.Second):
		t.Fatal("notify was never called")
	}
}

func TestStateRendersCapacityAndFileCounts(t *testing.T) {
	f := newTestFacade(t)

	out, err := f.State()
	require.NoError(t, err)
	assert.Contains(t, out, "Sent files (0)")
	assert.Contains(t, out, "Stored files (0)")
	assert.Contains(t, out, "Capacity: 0/1024 bytes")
}

func TestChordRendersSelfAndFingerTable(t *testing.T) {
	f := newTestFacade(t)

	out := f.Chord()
	assert.Contains(t, out, "Self: 127.0.0.1:9999")
	assert.Contains(t, out, "Predecessor: none")
	assert.Contains(t, out, "Finger table:")
}

func TestLookupOnSolitaryRingResolvesToSelf(t *testing.T) {
	f := newTestFacade(t)

	out, err := f.Lookup("42")
	require.NoError(t, err)
	assert.Contains(t, out, "owned by 127.0.0.1:9999")
}

func TestLookupRejectsMalformedKey(t *testing.T) {
	f := newTestFacade(t)

	_, err := f.Lookup("not-a-number")
	assert.Error(t, err)
}
