package protocol

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/delgado-dev/chordvault/chordid"
)

// sequencedKeySource returns a distinct fixed candidate list on each
// successive Draw call, letting a test control exactly which targets
// BACKUP/REMOVED-triggered re-backup will consider and in what order.
type sequencedKeySource struct {
	calls [][]chordid.ID
	next  int
}

func (s *sequencedKeySource) Draw(n int) []chordid.ID {
	if len(s.calls) == 0 {
		return nil
	}
	list := s.calls[len(s.calls)-1]
	if s.next < len(s.calls) {
		list = s.calls[s.next]
		s.next++
	}
	if n < len(list) {
		return list[:n]
	}
	return list
}

// TestReclaimTriggeredRebackupExcludesRemainingHolder exercises spec
// §4.5.4 scenario S3 with replicationDegree=2: losing one of two replicas
// must re-backup to a target other than the peer that still holds the
// remaining copy, not re-select (and be rejected by) that same holder.
func TestReclaimTriggeredRebackupExcludesRemainingHolder(t *testing.T) {
	// Ring: A(1) -> owner(2) -> B(50) -> wraps to A. owner's interval is
	// just {2}; B owns (2,50]; A owns everything else, so candidate key 10
	// resolves to B and candidate key 100 resolves to A, two values distinct
	// from either peer's own GUID.
	a := newTestPeer(t, chordid.ID(1), &sequencedKeySource{})
	owner := newTestPeer(t, chordid.ID(2), &sequencedKeySource{
		calls: [][]chordid.ID{
			{100, 10, 100, 10, 100, 10, 100, 10}, // initial BACKUP, r=2: accepts A(100) then B(10)
			{10, 100, 100, 100},                  // re-backup, r=1: B(10) must be excluded, falls to A(100)
		},
	})
	b := newTestPeer(t, chordid.ID(50), &sequencedKeySource{})

	require.NoError(t, owner.ring.Join(a.self))
	require.NoError(t, owner.ring.Stabilize())
	require.NoError(t, a.ring.Stabilize())

	require.NoError(t, b.ring.Join(owner.self))
	require.NoError(t, b.ring.Stabilize())
	require.NoError(t, owner.ring.Stabilize())

	for i := 0; i < 3; i++ {
		require.NoError(t, a.ring.Stabilize())
		require.NoError(t, owner.ring.Stabilize())
		require.NoError(t, b.ring.Stabilize())
	}

	dir := t.TempDir()
	filename := filepath.Join(dir, "replicated.bin")
	require.NoError(t, os.WriteFile(filename, []byte("two copies please"), 0o644))

	notify, _ := collectNotify(t)
	owner.engine.Backup(filename, 2, notify)

	sent, ok, err := owner.state.GetSent(filename)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, sent.Keys, 2, "both targets must have accepted the initial backup")

	hasA, err := a.state.HasStored(sent.FileID)
	require.NoError(t, err)
	require.True(t, hasA)
	hasB, err := b.state.HasStored(sent.FileID)
	require.NoError(t, err)
	require.True(t, hasB)

	reclaimNotify, _ := collectNotify(t)
	a.engine.Reclaim(0, reclaimNotify)

	stillHasA, err := a.state.HasStored(sent.FileID)
	require.NoError(t, err)
	require.False(t, stillHasA)

	require.Eventually(t, func() bool {
		got, _, err := owner.state.GetSent(filename)
		return err == nil && len(got.Keys) >= 2
	}, 2*time.Second, 20*time.Millisecond,
		"re-backup must pick a target other than B, the peer still holding the remaining copy")

	got, _, err := owner.state.GetSent(filename)
	require.NoError(t, err)
	require.Contains(t, got.Keys, chordid.ID(10), "B's original key must remain untouched")
	require.Contains(t, got.Keys, chordid.ID(100), "re-backup must have landed on A, not a rejected re-send to B")
}
