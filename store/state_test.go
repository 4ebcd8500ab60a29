package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delgado-dev/chordvault/chordid"
)

func openTestState(t *testing.T, capacity int64) *State {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path, capacity)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenInitializesCapacity(t *testing.T) {
	s := openTestState(t, 1024)
	assert.Equal(t, int64(1024), s.Capacity())
	assert.Equal(t, int64(0), s.Occupation())
}

func TestMutateSentCreatesAndUpdates(t *testing.T) {
	s := openTestState(t, 1024)

	pf, err := s.MutateSent("picture.png", func(pf *PeerFile) {
		pf.FileID = "abc123"
		pf.Size = 512
		pf.ReplicationDegree = 2
		pf.Keys[chordid.ID(7)] = true
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", pf.FileID)
	assert.Len(t, pf.Keys, 1)

	got, ok, err := s.GetSent("picture.png")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(512), got.Size)
	assert.True(t, got.Keys[chordid.ID(7)])
}

func TestAddStoredAndRemoveStoredTrackOccupation(t *testing.T) {
	s := openTestState(t, 1024)

	require.NoError(t, s.AddStored(PeerFile{FileID: "f1", Size: 100}))
	require.NoError(t, s.AddStored(PeerFile{FileID: "f2", Size: 200}))
	assert.Equal(t, int64(300), s.Occupation())

	has, err := s.HasStored("f1")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.RemoveStored("f1"))
	assert.Equal(t, int64(200), s.Occupation())

	has, err = s.HasStored("f1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRemoveStoredIsIdempotent(t *testing.T) {
	s := openTestState(t, 1024)
	require.NoError(t, s.AddStored(PeerFile{FileID: "f1", Size: 100}))
	require.NoError(t, s.RemoveStored("f1"))
	require.NoError(t, s.RemoveStored("f1"), "removing an absent entry must not error")
	assert.Equal(t, int64(0), s.Occupation())
}

func TestHasSpaceRespectsCapacity(t *testing.T) {
	s := openTestState(t, 1000)
	require.NoError(t, s.AddStored(PeerFile{FileID: "f1", Size: 900}))

	assert.True(t, s.HasSpace(100))
	assert.False(t, s.HasSpace(101))
}

func TestSetCapacityPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path, 1000)
	require.NoError(t, err)
	require.NoError(t, s.SetCapacity(500))
	assert.Equal(t, int64(500), s.Capacity())
	require.NoError(t, s.Close())

	reopened, err := Open(path, 1000)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })
	assert.Equal(t, int64(500), reopened.Capacity())
}

func TestUpdateOccupationRescansStoredFiles(t *testing.T) {
	s := openTestState(t, 1000)
	require.NoError(t, s.AddStored(PeerFile{FileID: "f1", Size: 100}))
	require.NoError(t, s.AddStored(PeerFile{FileID: "f2", Size: 50}))

	require.NoError(t, s.UpdateOccupation())
	assert.Equal(t, int64(150), s.Occupation())
}

func TestAllSentAndAllStored(t *testing.T) {
	s := openTestState(t, 1000)
	_, err := s.MutateSent("a.png", func(pf *PeerFile) { pf.Size = 10 })
	require.NoError(t, err)
	_, err = s.MutateSent("b.png", func(pf *PeerFile) { pf.Size = 20 })
	require.NoError(t, err)
	require.NoError(t, s.AddStored(PeerFile{FileID: "f1", Size: 5}))

	sent, err := s.AllSent()
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	stored, err := s.AllStored()
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
