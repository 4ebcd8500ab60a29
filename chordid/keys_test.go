package chordid

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandKeySourceDrawDedups(t *testing.T) {
	ks := NewRandKeySource(rand.New(rand.NewSource(1)))
	draw := ks.Draw(10)
	require.Len(t, draw, 10)

	seen := make(map[ID]bool)
	for _, id := range draw {
		assert.False(t, seen[id], "draw must not repeat an id")
		seen[id] = true
	}
}

func TestRandKeySourceDrawAllWhenNExceedsSpace(t *testing.T) {
	ks := NewRandKeySource(rand.New(rand.NewSource(1)))
	draw := ks.Draw(MaxPeers + 10)
	assert.Len(t, draw, MaxPeers)

	seen := make(map[ID]bool, MaxPeers)
	for _, id := range draw {
		seen[id] = true
	}
	assert.Len(t, seen, MaxPeers, "must cover the whole identifier space exactly once")
}

func TestRandKeySourceDeterministicWithSameSeed(t *testing.T) {
	a := NewRandKeySource(rand.New(rand.NewSource(42))).Draw(5)
	b := NewRandKeySource(rand.New(rand.NewSource(42))).Draw(5)
	assert.Equal(t, a, b)
}
