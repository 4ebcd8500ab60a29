package chordid

import (
	"math/rand"
	"sync"
)

// KeySource draws routing keys for a BACKUP request. Implementations MUST
// be safe for concurrent use. Injectable so tests get deterministic draws
// (see design note "Randomness in BACKUP key generation").
type KeySource interface {
	Draw(n int) []ID
}

// randKeySource is the production KeySource: n uniform draws over
// [0, MaxPeers), deduplicated. CLIENT_POOL runs commands concurrently
// (spec §4.5/§5), so Draw is guarded by a mutex: math/rand.Rand is not
// safe for concurrent use on its own.
type randKeySource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandKeySource builds a KeySource seeded from the given generator. Pass
// rand.New(rand.NewSource(seed)) in tests for reproducible candidate lists.
func NewRandKeySource(rng *rand.Rand) KeySource {
	return &randKeySource{rng: rng}
}

func (k *randKeySource) Draw(n int) []ID {
	k.mu.Lock()
	defer k.mu.Unlock()

	if n >= MaxPeers {
		all := make([]ID, MaxPeers)
		for i := range all {
			all[i] = ID(i)
		}
		k.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
		return all
	}

	seen := make(map[ID]bool, n)
	out := make([]ID, 0, n)
	for len(out) < n {
		id := ID(k.rng.Intn(MaxPeers))
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
