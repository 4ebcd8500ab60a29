// Package chordid defines the identifier space shared by every ChordVault
// component: the bit width of the ring, modular ring arithmetic, and the
// hashing used to derive peer GUIDs and file ids.
//
// Grounded on AnshSinghSonkhia/GoVaultFS crypto.go (generateID, hashKey):
// the teacher hashes arbitrary strings into hex ids with crypto/md5 and
// crypto/rand; ChordVault keeps that shape but fixes the output to the
// M-bit ring space a Chord overlay requires.
package chordid

import (
	"crypto/sha1"
	"fmt"
	"math/big"
)

// M is the identifier bit width. It MUST be a compile-time constant and
// identical on every peer sharing a ring.
const M = 8

// MaxPeers is the size of the identifier space, 2^M.
const MaxPeers = 1 << M

// ID is an identifier in [0, MaxPeers).
type ID uint32

// Mod reduces an arbitrary integer into the ring's identifier space.
func Mod(v int64) ID {
	m := int64(MaxPeers)
	r := v % m
	if r < 0 {
		r += m
	}
	return ID(r)
}

// Add returns (id + 2^i) mod MaxPeers, used to build finger-table targets.
func (id ID) Add(i int) ID {
	return Mod(int64(id) + (int64(1) << uint(i)))
}

// HashGUID derives a peer GUID by hashing its network address into the
// ring's identifier space. Mirrors the teacher's generateID/hashKey use of
// a fixed-width hash truncated into a usable key.
func HashGUID(address string) ID {
	sum := sha1.Sum([]byte(address))
	n := new(big.Int).SetBytes(sum[:])
	mod := big.NewInt(MaxPeers)
	return ID(new(big.Int).Mod(n, mod).Int64())
}

// BetweenExclusive reports whether x lies strictly between a and b going
// clockwise around the ring, i.e. x in (a, b) mod MaxPeers. Handles wraparound.
func BetweenExclusive(x, a, b ID) bool {
	if a == b {
		return x != a
	}
	if a < b {
		return x > a && x < b
	}
	return x > a || x < b
}

// BetweenInclusiveRight reports whether x in (a, b] mod MaxPeers.
func BetweenInclusiveRight(x, a, b ID) bool {
	return x == b || BetweenExclusive(x, a, b)
}

// String renders the id for logging.
func (id ID) String() string {
	return fmt.Sprintf("%d", uint32(id))
}
