package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/delgado-dev/chordvault/chordid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketSent  = []byte("sent_files")
	bucketStore = []byte("stored_files")
	bucketMeta  = []byte("meta")
	keyCapacity = []byte("capacity")
)

func init() {
	gob.Register(PeerFile{})
}

// State is the persisted peer state: sent files, stored files, and the
// capacity/occupation pair, all write-through to a single bbolt file per
// spec §4.4 ("serialization of both maps occurs on every mutation").
type State struct {
	db *bolt.DB

	// capacity/occupation share one mutex because they are an invariant
	// pair, spec §5.
	capMu      sync.Mutex
	capacity   int64
	occupation int64
}

// Open opens (creating if absent) the state file at path and initializes
// capacity to defaultCapacity if this is a fresh store.
func Open(path string, defaultCapacity int64) (*State, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open state file: %w", err)
	}

	s := &State{db: db}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketSent, bucketStore, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keyCapacity) == nil {
			return meta.Put(keyCapacity, encodeInt64(defaultCapacity))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := s.loadCapacityAndOccupation(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *State) loadCapacityAndOccupation() error {
	return s.db.View(func(tx *bolt.Tx) error {
		cap := decodeInt64(tx.Bucket(bucketMeta).Get(keyCapacity))
		var occ int64
		if err := tx.Bucket(bucketStore).ForEach(func(_, v []byte) error {
			pf, err := decodePF(v)
			if err != nil {
				return err
			}
			occ += pf.Size
			return nil
		}); err != nil {
			return err
		}
		s.capMu.Lock()
		s.capacity = cap
		s.occupation = occ
		s.capMu.Unlock()
		return nil
	})
}

func encodeInt64(v int64) []byte {
	var buf bytes.Buffer
	gob.NewEncoder(&buf).Encode(v)
	return buf.Bytes()
}

func decodeInt64(b []byte) int64 {
	if b == nil {
		return 0
	}
	var v int64
	gob.NewDecoder(bytes.NewReader(b)).Decode(&v)
	return v
}

func encodePF(pf PeerFile) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePF(b []byte) (PeerFile, error) {
	var pf PeerFile
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&pf)
	return pf, err
}

// AddSent stores (or overwrites) the sent-files entry keyed by the
// client-supplied filename.
func (s *State) AddSent(name string, pf PeerFile) error {
	enc, err := encodePF(pf)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSent).Put([]byte(name), enc)
	})
}

// GetSent returns the sent-files entry for name, if any.
func (s *State) GetSent(name string) (PeerFile, bool, error) {
	var pf PeerFile
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSent).Get([]byte(name))
		if b == nil {
			return nil
		}
		found = true
		var err error
		pf, err = decodePF(b)
		return err
	})
	return pf, found, err
}

// MutateSent loads the sent-files entry for name (zero value if absent),
// applies fn, and persists the result. fn runs under the store's write
// lock, so it must not block on I/O.
func (s *State) MutateSent(name string, fn func(pf *PeerFile)) (PeerFile, error) {
	var result PeerFile
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSent)
		var pf PeerFile
		if raw := b.Get([]byte(name)); raw != nil {
			var err error
			pf, err = decodePF(raw)
			if err != nil {
				return err
			}
		} else {
			pf.Keys = map[chordid.ID]bool{}
			pf.LocalKey = -1
		}
		if pf.Keys == nil {
			pf.Keys = map[chordid.ID]bool{}
		}
		fn(&pf)
		result = pf
		enc, err := encodePF(pf)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), enc)
	})
	return result, err
}

// RemoveSent purges the sent-files entry for name, spec §3's DELETE
// lifecycle: mark beingDeleted, then purge once all DELETEs are dispatched.
func (s *State) RemoveSent(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSent).Delete([]byte(name))
	})
}

// AllSent returns every sent-files entry keyed by filename.
func (s *State) AllSent() (map[string]PeerFile, error) {
	out := make(map[string]PeerFile)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSent).ForEach(func(k, v []byte) error {
			pf, err := decodePF(v)
			if err != nil {
				return err
			}
			out[string(k)] = pf
			return nil
		})
	})
	return out, err
}

// AddStored inserts a stored-files entry keyed by fileId and accounts for
// its bytes in occupation.
func (s *State) AddStored(pf PeerFile) error {
	enc, err := encodePF(pf)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStore).Put([]byte(pf.FileID), enc)
	}); err != nil {
		return err
	}

	s.capMu.Lock()
	s.occupation += pf.Size
	s.capMu.Unlock()
	return nil
}

// GetStored returns the stored-files entry for fileId, if any.
func (s *State) GetStored(fileID string) (PeerFile, bool, error) {
	var pf PeerFile
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStore).Get([]byte(fileID))
		if b == nil {
			return nil
		}
		found = true
		var err error
		pf, err = decodePF(b)
		return err
	})
	return pf, found, err
}

// HasStored reports whether fileId is present, spec §4.5.1 receiver check.
func (s *State) HasStored(fileID string) (bool, error) {
	_, ok, err := s.GetStored(fileID)
	return ok, err
}

// RemoveStored deletes a stored-files entry and reconciles occupation.
func (s *State) RemoveStored(fileID string) error {
	pf, ok, err := s.GetStored(fileID)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStore).Delete([]byte(fileID))
	}); err != nil {
		return err
	}
	if ok {
		s.capMu.Lock()
		s.occupation -= pf.Size
		if s.occupation < 0 {
			s.occupation = 0
		}
		s.capMu.Unlock()
	}
	return nil
}

// AllStored returns every stored-files entry keyed by fileId, in the map
// iteration order spec §4.5.4 relies on for RECLAIM.
func (s *State) AllStored() (map[string]PeerFile, error) {
	out := make(map[string]PeerFile)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStore).ForEach(func(k, v []byte) error {
			pf, err := decodePF(v)
			if err != nil {
				return err
			}
			out[string(k)] = pf
			return nil
		})
	})
	return out, err
}

// HasSpace reports occupation+n <= capacity.
func (s *State) HasSpace(n int64) bool {
	s.capMu.Lock()
	defer s.capMu.Unlock()
	return s.occupation+n <= s.capacity
}

// Capacity returns the configured capacity in bytes.
func (s *State) Capacity() int64 {
	s.capMu.Lock()
	defer s.capMu.Unlock()
	return s.capacity
}

// Occupation returns the cached occupation in bytes.
func (s *State) Occupation() int64 {
	s.capMu.Lock()
	defer s.capMu.Unlock()
	return s.occupation
}

// SetCapacity updates the capacity and persists it.
func (s *State) SetCapacity(n int64) error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyCapacity, encodeInt64(n))
	}); err != nil {
		return err
	}
	s.capMu.Lock()
	s.capacity = n
	s.capMu.Unlock()
	return nil
}

// UpdateOccupation rescans stored files and recomputes the byte sum,
// spec §4.4's update_occupation.
func (s *State) UpdateOccupation() error {
	all, err := s.AllStored()
	if err != nil {
		return err
	}
	var total int64
	for _, pf := range all {
		total += pf.Size
	}
	s.capMu.Lock()
	s.occupation = total
	s.capMu.Unlock()
	return nil
}

// Close releases the underlying state file.
func (s *State) Close() error {
	return s.db.Close()
}
