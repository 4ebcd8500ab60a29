package store

import (
	"io"
	"os"
	"path/filepath"
)

// Blobs manages on-disk file bytes at <root>/<peer-guid>/<fileId>, the
// fixed layout spec §6 requires. Grounded on GoVaultFS store.go's
// Write/Read/Delete/Has, simplified from the teacher's CAS hash-tree
// PathTransformFunc (which spreads each key across nested directories) to
// the spec's flat per-peer fileId path.
type Blobs struct {
	root string
	guid string
}

// NewBlobs roots blob storage at <root>/<guid>.
func NewBlobs(root, guid string) *Blobs {
	return &Blobs{root: root, guid: guid}
}

func (b *Blobs) path(fileID string) string {
	return filepath.Join(b.root, b.guid, fileID)
}

// Has reports whether fileId exists on disk.
func (b *Blobs) Has(fileID string) bool {
	_, err := os.Stat(b.path(fileID))
	return err == nil
}

// Write streams r to disk under fileId, creating parent directories as needed.
func (b *Blobs) Write(fileID string, r io.Reader) (int64, error) {
	f, err := b.Create(fileID)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, r)
}

// Create opens fileId for writing, creating parent directories as needed.
// Used by callers (e.g. the BACKUP receiver) that must stream an exact
// byte count via an explicit io.WriterTo-style call rather than io.Copy's
// EOF-terminated loop, since a live connection never EOFs on its own.
func (b *Blobs) Create(fileID string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Join(b.root, b.guid), 0o755); err != nil {
		return nil, err
	}
	return os.Create(b.path(fileID))
}

// Read opens fileId for reading, along with its on-disk size.
func (b *Blobs) Read(fileID string) (int64, io.ReadCloser, error) {
	f, err := os.Open(b.path(fileID))
	if err != nil {
		return 0, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, nil, err
	}
	return fi.Size(), f, nil
}

// Delete removes fileId from disk. Not an error if already absent.
func (b *Blobs) Delete(fileID string) error {
	err := os.Remove(b.path(fileID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Clear removes every blob for this peer in one call.
func (b *Blobs) Clear() error {
	return os.RemoveAll(filepath.Join(b.root, b.guid))
}
