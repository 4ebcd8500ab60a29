package chordid

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeFileInfo struct {
	size    int64
	modTime time.Time
}

func (f fakeFileInfo) Name() string       { return "fake" }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return 0 }
func (f fakeFileInfo) ModTime() time.Time { return f.modTime }
func (f fakeFileInfo) IsDir() bool        { return false }
func (f fakeFileInfo) Sys() interface{}   { return nil }

func TestFileIDDeterministic(t *testing.T) {
	info := fakeFileInfo{size: 1024, modTime: time.Unix(1700000000, 0)}
	a := FileID("picture.png", info, "10.0.0.1:3000:42")
	b := FileID("picture.png", info, "10.0.0.1:3000:42")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32, "md5 hex digest")
}

func TestFileIDDiffersOnAnyAttribute(t *testing.T) {
	base := fakeFileInfo{size: 1024, modTime: time.Unix(1700000000, 0)}
	owner := "10.0.0.1:3000:42"

	baseline := FileID("picture.png", base, owner)

	differentName := FileID("other.png", base, owner)
	differentSize := FileID("picture.png", fakeFileInfo{size: 2048, modTime: base.modTime}, owner)
	differentOwner := FileID("picture.png", base, "10.0.0.2:3000:7")

	assert.NotEqual(t, baseline, differentName)
	assert.NotEqual(t, baseline, differentSize)
	assert.NotEqual(t, baseline, differentOwner)
}

func TestRandomGUIDLengthAndUniqueness(t *testing.T) {
	a := RandomGUID()
	b := RandomGUID()
	assert.Len(t, a, 64, "32 bytes hex-encoded")
	assert.NotEqual(t, a, b)
}
