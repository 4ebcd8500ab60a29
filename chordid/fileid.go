package chordid

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// FileID derives the content-and-metadata hash used as a file's identifier
// from filename + size + modified time + owner. The file's creation time is
// not part of the hash. Grounded on GoVaultFS crypto.go's hashKey,
// generalized from a bare key string to this attribute tuple.
func FileID(path string, info os.FileInfo, owner string) string {
	h := md5.New()
	fmt.Fprintf(h, "%s::%d::%d::%s", path, info.Size(), info.ModTime().UnixNano(), owner)
	return hex.EncodeToString(h.Sum(nil))
}

// RandomGUID generates 32 random bytes and returns them hex-encoded (64
// characters), an opaque unique token. Mirrors GoVaultFS crypto.go's
// generateID.
func RandomGUID() string {
	buf := make([]byte, 32)
	io.ReadFull(rand.Reader, buf)
	return hex.EncodeToString(buf)
}
