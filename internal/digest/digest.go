// Package digest computes the SHA-256 content hashes used to detect duplicates.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/errors"
)

// Sum is the hash of a piece of content together with its size.
type Sum struct {
	Hash string
	Size int64
}

// File hashes the file at path.
func File(path string) (Sum, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Sum{}, errors.NewNotFoundError("file", path)
		}
		return Sum{}, errors.WrapIO("open", path, err)
	}
	defer f.Close()

	sum, err := Reader(f)
	if err != nil {
		return Sum{}, errors.WrapIO("read", path, err)
	}
	return sum, nil
}

// Reader hashes everything read from r.
func Reader(r io.Reader) (Sum, error) {
	h := sha256.New()
	n, err := io.CopyBuffer(h, r, make([]byte, constants.HashBufferSize))
	if err != nil {
		return Sum{}, err
	}
	return Sum{Hash: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// StreamToTemp copies r into a temporary file in dir while hashing it, and
// removes the file before returning on every path. An empty dir means the
// OS temp directory. A stream that yields no bytes is ErrEmptyContent, so
// unreadable documents never share the hash of empty content.
func StreamToTemp(r io.Reader, dir string) (Sum, error) {
	tmp, err := os.CreateTemp(dir, "kbmirror-*.part")
	if err != nil {
		return Sum{}, errors.WrapIO("create", dir, err)
	}
	name := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(name)
	}()

	h := sha256.New()
	n, err := io.CopyBuffer(io.MultiWriter(tmp, h), r, make([]byte, constants.HashBufferSize))
	if err != nil {
		return Sum{}, errors.WrapIO("stream", name, err)
	}
	if n == 0 {
		return Sum{}, errors.ErrEmptyContent
	}
	if err := tmp.Sync(); err != nil {
		return Sum{}, errors.WrapIO("sync", name, err)
	}
	return Sum{Hash: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}
