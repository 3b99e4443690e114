// Package index implements the on-disk metadata index: its binary file
// format, the single-pass builder that produces it, and the archive
// fingerprint used to detect staleness.
package index

import (
	"crypto/sha256"
	"io"
	"os"
)

// sampleWindow is the size of each of the two windows sampled at the
// start and end of the archive for fingerprinting.
const sampleWindow = 64 * 1024

// wholeFileThreshold: below this size, sampling the first and last 64 KiB
// would overlap or cover the whole file anyway, so the whole file is
// hashed directly instead of two (possibly overlapping) windows.
const wholeFileThreshold = 128 * 1024

// Fingerprint is an archive's composite identity: path, size, mtime, and
// a sampled digest, used to validate an index against its archive.
type Fingerprint struct {
	Path    string
	Size    int64
	MtimeNs int64
	Digest  [32]byte // SHA-256 over the sampled windows (or whole file)
}

// Equal reports whether two fingerprints describe the same archive state.
func (f Fingerprint) Equal(o Fingerprint) bool {
	return f.Path == o.Path && f.Size == o.Size && f.MtimeNs == o.MtimeNs && f.Digest == o.Digest
}

// Compute derives the fingerprint of the archive at path.
func Compute(path string) (Fingerprint, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, err
	}
	defer f.Close()

	digest, err := sampleDigest(f, fi.Size())
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{
		Path:    path,
		Size:    fi.Size(),
		MtimeNs: fi.ModTime().UnixNano(),
		Digest:  digest,
	}, nil
}

// sampleDigest hashes the first and last sampleWindow bytes of f (or the
// whole file, below wholeFileThreshold).
func sampleDigest(f *os.File, size int64) ([32]byte, error) {
	h := sha256.New()
	if size <= wholeFileThreshold {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return [32]byte{}, err
		}
		if _, err := io.Copy(h, f); err != nil {
			return [32]byte{}, err
		}
		var out [32]byte
		copy(out[:], h.Sum(nil))
		return out, nil
	}

	head := make([]byte, sampleWindow)
	if _, err := f.ReadAt(head, 0); err != nil && err != io.EOF {
		return [32]byte{}, err
	}
	h.Write(head)

	tail := make([]byte, sampleWindow)
	if _, err := f.ReadAt(tail, size-sampleWindow); err != nil && err != io.EOF {
		return [32]byte{}, err
	}
	h.Write(tail)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}
