// Package store provides random access to individual message frames by
// id, backed by an open archive file handle and a bounded LRU of decoded
// messages.
package store

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dcarrero/mboxshell/errs"
	"github.com/dcarrero/mboxshell/index"
	"github.com/dcarrero/mboxshell/mbox"
)

// DefaultCacheSize is the number of decoded messages kept resident.
const DefaultCacheSize = 50

// Store wraps one open archive file and its index, serving Get/GetRaw
// lookups by record id. A single *os.File is shared under a mutex rather
// than one handle per goroutine, since positioned ReadAt calls on Linux
// don't require per-caller file descriptors.
type Store struct {
	path string
	recs []index.Record
	byID map[uint64]int

	mu sync.Mutex
	f  *os.File

	cache *lru.Cache[uint64, *mbox.Decoded]
}

// Open opens the archive at path for random access, indexed by idx.
func Open(path string, idx *index.File, cacheSize int) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[uint64, *mbox.Decoded](cacheSize)
	if err != nil {
		f.Close()
		return nil, err
	}

	byID := make(map[uint64]int, len(idx.Records))
	for i, r := range idx.Records {
		byID[r.ID] = i
	}

	return &Store{
		path:  path,
		recs:  idx.Records,
		byID:  byID,
		f:     f,
		cache: cache,
	}, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Record returns the metadata record for id.
func (s *Store) Record(id uint64) (index.Record, error) {
	i, ok := s.byID[id]
	if !ok {
		return index.Record{}, &errs.RecordNotFoundError{Archive: s.path, ID: id}
	}
	return s.recs[i], nil
}

// GetRaw returns the raw frame bytes for id -- never cached, since the
// cache holds decoded results, not the bytes they were decoded from.
func (s *Store) GetRaw(id uint64) ([]byte, error) {
	rec, err := s.Record(id)
	if err != nil {
		return nil, err
	}
	return s.readAt(rec.Offset, rec.Length)
}

// Get returns the decoded message for id, serving from the LRU cache when
// present.
func (s *Store) Get(id uint64) (*mbox.Decoded, error) {
	if d, ok := s.cache.Get(id); ok {
		return d, nil
	}
	rec, err := s.Record(id)
	if err != nil {
		return nil, err
	}
	raw, err := s.readAt(rec.Offset, rec.Length)
	if err != nil {
		return nil, err
	}
	headersEnd := int(rec.Length)
	if end := headerBlockEnd(raw); end >= 0 {
		headersEnd = end
	}
	// The blank line before the next "From " separator is mbox framing,
	// not part of the message body.
	switch body := raw[headersEnd:]; {
	case bytes.HasSuffix(body, []byte("\r\n\r\n")):
		raw = raw[:len(raw)-2]
	case bytes.HasSuffix(body, []byte("\n\n")):
		raw = raw[:len(raw)-1]
	}
	d := mbox.Decode(raw, headersEnd)
	s.cache.Add(id, d)
	return d, nil
}

func (s *Store) readAt(offset, length int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, length)
	n, err := s.f.ReadAt(buf, offset)
	if err != nil && n < int(length) {
		return nil, fmt.Errorf("%s: short read at offset %d: %w", s.path, offset, err)
	}
	return buf, nil
}

// headerBlockEnd locates the header/body boundary in a freshly re-read
// frame, the same way the framer locates it during the initial scan, but
// over an already-bounded single frame instead of the whole archive.
func headerBlockEnd(b []byte) int {
	return mbox.HeaderBlockEnd(b)
}

// Records returns every record in id order as currently indexed.
func (s *Store) Records() []index.Record { return s.recs }
