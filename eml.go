package mboxshell

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dcarrero/mboxshell/index"
	"github.com/dcarrero/mboxshell/mbox"
)

// emlStore serves Get/GetRaw for a single .eml file or a directory of
// .eml files, each file treated as one whole-file frame. There is no
// on-disk index or LRU eviction here: pseudo-archives are, in practice,
// small enough that caching every decode in memory for the handle's
// lifetime is simpler and cheap.
type emlStore struct {
	paths map[uint64]string
	cache map[uint64]*mbox.Decoded
}

func newEMLStore(paths map[uint64]string) *emlStore {
	return &emlStore{paths: paths, cache: make(map[uint64]*mbox.Decoded)}
}

func (s *emlStore) GetRaw(id uint64) ([]byte, error) {
	path, ok := s.paths[id]
	if !ok {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(path)
}

func (s *emlStore) Get(id uint64) (*mbox.Decoded, error) {
	if d, ok := s.cache[id]; ok {
		return d, nil
	}
	raw, err := s.GetRaw(id)
	if err != nil {
		return nil, err
	}
	d := mbox.Decode(raw, mbox.HeaderBlockEnd(raw))
	s.cache[id] = d
	return d, nil
}

func (s *emlStore) Close() error { return nil }

// openEMLFile wraps a single .eml file as a one-record pseudo-archive.
func openEMLFile(path string, _ int) ([]index.Record, messageStore, error) {
	rec, err := buildEMLRecord(0, path)
	if err != nil {
		return nil, nil, err
	}
	st := newEMLStore(map[uint64]string{0: path})
	return []index.Record{rec}, st, nil
}

// openEMLDir wraps every *.eml file in a directory as a pseudo-archive,
// assigning ids by sorted filename order.
func openEMLDir(dir string, _ int) ([]index.Record, messageStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".eml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	recs := make([]index.Record, 0, len(names))
	paths := make(map[uint64]string, len(names))
	for i, name := range names {
		id := uint64(i)
		path := filepath.Join(dir, name)
		rec, err := buildEMLRecord(id, path)
		if err != nil {
			return nil, nil, err
		}
		recs = append(recs, rec)
		paths[id] = path
	}
	return recs, newEMLStore(paths), nil
}

func buildEMLRecord(id uint64, path string) (index.Record, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return index.Record{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return index.Record{}, err
	}
	return index.BuildRecordFromBytes(id, 0, fi.Size(), raw), nil
}
