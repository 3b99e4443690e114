// Package mboxshell is a read-only archive access layer: open an archive
// (an MBOX file, a single .eml, or a directory of .eml files), list and
// query its messages by metadata or full text, and fetch individual
// decoded messages or raw frames.
package mboxshell

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dcarrero/mboxshell/errs"
	"github.com/dcarrero/mboxshell/index"
	"github.com/dcarrero/mboxshell/mbox"
	"github.com/dcarrero/mboxshell/mlog"
	"github.com/dcarrero/mboxshell/query"
	"github.com/dcarrero/mboxshell/store"
)

// OpenOptions configures OpenArchive.
type OpenOptions struct {
	// Logger receives structured progress/diagnostic output; nil discards it.
	Logger *mlog.Logger
	// CacheSize overrides store.DefaultCacheSize when non-zero.
	CacheSize int
	// Progress is forwarded to index.Build when an index must be (re)built.
	Progress func(bytesRead, bytesTotal int64)
}

// ArchiveHandle is an opened archive: its records, ready for listing and
// querying, and (for a real MBOX file) a Store for random-access reads.
type ArchiveHandle struct {
	path string
	kind archiveKind
	recs []index.Record
	fp   index.Fingerprint
	st   messageStore
	log  *mlog.Logger
}

// messageStore is the subset of store.Store (or eml.go's pseudo-archive
// equivalent) ArchiveHandle needs to serve Get/GetRaw lookups, regardless
// of whether the underlying bytes live in one archive file or one file
// per message.
type messageStore interface {
	Get(id uint64) (*mbox.Decoded, error)
	GetRaw(id uint64) ([]byte, error)
	Close() error
}

type archiveKind int

const (
	kindMbox archiveKind = iota
	kindEML
	kindEMLDir
)

// OpenArchive validates or builds the archive's index (for an MBOX file)
// or scans it directly (for an .eml file or directory). ctx bounds any
// index build this call triggers.
func OpenArchive(ctx context.Context, path string, opts OpenOptions) (*ArchiveHandle, error) {
	log := opts.Logger
	if log == nil {
		log = mlog.Discard()
	}

	kind, err := detectKind(path)
	if err != nil {
		return nil, err
	}

	switch kind {
	case kindEML:
		recs, st, err := openEMLFile(path, opts.CacheSize)
		if err != nil {
			return nil, err
		}
		return &ArchiveHandle{path: path, kind: kind, recs: recs, st: st, log: log}, nil
	case kindEMLDir:
		recs, st, err := openEMLDir(path, opts.CacheSize)
		if err != nil {
			return nil, err
		}
		return &ArchiveHandle{path: path, kind: kind, recs: recs, st: st, log: log}, nil
	default:
		return openMboxArchive(ctx, path, opts, log)
	}
}

func openMboxArchive(ctx context.Context, path string, opts OpenOptions, log *mlog.Logger) (*ArchiveHandle, error) {
	idxPath := path + index.Suffix
	idx, loadErr := index.Load(idxPath, path)
	if loadErr != nil {
		log.WithArchive(path).Infof("index unusable (%v), rebuilding", loadErr)
		if err := index.Build(ctx, path, log, index.BuildOptions{Progress: opts.Progress}); err != nil {
			return nil, err
		}
		idx, loadErr = index.Load(idxPath, path)
		if loadErr != nil {
			return nil, loadErr
		}
	}

	st, err := store.Open(path, idx, opts.CacheSize)
	if err != nil {
		return nil, err
	}

	return &ArchiveHandle{
		path: path,
		kind: kindMbox,
		recs: idx.Records,
		fp:   idx.Fingerprint,
		st:   st,
		log:  log,
	}, nil
}

func detectKind(path string) (archiveKind, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if fi.IsDir() {
		return kindEMLDir, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".eml") {
		return kindEML, nil
	}
	return kindMbox, nil
}

// Close releases the archive's underlying file handle, if any.
func (h *ArchiveHandle) Close() error {
	if h.st != nil {
		return h.st.Close()
	}
	return nil
}

// ListRecords returns every record, sorted by sortKey ("id", "date",
// "subject", "from"; any other value falls back to "id") and direction
// ("asc" or "desc").
func (h *ArchiveHandle) ListRecords(sortKey, direction string) []index.Record {
	out := append([]index.Record(nil), h.recs...)
	less := sortLess(sortKey, out)
	if direction == "desc" {
		sort.SliceStable(out, func(i, j int) bool { return less(j, i) })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return less(i, j) })
	}
	return out
}

func sortLess(key string, recs []index.Record) func(i, j int) bool {
	switch key {
	case "date":
		return func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) }
	case "subject":
		return func(i, j int) bool { return strings.ToLower(recs[i].Subject) < strings.ToLower(recs[j].Subject) }
	case "from":
		return func(i, j int) bool { return strings.ToLower(recs[i].FromAddr) < strings.ToLower(recs[j].FromAddr) }
	default:
		return func(i, j int) bool { return recs[i].ID < recs[j].ID }
	}
}

// GetMessage returns the fully decoded message with the given id, serving
// from the LRU cache when possible.
func (h *ArchiveHandle) GetMessage(id uint64) (*mbox.Decoded, error) {
	if h.st == nil {
		return nil, &errs.RecordNotFoundError{Archive: h.path, ID: id}
	}
	return h.st.Get(id)
}

// GetRawFrame returns the raw, undecoded bytes of the message with the
// given id.
func (h *ArchiveHandle) GetRawFrame(id uint64) ([]byte, error) {
	if h.st == nil {
		return nil, &errs.RecordNotFoundError{Archive: h.path, ID: id}
	}
	return h.st.GetRaw(id)
}

// Query parses and evaluates a query string against every record,
// returning matches in ascending id order.
func (h *ArchiveHandle) Query(ctx context.Context, queryString string) ([]index.Record, error) {
	expr, err := query.Parse(queryString)
	if err != nil {
		return nil, err
	}
	var fetch func(id uint64) (string, error)
	if h.st != nil {
		fetch = func(id uint64) (string, error) {
			d, err := h.st.Get(id)
			if err != nil {
				return "", err
			}
			return d.PlainText, nil
		}
	}
	runner := query.NewRunner(h.recs, fetch)
	return runner.Run(ctx, h.path, expr)
}

// Labels returns every distinct label seen across the archive, mapped to
// the number of messages carrying it.
func (h *ArchiveHandle) Labels() map[string]int {
	out := make(map[string]int)
	for _, r := range h.recs {
		for _, l := range r.Labels {
			out[l]++
		}
	}
	return out
}

// Convention reports which MBOX escaping convention the archive appears to
// use: "mboxrd" if any message body was observed to contain a ">From "
// escape sequence, "unknown" otherwise. This is purely informational --
// the framer always applies mboxrd semantics when reading, regardless of
// what Convention reports.
func (h *ArchiveHandle) Convention() string {
	for _, r := range h.recs {
		if r.Flags.Has(index.FlagEscapedFromObserved) {
			return "mboxrd"
		}
	}
	return "unknown"
}

// Fingerprint returns the archive's current identity (path, size, mtime,
// sampled digest). For a single .eml file, which is never indexed to
// disk, this recomputes that file's fingerprint. For a directory of .eml
// files it returns the error index.Compute gives when reading the
// directory; no directory fingerprint is computed.
func (h *ArchiveHandle) Fingerprint() (index.Fingerprint, error) {
	if h.kind == kindMbox {
		return h.fp, nil
	}
	return index.Compute(h.path)
}

// Rebuild forces a fresh index build for an MBOX archive, replacing the
// handle's in-memory records and Store. It is a no-op for .eml inputs,
// which have no on-disk index to go stale.
func (h *ArchiveHandle) Rebuild(ctx context.Context, progress func(bytesRead, bytesTotal int64)) error {
	if h.kind != kindMbox {
		return nil
	}
	if err := index.Build(ctx, h.path, h.log, index.BuildOptions{Progress: progress}); err != nil {
		return err
	}
	idx, err := index.Load(h.path+index.Suffix, h.path)
	if err != nil {
		return err
	}
	if h.st != nil {
		h.st.Close()
	}
	st, err := store.Open(h.path, idx, store.DefaultCacheSize)
	if err != nil {
		return err
	}
	h.recs = idx.Records
	h.fp = idx.Fingerprint
	h.st = st
	return nil
}
