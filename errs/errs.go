// Package errs defines the error taxonomy shared by every mboxshell
// component: io, format, index_stale, index_corrupt, query_parse,
// cancelled, and decode (the last is never returned as an error -- it is
// recorded as a per-record flag instead, see mbox.Decoded.ParseError).
//
// Each type carries the archive path and, where meaningful, a byte offset
// or record id, per the "no stack traces, human-readable message" contract.
package errs

import "fmt"

// FormatError reports an MBOX structure violation that a caller asked to
// treat as fatal (the decoder and framer are otherwise total on bytes and
// never return this themselves; it surfaces only from strict callers).
type FormatError struct {
	Archive string
	Offset  int64
	Msg     string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: format error at offset %d: %s", e.Archive, e.Offset, e.Msg)
}

// IndexStaleError reports that an on-disk index no longer matches its
// archive's fingerprint.
type IndexStaleError struct {
	Archive string
	Reason  string
}

func (e *IndexStaleError) Error() string {
	return fmt.Sprintf("%s: index is stale: %s", e.Archive, e.Reason)
}

// IndexCorruptError reports a magic, version, or digest mismatch in an
// index file.
type IndexCorruptError struct {
	Archive string
	Reason  string
}

func (e *IndexCorruptError) Error() string {
	return fmt.Sprintf("%s: index is corrupt: %s", e.Archive, e.Reason)
}

// QueryParseError reports a user error in a query string, including the
// byte offset at which parsing failed.
type QueryParseError struct {
	Query  string
	Offset int
	Msg    string
}

func (e *QueryParseError) Error() string {
	return fmt.Sprintf("query parse error at offset %d: %s (query: %q)", e.Offset, e.Msg, e.Query)
}

// CancelledError reports that an operation was stopped by its caller's
// cancellation token (a context.Context).
type CancelledError struct {
	Archive string
	Op      string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s: %s cancelled", e.Archive, e.Op)
}

// RecordNotFoundError reports a lookup by id that fell outside the index.
type RecordNotFoundError struct {
	Archive string
	ID      uint64
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("%s: no record with id %d", e.Archive, e.ID)
}
