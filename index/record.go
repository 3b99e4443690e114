package index

import "time"

// Flags packs the small per-message booleans (is_multipart, is_html_only,
// parse_error, ...) into one bit field so each record stays fixed-shape
// on disk.
type Flags uint32

const (
	FlagMultipart Flags = 1 << iota
	FlagHTMLOnly
	FlagParseError
	FlagDateUnparseable
	FlagHasMoreRecipients // to_addrs was truncated to maxRecipients
	FlagFromParseError
	FlagEscapedFromObserved // body contains a ">From " escape, confirming mboxrd
)

// Has reports whether f includes bit.
func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// timeFromUnixNano reconstructs a UTC time.Time from the nanosecond epoch
// value stored on disk.
func timeFromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// maxRecipients is how many to_addrs entries a record keeps before
// setting FlagHasMoreRecipients.
const maxRecipients = 16

// Record is one fixed-shape metadata entry. No decoded message body is
// ever stored here -- only what the index needs to answer metadata
// queries and to locate the frame for a full re-decode.
type Record struct {
	ID            uint64
	Offset        int64
	Length        int64
	Size          int64 // == Length; kept as a distinct field for clarity
	Date          time.Time
	HasDate       bool
	FromAddr      string
	FromName      string
	ToAddrs       []string
	CcAddrs       []string
	Subject       string
	HasAttachment bool
	Labels        []string
	MessageID     string
	InReplyTo     string
	References    string
	Flags         Flags
}
