package index

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dcarrero/mboxshell/mbox"
	"github.com/dcarrero/mboxshell/mlog"
)

// Suffix is appended to an archive's path to name its index file, e.g.
// "mail.mbox" -> "mail.mbox.mboxshell.idx".
const Suffix = ".mboxshell.idx"

// BuildOptions configures one index build pass.
type BuildOptions struct {
	// Progress, when non-nil, is called after each frame is indexed with
	// the number of archive bytes consumed so far and the archive's total
	// size. Successive calls report monotonically non-decreasing values.
	Progress func(bytesRead, bytesTotal int64)
}

// Build performs a single sequential, cancellable, append-only pass over
// the archive at archivePath, decoding each frame's header block (and,
// where needed, its body, to determine attachment presence) into a
// Record, then writes the resulting index atomically.
//
// The framer itself never buffers a message body (mbox.Framer's contract).
// Deriving has_attachment, however, requires looking at the MIME structure
// of the body, not just the headers, so Build performs one additional
// positioned read per frame bounded by that single frame's length -- never
// the whole archive -- and hands the result to mbox.Decode.
func Build(ctx context.Context, archivePath string, log *mlog.Logger, opts BuildOptions) error {
	if log == nil {
		log = mlog.Discard()
	}
	entry := log.WithArchive(archivePath)

	fp, err := Compute(archivePath)
	if err != nil {
		return err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	framer := mbox.NewFramer(archivePath, f)
	var recs []Record
	for {
		frame, err := framer.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			entry.Warnf("build aborted: %v", err)
			return err
		}
		rec, err := buildRecord(f, frame)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
		if opts.Progress != nil {
			opts.Progress(frame.Offset+frame.Length, fp.Size)
		}
	}

	entry.Infof("built index: %d records", len(recs))
	return Write(archivePath+Suffix, fp, time.Now().UnixNano(), recs)
}

// buildRecord re-reads frame's full bytes and derives its metadata record.
func buildRecord(f *os.File, frame *mbox.Frame) (Record, error) {
	full := make([]byte, frame.Length)
	if _, err := f.ReadAt(full, frame.Offset); err != nil && err != io.EOF {
		return Record{}, err
	}
	return recordFromBytes(frame.ID, frame.Offset, frame.Length, full, int(frame.HeadersEnd)), nil
}

// BuildRecordFromBytes derives a Record the same way Build does, for a
// caller (the .eml pseudo-archive path) that already has a whole
// message's bytes in hand rather than a mbox.Frame from a streaming scan.
func BuildRecordFromBytes(id uint64, offset, length int64, full []byte) Record {
	return recordFromBytes(id, offset, length, full, mbox.HeaderBlockEnd(full))
}

func recordFromBytes(id uint64, offset, length int64, full []byte, headersEnd int) Record {
	decoded := mbox.Decode(full, headersEnd)
	h := decoded.Header

	rec := Record{
		ID:            id,
		Offset:        offset,
		Length:        length,
		Size:          length,
		Subject:       decodeHeaderWords(h.Get("Subject")),
		HasAttachment: len(decoded.Attachments) > 0,
		MessageID:     stripAngleBrackets(h.Get("Message-Id")),
		InReplyTo:     stripAngleBrackets(h.Get("In-Reply-To")),
		References:    h.Get("References"),
	}

	if t, ok := mbox.ParseDate(h.Get("Date")); ok {
		rec.Date = t
		rec.HasDate = true
	} else {
		rec.Flags |= FlagDateUnparseable
	}

	if froms := mbox.ParseAddressList(h.Get("From")); len(froms) > 0 {
		rec.FromAddr = froms[0].Addr
		rec.FromName = froms[0].Name
		if froms[0].Addr == "" {
			rec.FromAddr = froms[0].Raw
			rec.Flags |= FlagFromParseError
		}
	} else if h.Get("From") != "" {
		rec.Flags |= FlagFromParseError
	}

	to := mbox.ParseAddressList(h.Get("To"))
	for i, a := range to {
		if i >= maxRecipients {
			rec.Flags |= FlagHasMoreRecipients
			break
		}
		addr := a.Addr
		if addr == "" {
			addr = a.Raw
		}
		rec.ToAddrs = append(rec.ToAddrs, addr)
	}

	for i, a := range mbox.ParseAddressList(h.Get("Cc")) {
		if i >= maxRecipients {
			break
		}
		addr := a.Addr
		if addr == "" {
			addr = a.Raw
		}
		rec.CcAddrs = append(rec.CcAddrs, addr)
	}

	rec.Labels = parseLabels(h.Get("X-Gmail-Labels"))

	if decoded.IsMultipart {
		rec.Flags |= FlagMultipart
	}
	if decoded.IsHTMLOnly {
		rec.Flags |= FlagHTMLOnly
	}
	if decoded.ParseError {
		rec.Flags |= FlagParseError
	}
	// Start one byte early so the header block's final '\n' lets a
	// ">From " on the first body line match too.
	if headersEnd > 0 && headersEnd < len(full) && bytes.Contains(full[headersEnd-1:], []byte("\n>From ")) {
		rec.Flags |= FlagEscapedFromObserved
	}

	return rec
}

func decodeHeaderWords(s string) string {
	out, _ := mbox.DecodeWords(s)
	return out
}

func stripAngleBrackets(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return s
}

// parseLabels splits an X-Gmail-Labels value ("Inbox,Important,Work/Q3")
// into individual labels, decoding any RFC 2047 encoded-words a label may
// contain.
func parseLabels(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, decodeHeaderWords(part))
	}
	return out
}
