package mbox

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/dcarrero/mboxshell/errs"
)

// DefaultBufferSize is the framer's fixed read buffer.
const DefaultBufferSize = 1 << 20

// cancelCheckInterval is how often, in bytes consumed, the framer
// re-checks its context during the inner scan for a message's body.
const cancelCheckInterval = 64 * 1024

// Frame is one message's byte range inside the archive, plus the header
// bytes the framer already had in hand while locating the boundary --
// avoiding a second read for callers (like the index builder) that only
// need the header block.
type Frame struct {
	ID          uint64
	Offset      int64
	Length      int64
	HeaderBytes []byte // [Offset, Offset+HeadersEnd)
	HeadersEnd  int64  // offset of the header/body boundary, relative to Offset
	LineTerm    string
}

// Framer iterates over an MBOX byte stream, yielding message boundaries
// without buffering bodies. It implements mboxrd semantics: lines matching
// ">*From " inside a body are left untouched, never treated as separators
// and never unescaped.
//
// Framer is a pull iterator, not a callback-based scanner, so that a
// caller (the index builder, or the query evaluator's full-text tier) can
// interleave it with other work and stop early by cancelling ctx.
type Framer struct {
	archive      string
	r            *bufio.Reader
	pos          int64 // absolute offset of the next unread byte
	nextID       uint64
	err          error
	bytesSinceCk int64

	pendingStart  int64 // offset of the current frame's "From " line
	pendingHeader bytes.Buffer
	pendingHdrEnd int64 // relative to pendingStart
	pendingTerm   string
	haveFrame     bool
	prevLineBlank bool
}

// NewFramer returns a Framer reading sequentially from r, which must begin
// at archive offset 0. archive is used only for error messages.
func NewFramer(archive string, r io.Reader) *Framer {
	return &Framer{
		archive: archive,
		r:       bufio.NewReaderSize(r, DefaultBufferSize),
		// The first line of the archive is a valid separator position
		// unconditionally: a "From " line counts as a boundary at file
		// start or immediately after a blank line.
		prevLineBlank: true,
	}
}

// Next returns the next frame, io.EOF when the archive is exhausted, or a
// *errs.CancelledError if ctx is done.
func (fr *Framer) Next(ctx context.Context) (*Frame, error) {
	if fr.err != nil {
		return nil, fr.err
	}
	for {
		if err := ctx.Err(); err != nil {
			fr.err = &errs.CancelledError{Archive: fr.archive, Op: "frame"}
			return nil, fr.err
		}

		lineStart := fr.pos
		line, readErr := fr.r.ReadBytes('\n')
		fr.pos += int64(len(line))
		fr.bytesSinceCk += int64(len(line))
		if fr.bytesSinceCk >= cancelCheckInterval {
			fr.bytesSinceCk = 0
			if err := ctx.Err(); err != nil {
				fr.err = &errs.CancelledError{Archive: fr.archive, Op: "frame"}
				return nil, fr.err
			}
		}

		atEOF := readErr == io.EOF
		if atEOF && len(line) == 0 {
			// Clean end of input.
			return fr.finishAndStop(fr.pos)
		} else if readErr != nil && !atEOF {
			fr.err = readErr
			return nil, readErr
		}

		isSeparator := fr.prevLineBlank && bytes.HasPrefix(line, []byte("From "))
		if isSeparator && fr.haveFrame {
			// Close out the previous frame at this line's start.
			frame := fr.finish(lineStart)
			fr.startFrame(lineStart, line)
			return frame, nil
		}
		if isSeparator && !fr.haveFrame {
			fr.startFrame(lineStart, line)
		} else if fr.haveFrame {
			fr.accumulate(line)
		}

		fr.prevLineBlank = isBlankLine(line)

		if atEOF {
			return fr.finishAndStop(fr.pos)
		}
	}
}

// finishAndStop closes out any pending frame at end and marks the framer
// exhausted; subsequent calls to Next return io.EOF.
func (fr *Framer) finishAndStop(end int64) (*Frame, error) {
	frame := fr.finish(end)
	fr.err = io.EOF
	if frame == nil {
		return nil, io.EOF
	}
	return frame, nil
}

func (fr *Framer) startFrame(offset int64, firstLine []byte) {
	fr.pendingStart = offset
	fr.pendingHeader.Reset()
	fr.pendingHeader.Write(firstLine)
	fr.pendingHdrEnd = -1
	fr.pendingTerm = ""
	fr.haveFrame = true
}

// accumulate folds line into the current frame's header block until the
// blank line ending the header is seen; bytes after that point are
// discarded here (the body is never buffered), matching the framer's
// O(buffer + one header block) bound.
func (fr *Framer) accumulate(line []byte) {
	if fr.pendingHdrEnd >= 0 {
		return // already past the header/body boundary
	}
	if fr.pendingTerm == "" {
		if bytes.HasSuffix(line, []byte("\r\n")) {
			fr.pendingTerm = "\r\n"
		} else {
			fr.pendingTerm = "\n"
		}
	}
	if isBlankLine(line) {
		fr.pendingHeader.Write(line)
		fr.pendingHdrEnd = int64(fr.pendingHeader.Len())
		return
	}
	fr.pendingHeader.Write(line)
}

func isBlankLine(line []byte) bool {
	t := bytes.TrimRight(line, "\r\n")
	return len(t) == 0
}

// finish closes out the pending frame at byte offset end (exclusive) and
// returns it, or nil if no frame was open.
func (fr *Framer) finish(end int64) *Frame {
	if !fr.haveFrame {
		return nil
	}
	hdrEnd := fr.pendingHdrEnd
	if hdrEnd < 0 {
		hdrEnd = int64(fr.pendingHeader.Len())
	}
	f := &Frame{
		ID:          fr.nextID,
		Offset:      fr.pendingStart,
		Length:      end - fr.pendingStart,
		HeaderBytes: append([]byte(nil), fr.pendingHeader.Bytes()...),
		HeadersEnd:  hdrEnd,
		LineTerm:    orDefaultTerm(fr.pendingTerm),
	}
	fr.nextID++
	fr.haveFrame = false
	return f
}
