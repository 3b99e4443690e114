// Package mbox implements the streaming MBOX framer and the RFC 5322 /
// RFC 2047 / MIME decoder. Both are total on bytes: malformed input sets a
// flag on the result rather than aborting.
package mbox

import (
	"bufio"
	"bytes"
	"io"
	"net/textproto"
	"strings"
)

// Header holds the parsed fields of one message, preserving header order
// and repeated field names (e.g. multiple Received lines) rather than
// collapsing them into a map-only view.
type Header struct {
	names  []string            // canonicalized names in file order (may repeat)
	values map[string][]string // canonicalized name -> ordered raw values
}

// newHeader returns an empty Header ready for appends.
func newHeader() *Header {
	return &Header{values: make(map[string][]string)}
}

// add appends one canonicalized field.
func (h *Header) add(name, value string) {
	name = textproto.CanonicalMIMEHeaderKey(name)
	h.names = append(h.names, name)
	h.values[name] = append(h.values[name], value)
}

// Get returns the first value for name, or "" if absent.
func (h *Header) Get(name string) string {
	vs := h.values[textproto.CanonicalMIMEHeaderKey(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns every raw value stored for name, in file order.
func (h *Header) Values(name string) []string {
	return h.values[textproto.CanonicalMIMEHeaderKey(name)]
}

// Names returns every canonicalized field name encountered, including
// duplicates, in file order.
func (h *Header) Names() []string { return h.names }

// lineReader reads RFC 5322 folded lines from an in-memory header block.
// It reads from a byte slice rather than an arbitrary io.Reader since the
// decoder's contract hands it an already-delimited header block.
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(b []byte) *lineReader {
	return &lineReader{r: bufio.NewReader(bytes.NewReader(b))}
}

// readLine reads a single newline-terminated line, including the
// terminator. If bytes were read before EOF, they're returned with a nil
// error; a clean EOF with no bytes read returns io.EOF.
func (lr *lineReader) readLine() (string, error) {
	ln, err := lr.r.ReadString('\n')
	if err == io.EOF && ln != "" {
		err = nil
	}
	return ln, err
}

// readFoldedLine reads a possibly-folded header line (RFC 5322 2.2.3:
// continuation lines start with whitespace). folded carries every
// original line including terminators; unfolded has them stripped and
// concatenated.
func (lr *lineReader) readFoldedLine() (folded []string, unfolded string, err error) {
	first, err := lr.readLine()
	if err != nil {
		return nil, "", err
	}
	folded = append(folded, first)
	unfolded = trimCRLF(first)
	if unfolded == "" {
		return folded, unfolded, nil
	}
	for {
		next, err := lr.r.Peek(1)
		if err == io.EOF {
			return folded, unfolded, nil
		} else if err != nil {
			return nil, "", err
		}
		if next[0] != ' ' && next[0] != '\t' {
			return folded, unfolded, nil
		}
		ln, err := lr.readLine()
		if err != nil {
			return nil, "", err
		}
		folded = append(folded, ln)
		unfolded += trimCRLF(ln)
	}
}

// trimCRLF trims a trailing "\r\n" or "\n" from ln.
func trimCRLF(ln string) string {
	if len(ln) > 0 && ln[len(ln)-1] == '\n' {
		ln = ln[:len(ln)-1]
		if len(ln) > 0 && ln[len(ln)-1] == '\r' {
			ln = ln[:len(ln)-1]
		}
	}
	return ln
}

// parseHeaderField splits an unfolded line like `From: "Bob" <b@x>` into a
// canonicalized key and trimmed value.
func parseHeaderField(ln string) (key, val string, ok bool) {
	idx := strings.IndexByte(ln, ':')
	if idx < 0 {
		return "", "", false
	}
	key = ln[:idx]
	val = strings.TrimLeft(ln[idx+1:], " \t")
	return key, val, true
}

// parseHeaders reads the full header block (everything up to and
// including the terminating blank line) and returns the parsed Header and
// the line terminator in use ("\r\n" or "\n"), or a parse-error flag if
// the block never terminates cleanly -- per the decoder's total-on-bytes
// contract, this never returns an error, only a degraded result.
func parseHeaders(block []byte) (h *Header, term string, parseErr bool) {
	h = newHeader()
	lr := newLineReader(block)
	for {
		folded, unfolded, err := lr.readFoldedLine()
		if err == io.EOF {
			// Missing blank line before EOF: treat everything parsed so
			// far as the header and flag the record.
			return h, orDefaultTerm(term), true
		}
		if term == "" && len(folded) > 0 {
			if strings.HasSuffix(folded[0], "\r\n") {
				term = "\r\n"
			} else {
				term = "\n"
			}
		}
		if unfolded == "" {
			return h, orDefaultTerm(term), false
		}
		if key, val, ok := parseHeaderField(unfolded); ok {
			h.add(key, val)
		}
		// Malformed lines (no colon) are dropped rather than aborting,
		// matching the decoder's total-on-bytes contract; there's no
		// header rewrite path here, so a best-effort skip is all a
		// degenerate line needs.
	}
}

func orDefaultTerm(term string) string {
	if term == "" {
		return "\n"
	}
	return term
}
