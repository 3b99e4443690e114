package mbox

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/quotedprintable"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Attachment describes one non-text or explicitly-attached MIME part: its
// filename, media type, decoded size, transfer encoding, and its dotted
// depth-first position within the part tree.
type Attachment struct {
	Filename  string
	MediaType string
	Size      int
	Encoding  string
	PartPath  string // e.g. "1.2", dotted depth-first part position
}

// Matches reports whether the attachment's media type matches a
// filepath.Match-style glob.
func (a Attachment) Matches(pattern string) bool {
	ok, err := filepath.Match(pattern, a.MediaType)
	return err == nil && ok
}

// Decoded is the decoder's full output for one message: parsed headers,
// the concatenated plain-text body, and the attachment tree. Decode never
// fails outright; ParseError notes that some part of the input was
// salvaged rather than cleanly parsed.
type Decoded struct {
	Header       *Header
	PlainText    string
	IsMultipart  bool
	IsHTMLOnly   bool
	Attachments  []Attachment
	ParseError   bool
	LineTerm     string // "\r\n" or "\n", as observed in the header block
}

// defaultMediaType and defaultContentParams mirror RFC 2045 5.2's stated
// default ("text/plain; charset=us-ascii"), precomputed once at package
// scope.
var defaultMediaType, defaultContentParams, _ = mime.ParseMediaType("text/plain; charset=us-ascii")

// Decode takes the full message bytes (header block followed by body) and
// produces a Decoded result. It never returns an error -- only
// Decoded.ParseError, set whenever any sub-step had to fall back to a
// best-effort value.
func Decode(full []byte, headersEnd int) *Decoded {
	if headersEnd > len(full) {
		headersEnd = len(full)
	}
	header, term, hdrErr := parseHeaders(full[:headersEnd])
	d := &Decoded{Header: header, LineTerm: term, ParseError: hdrErr}

	body := full[headersEnd:]
	mtype, params := defaultMediaType, defaultContentParams
	if ct := header.Get("Content-Type"); ct != "" {
		if m, p, err := mime.ParseMediaType(ct); err == nil {
			mtype, params = m, p
		} else {
			d.ParseError = true
		}
	}

	var plainParts, htmlParts []string
	d.IsMultipart = strings.HasPrefix(mtype, "multipart/")
	decodePart(mtype, params, header, body, "1", &plainParts, &htmlParts, &d.Attachments, d)

	if len(plainParts) > 0 {
		d.PlainText = strings.Join(plainParts, "\n")
	} else if len(htmlParts) > 0 {
		d.IsHTMLOnly = true
		d.PlainText = stripHTML(strings.Join(htmlParts, "\n"))
	}
	return d
}

// decodePart recursively decodes one MIME part (or the top-level body,
// when header/mtype/params describe the whole message) and appends its
// contribution to plainParts/htmlParts/attachments: read the part header,
// branch on multipart/*, else treat as a leaf.
func decodePart(mtype string, params map[string]string, header *Header, body []byte,
	path string, plainParts, htmlParts *[]string, attachments *[]Attachment, d *Decoded) {

	if strings.HasPrefix(mtype, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			d.ParseError = true
			return
		}
		related := mtype == "multipart/related"
		parts := splitMultipart(body, boundary)
		for i, raw := range parts {
			subPath := path + "." + strconv.Itoa(i+1)
			subHeader, _, hdrErr := parseHeaders(raw)
			if hdrErr {
				d.ParseError = true
			}
			subEnd := headerEnd(raw)
			subBody := raw[subEnd:]
			subMtype, subParams := defaultMediaType, defaultContentParams
			if ct := subHeader.Get("Content-Type"); ct != "" {
				if m, p, err := mime.ParseMediaType(ct); err == nil {
					subMtype, subParams = m, p
				} else {
					d.ParseError = true
				}
			}
			if isAttachment(subHeader, subMtype, related) {
				*attachments = append(*attachments, Attachment{
					Filename:  attachmentFilename(subHeader, subParams),
					MediaType: subMtype,
					Size:      len(subBody),
					Encoding:  subHeader.Get("Content-Transfer-Encoding"),
					PartPath:  subPath,
				})
				continue
			}
			decodePart(subMtype, subParams, subHeader, subBody, subPath, plainParts, htmlParts, attachments, d)
		}
		return
	}

	// Leaf part: a text body, an inline message/rfc822, or an
	// unidentified binary blob.
	if mtype == "message/rfc822" {
		sub := Decode(body, headerEnd(body))
		if sub.ParseError {
			d.ParseError = true
		}
		*plainParts = append(*plainParts, sub.PlainText)
		*attachments = append(*attachments, sub.Attachments...)
		return
	}

	decodedBytes, decErr := decodeTransferEncoding(header.Get("Content-Transfer-Encoding"), body)
	if decErr {
		d.ParseError = true
	}
	charsetName := params["charset"]
	text, chErr := decodeCharset(charsetName, decodedBytes)
	if !chErr {
		d.ParseError = true
	}

	switch {
	case mtype == "text/plain":
		*plainParts = append(*plainParts, text)
	case mtype == "text/html":
		*htmlParts = append(*htmlParts, text)
	default:
		*attachments = append(*attachments, Attachment{
			Filename:  attachmentFilename(header, params),
			MediaType: mtype,
			Size:      len(decodedBytes),
			Encoding:  header.Get("Content-Transfer-Encoding"),
			PartPath:  path,
		})
	}
}

// isAttachment reports whether a part counts as an attachment: an explicit
// "attachment" disposition, a filename/name parameter, or any non-text
// part that isn't referenced from a multipart/related root.
func isAttachment(header *Header, mtype string, related bool) bool {
	if disp := header.Get("Content-Disposition"); disp != "" {
		if d, params, err := mime.ParseMediaType(disp); err == nil {
			if strings.EqualFold(d, "attachment") {
				return true
			}
			if _, ok := params["filename"]; ok {
				return true
			}
		}
	}
	if _, _, params, _ := splitMediaType(header.Get("Content-Type")); params != nil {
		if _, ok := params["name"]; ok {
			return true
		}
	}
	if related {
		return false
	}
	return !strings.HasPrefix(mtype, "text/") && mtype != "message/rfc822" && !strings.HasPrefix(mtype, "multipart/")
}

func splitMediaType(ct string) (mtype, sub string, params map[string]string, ok bool) {
	if ct == "" {
		return "", "", nil, false
	}
	m, p, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", "", nil, false
	}
	parts := strings.SplitN(m, "/", 2)
	if len(parts) != 2 {
		return m, "", p, true
	}
	return parts[0], parts[1], p, true
}

func attachmentFilename(header *Header, params map[string]string) string {
	if disp := header.Get("Content-Disposition"); disp != "" {
		if _, dp, err := mime.ParseMediaType(disp); err == nil {
			if fn, ok := dp["filename"]; ok {
				return fn
			}
		}
	}
	if fn, ok := params["name"]; ok {
		return fn
	}
	return ""
}

// decodeTransferEncoding reverses Content-Transfer-Encoding, returning
// the raw bytes and whether the input was malformed. Unknown or absent
// encodings pass the body through unchanged ("7bit"/"8bit"/"binary").
func decodeTransferEncoding(enc string, body []byte) ([]byte, bool) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "base64":
		cleaned := stripNonBase64(body)
		out := make([]byte, base64.StdEncoding.DecodedLen(len(cleaned)))
		n, err := base64.StdEncoding.Decode(out, cleaned)
		if err != nil {
			// Retry leniently: real-world archives routinely wrap base64
			// without canonical padding.
			if n2, err2 := base64.RawStdEncoding.Decode(out, cleaned); err2 == nil {
				return out[:n2], false
			}
			return out[:n], true
		}
		return out[:n], false
	case "quoted-printable":
		r := quotedprintable.NewReader(bytes.NewReader(body))
		out, err := io.ReadAll(r)
		return out, err != nil
	default:
		return body, false
	}
}

func stripNonBase64(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/', c == '=':
			out = append(out, c)
		}
	}
	return out
}

// splitMultipart splits body into the raw bytes of each part delimited by
// "--boundary": a line starting with "--boundary", optionally suffixed
// with "--" for the closing delimiter.
func splitMultipart(body []byte, boundary string) [][]byte {
	delim := "--" + boundary
	lines := splitLinesKeepEnds(body)
	var parts [][]byte
	var cur []byte
	started := false
	for _, ln := range lines {
		trimmed := strings.TrimRight(string(ln), "\r\n")
		if strings.HasPrefix(trimmed, delim) {
			if started {
				parts = append(parts, cur)
			}
			cur = nil
			started = true
			if strings.HasPrefix(trimmed, delim+"--") {
				return parts
			}
			continue
		}
		if started {
			cur = append(cur, ln...)
		}
	}
	if started {
		parts = append(parts, cur)
	}
	return parts
}

func splitLinesKeepEnds(b []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i := 0; i < len(b); i++ {
		if b[i] == '\n' {
			lines = append(lines, b[start:i+1])
			start = i + 1
		}
	}
	if start < len(b) {
		lines = append(lines, b[start:])
	}
	return lines
}

// HeaderBlockEnd is the exported entry point other packages use to locate
// the header/body boundary in a standalone frame buffer.
func HeaderBlockEnd(b []byte) int { return headerEnd(b) }

// headerEnd returns the byte offset of the end of the header block (just
// past the blank line separating headers from body), or len(b) if none is
// found.
func headerEnd(b []byte) int {
	if i := bytes.Index(b, []byte("\r\n\r\n")); i >= 0 {
		return i + 4
	}
	if i := bytes.Index(b, []byte("\n\n")); i >= 0 {
		return i + 2
	}
	return len(b)
}

// stripHTML renders the text content of an HTML document, used both as a
// fallback for HTML-only messages and, via the same function, by the
// query evaluator's full-text tier when matching body: predicates against
// text/html parts.
func stripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String()
}

