package mbox

import (
	"bytes"
	"io"
	"mime"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// wordDecoder decodes RFC 2047 encoded-words (both Q and B forms) found in
// header values, routing unknown charsets through the full charsetTable
// rather than failing on anything outside UTF-8.
var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(cs string, input io.Reader) (io.Reader, error) {
		raw, err := io.ReadAll(input)
		if err != nil {
			return nil, err
		}
		s, _ := decodeCharset(cs, raw)
		return bytes.NewReader([]byte(s)), nil
	},
}

// DecodeWords is the exported entry point other packages use to resolve
// RFC 2047 encoded-words in a header value (e.g. X-Gmail-Labels entries).
func DecodeWords(s string) (decoded string, parseErr bool) { return decodeWords(s) }

// decodeWords decodes every RFC 2047 encoded-word in s, leaving plain text
// untouched. mime.WordDecoder.DecodeHeader already drops whitespace between
// adjacent encoded-words, so "=?UTF-8?Q?a?= =?UTF-8?Q?b?=" decodes as "ab"
// rather than "a b". Decode failures fall back to the raw string and set
// the parse-error flag.
func decodeWords(s string) (decoded string, parseErr bool) {
	out, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s, true
	}
	return normalizeHeaderText(out), false
}

// headerTransform composes Unicode NFC normalization with stripping of
// non-printable control runes left behind by a lossy charset decode:
// decompose, strip, recompose.
var headerTransform = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.C)),
	norm.NFC,
)

// normalizeHeaderText runs s through headerTransform, falling back to the
// untransformed string if the transform chain errors (never expected in
// practice since it has no charset dependency, but the decoder's total-on-
// bytes contract still applies).
func normalizeHeaderText(s string) string {
	out, _, err := transform.String(headerTransform, s)
	if err != nil {
		return s
	}
	return out
}
