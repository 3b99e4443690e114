package mbox

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// charsetTable covers the charsets commonly seen in archived mail:
// ISO-8859-1, Windows-1252, KOI8-R, Shift_JIS, GB2312/GBK/GB18030, and
// Big5. UTF-8 and US-ASCII are handled separately, as a no-op pass
// through decodeCharset below. Each entry is a sibling subpackage of
// golang.org/x/text/encoding.
var charsetTable = map[string]encoding.Encoding{
	"iso-8859-1": charmap.ISO8859_1,
	"latin1":     charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"koi8-r":       charmap.KOI8R,
	"shift_jis":    japanese.ShiftJIS,
	"shift-jis":    japanese.ShiftJIS,
	"sjis":         japanese.ShiftJIS,
	"gb2312":       simplifiedchinese.GBK,
	"gbk":          simplifiedchinese.GBK,
	"gb18030":      simplifiedchinese.GB18030,
	"big5":         traditionalchinese.Big5,
}

// decodeCharset converts b, declared to be in charset cs, to a UTF-8
// string. Labels charsetTable lacks (or whose table decode fails) go
// through golang.org/x/net/html/charset's label lookup and are decoded
// with whatever encoding it returns; if it knows no encoding for the
// label either, the text falls back to Windows-1252 and ok is false.
func decodeCharset(cs string, b []byte) (s string, ok bool) {
	cs = strings.ToLower(strings.TrimSpace(cs))
	if cs == "" || cs == "utf-8" || cs == "utf8" || cs == "us-ascii" || cs == "ascii" {
		return string(b), true
	}
	if enc, found := charsetTable[cs]; found {
		out, decErr := enc.NewDecoder().Bytes(b)
		if decErr == nil {
			return string(out), true
		}
	}
	if canon, canonical := charset.Lookup(cs); canonical != "" && canon != nil {
		r := canon.NewDecoder().Reader(bytes.NewReader(b))
		if out, err := io.ReadAll(r); err == nil {
			return string(out), true
		}
	}
	out, _ := charmap.Windows1252.NewDecoder().Bytes(b)
	return string(out), false
}
