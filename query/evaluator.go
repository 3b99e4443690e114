package query

import (
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/dcarrero/mboxshell/index"
)

// Context carries one record's evaluation state: the metadata tier
// matches directly against rec, and the full-text tier (the body: field
// and bare terms) lazily fetches the decoded message body exactly once,
// regardless of how many body-touching subexpressions reference it, so
// the cheap tier never pays for the expensive one unless a match
// actually requires it.
type Context struct {
	Rec   index.Record
	Fetch func() (string, error) // decoded plaintext body, called at most once

	once sync.Once
	body string
}

func (c *Context) bodyText() string {
	c.once.Do(func() {
		if c.Fetch != nil {
			c.body, _ = c.Fetch()
		}
	})
	return c.body
}

// NeedsBody reports whether evaluating e can ever require the full-text
// tier, so a caller can skip opening the archive entirely for a
// pure-metadata query.
func NeedsBody(e Expr) bool {
	switch t := e.(type) {
	case *AndExpr:
		return NeedsBody(t.Left) || NeedsBody(t.Right)
	case *OrExpr:
		return NeedsBody(t.Left) || NeedsBody(t.Right)
	case *NotExpr:
		return NeedsBody(t.Inner)
	case *FieldTerm:
		return t.Field == "body"
	case *BareTerm:
		return true
	default:
		return false
	}
}

// Eval matches e against ctx. AND/OR evaluate left-to-right and
// short-circuit via Go's native && / ||, so a false metadata-tier operand
// skips the body fetch a later operand would have required.
func Eval(e Expr, ctx *Context) bool {
	switch t := e.(type) {
	case *AndExpr:
		return Eval(t.Left, ctx) && Eval(t.Right, ctx)
	case *OrExpr:
		return Eval(t.Left, ctx) || Eval(t.Right, ctx)
	case *NotExpr:
		return !Eval(t.Inner, ctx)
	case *FieldTerm:
		return evalField(t, ctx)
	case *BareTerm:
		return evalBare(t, ctx)
	default:
		return false
	}
}

func evalField(t *FieldTerm, ctx *Context) bool {
	rec := ctx.Rec
	switch t.Field {
	case "from":
		return matchText(rec.FromAddr, t.Value, t.Quoted) || matchText(rec.FromName, t.Value, t.Quoted)
	case "to":
		return anyMatchText(rec.ToAddrs, t.Value, t.Quoted)
	case "cc":
		return anyMatchText(rec.CcAddrs, t.Value, t.Quoted)
	case "subject":
		return matchText(rec.Subject, t.Value, t.Quoted)
	case "body":
		return matchText(ctx.bodyText(), t.Value, t.Quoted)
	case "has":
		if strings.EqualFold(t.Value, "attachment") {
			return rec.HasAttachment
		}
		return false
	case "label":
		return anyEqualFold(rec.Labels, t.Value)
	case "id":
		n, err := strconv.ParseUint(t.Value, 10, 64)
		return err == nil && rec.ID == n
	case "size":
		n, ok := parseSizeLiteral(t.Value)
		if !ok {
			return false
		}
		return compareInt(rec.Size, t.Op, n)
	case "date":
		start, end, ok := dateRange(t.Value)
		if !ok || !rec.HasDate {
			return false
		}
		return !rec.Date.Before(start) && rec.Date.Before(end)
	case "before":
		start, _, ok := dateRange(t.Value)
		if !ok || !rec.HasDate {
			return false
		}
		return rec.Date.Before(start)
	case "after":
		_, end, ok := dateRange(t.Value)
		if !ok || !rec.HasDate {
			return false
		}
		return !rec.Date.Before(end)
	default:
		return false
	}
}

func evalBare(t *BareTerm, ctx *Context) bool {
	if matchText(ctx.Rec.Subject, t.Value, t.Quoted) {
		return true
	}
	return matchText(ctx.bodyText(), t.Value, t.Quoted)
}

func compareInt(got int64, op compareOp, want int64) bool {
	switch op {
	case opGT:
		return got > want
	case opGE:
		return got >= want
	case opLT:
		return got < want
	case opLE:
		return got <= want
	default:
		return got == want
	}
}

// matchText matches value against haystack: a quoted value must appear as
// a contiguous run of whole tokens (splitting haystack and value on
// whitespace and punctuation), while an unquoted value matches as a
// raw case-insensitive substring. This keeps `subject:"Q3 plan"` from
// matching a subject of "Q3 planning", which a substring match would
// wrongly accept.
func matchText(haystack, value string, quoted bool) bool {
	if quoted {
		return containsPhrase(haystack, value)
	}
	return containsFold(haystack, value)
}

func anyMatchText(list []string, value string, quoted bool) bool {
	for _, s := range list {
		if matchText(s, value, quoted) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// containsPhrase reports whether phrase's tokens appear as a contiguous
// run within haystack's tokens, both split on runs of non-alphanumeric
// characters and case-folded.
func containsPhrase(haystack, phrase string) bool {
	needle := tokenize(phrase)
	if len(needle) == 0 {
		return false
	}
	hay := tokenize(haystack)
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j, tok := range needle {
			if hay[i+j] != tok {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()
	return toks
}

func anyEqualFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
