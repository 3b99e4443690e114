package query

import (
	"context"
	"sort"

	"github.com/dcarrero/mboxshell/errs"
	"github.com/dcarrero/mboxshell/index"
)

// Runner applies a parsed expression across a set of records, fetching
// decoded message bodies lazily and only for records whose metadata tier
// didn't already decide the match. This is a single linear scan rather
// than two separate metadata/body passes, since Go's short-circuiting &&
// already gives the cheap tier first refusal.
type Runner struct {
	recs  []index.Record
	fetch func(id uint64) (string, error)
}

// NewRunner builds a Runner over recs (any order; results are always
// returned sorted by id). fetch decodes and returns the plaintext body of
// one message by id; it may be nil for metadata-only use, in which case
// body: terms see an empty body and bare terms match against the subject
// only, rather than erroring.
func NewRunner(recs []index.Record, fetch func(id uint64) (string, error)) *Runner {
	return &Runner{recs: recs, fetch: fetch}
}

// cancelCheckStride bounds how often Run re-checks ctx during a scan
// (distinct from the framer's byte-based stride).
const cancelCheckStride = 256

// Run evaluates expr against every record, returning matches in ascending
// id order. It returns whatever partial results were gathered together
// with a *errs.CancelledError if ctx is cancelled mid-scan: a caller that
// wants partial results on cancellation gets them; a caller that doesn't
// discards the returned slice.
func (r *Runner) Run(ctx context.Context, archive string, expr Expr) ([]index.Record, error) {
	needsBody := NeedsBody(expr)
	var out []index.Record
	for i, rec := range r.recs {
		if i%cancelCheckStride == 0 {
			if err := ctx.Err(); err != nil {
				sortRecords(out)
				return out, &errs.CancelledError{Archive: archive, Op: "query"}
			}
		}
		c := &Context{Rec: rec}
		if needsBody && r.fetch != nil {
			id := rec.ID
			c.Fetch = func() (string, error) { return r.fetch(id) }
		}
		if Eval(expr, c) {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(recs []index.Record) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}
