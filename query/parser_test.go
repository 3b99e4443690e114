package query

import (
	"testing"

	"github.com/dcarrero/mboxshell/errs"
)

func TestParseFieldTerm(t *testing.T) {
	e, err := Parse(`from:alice`)
	if err != nil {
		t.Fatal(err)
	}
	ft, ok := e.(*FieldTerm)
	if !ok {
		t.Fatalf("got %T, want *FieldTerm", e)
	}
	if ft.Field != "from" || ft.Value != "alice" || ft.Op != opEq {
		t.Errorf("got %+v", ft)
	}
}

func TestParseBareAndQuotedPhrase(t *testing.T) {
	e, err := Parse(`subject:"Q3 plan"`)
	if err != nil {
		t.Fatal(err)
	}
	ft, ok := e.(*FieldTerm)
	if !ok || ft.Field != "subject" || ft.Value != "Q3 plan" || !ft.Quoted {
		t.Fatalf("got %+v (%T)", e, e)
	}
}

func TestParseImplicitAnd(t *testing.T) {
	e, err := Parse(`from:alice subject:plan`)
	if err != nil {
		t.Fatal(err)
	}
	and, ok := e.(*AndExpr)
	if !ok {
		t.Fatalf("got %T, want *AndExpr", e)
	}
	l, ok := and.Left.(*FieldTerm)
	if !ok || l.Field != "from" {
		t.Errorf("left = %+v", and.Left)
	}
	r, ok := and.Right.(*FieldTerm)
	if !ok || r.Field != "subject" {
		t.Errorf("right = %+v", and.Right)
	}
}

func TestParseExplicitOrAndPrecedence(t *testing.T) {
	// OR binds loosest: "a OR b AND c" == "a OR (b AND c)".
	e, err := Parse(`from:a OR from:b subject:c`)
	if err != nil {
		t.Fatal(err)
	}
	or, ok := e.(*OrExpr)
	if !ok {
		t.Fatalf("got %T, want *OrExpr", e)
	}
	if _, ok := or.Left.(*FieldTerm); !ok {
		t.Errorf("left = %T, want *FieldTerm", or.Left)
	}
	and, ok := or.Right.(*AndExpr)
	if !ok {
		t.Fatalf("right = %T, want *AndExpr", or.Right)
	}
	if _, ok := and.Left.(*FieldTerm); !ok {
		t.Errorf("and.Left = %T", and.Left)
	}
}

func TestParseNegationViaMinusAndNot(t *testing.T) {
	for _, q := range []string{`-label:spam`, `NOT label:spam`} {
		e, err := Parse(q)
		if err != nil {
			t.Fatalf("Parse(%q): %v", q, err)
		}
		n, ok := e.(*NotExpr)
		if !ok {
			t.Fatalf("Parse(%q) = %T, want *NotExpr", q, e)
		}
		ft, ok := n.Inner.(*FieldTerm)
		if !ok || ft.Field != "label" || ft.Value != "spam" {
			t.Errorf("Parse(%q).Inner = %+v", q, n.Inner)
		}
	}
}

func TestParseParens(t *testing.T) {
	e, err := Parse(`(from:a OR from:b) subject:c`)
	if err != nil {
		t.Fatal(err)
	}
	and, ok := e.(*AndExpr)
	if !ok {
		t.Fatalf("got %T, want *AndExpr", e)
	}
	if _, ok := and.Left.(*OrExpr); !ok {
		t.Errorf("left = %T, want *OrExpr (parens should force OR to bind before AND)", and.Left)
	}
}

func TestParseComparisonOperators(t *testing.T) {
	tests := []struct {
		q      string
		wantOp compareOp
	}{
		{`size:>10kb`, opGT},
		{`size:>=10kb`, opGE},
		{`size:<10kb`, opLT},
		{`size:<=10kb`, opLE},
		{`size:10kb`, opEq},
	}
	for _, tt := range tests {
		e, err := Parse(tt.q)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.q, err)
		}
		ft := e.(*FieldTerm)
		if ft.Op != tt.wantOp {
			t.Errorf("Parse(%q).Op = %v, want %v", tt.q, ft.Op, tt.wantOp)
		}
	}
}

func TestParseUnknownFieldNameIsError(t *testing.T) {
	_, err := Parse(`notafield:value`)
	if err == nil {
		t.Fatal("expected an error for an unrecognized field name")
	}
	if _, ok := err.(*errs.QueryParseError); !ok {
		t.Errorf("got %T, want *errs.QueryParseError (unrecognized field prefix should be a parse error)", err)
	}
}

func TestParseMalformedQuery(t *testing.T) {
	tests := []string{
		`(from:a`,
		`"unterminated`,
		`from:`,
		`AND from:a`,
	}
	for _, q := range tests {
		_, err := Parse(q)
		if err == nil {
			t.Errorf("Parse(%q): expected an error", q)
			continue
		}
		if _, ok := err.(*errs.QueryParseError); !ok {
			t.Errorf("Parse(%q) returned %T, want *errs.QueryParseError", q, err)
		}
	}
}
