package query

import (
	"github.com/dcarrero/mboxshell/errs"
)

// fieldNames is the closed set of recognized field names. Any other
// identifier followed by a ':' is not a field reference; the ':' it
// leaves behind makes Parse fail with a *errs.QueryParseError at that
// offset.
var fieldNames = map[string]bool{
	"from": true, "to": true, "cc": true, "subject": true, "body": true,
	"has": true, "label": true, "date": true, "before": true, "after": true,
	"size": true, "id": true,
}

// parser implements this precedence: negation binds tighter than a field
// reference, which binds tighter than AND, which binds tighter than OR.
// Adjacent terms with no explicit operator are implicitly ANDed.
type parser struct {
	toks []token
	pos  int
	src  string
}

// Parse compiles a query string into an Expr tree.
func Parse(q string) (Expr, error) {
	toks, err := lex(q)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: q}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf("unexpected trailing input")
	}
	return expr, nil
}

func (p *parser) peek() token    { return p.toks[p.pos] }
func (p *parser) advance() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) errorf(msg string) error {
	return &errs.QueryParseError{Query: p.src, Offset: p.peek().offset, Msg: msg}
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &OrExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for startsTerm(p.peek()) {
		if p.peek().kind == tokAnd {
			p.advance()
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &AndExpr{Left: left, Right: right}
	}
	return left, nil
}

func startsTerm(t token) bool {
	switch t.kind {
	case tokIdent, tokString, tokNot, tokMinus, tokLParen:
		return true
	default:
		return false
	}
}

func (p *parser) parseTerm() (Expr, error) {
	switch p.peek().kind {
	case tokNot, tokMinus:
		p.advance()
		inner, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Inner: inner}, nil
	case tokLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorf("expected ')'")
		}
		p.advance()
		return inner, nil
	case tokString:
		t := p.advance()
		return &BareTerm{Value: t.text, Quoted: true}, nil
	case tokIdent:
		return p.parseFieldOrBare()
	default:
		return nil, p.errorf("expected a term")
	}
}

func (p *parser) parseFieldOrBare() (Expr, error) {
	ident := p.advance()
	name := ident.text
	if p.peek().kind != tokColon || !fieldNames[lower(name)] {
		return &BareTerm{Value: name}, nil
	}
	p.advance() // ':'

	op := opEq
	switch p.peek().kind {
	case tokGT:
		p.advance()
		op = opGT
	case tokGE:
		p.advance()
		op = opGE
	case tokLT:
		p.advance()
		op = opLT
	case tokLE:
		p.advance()
		op = opLE
	}

	val, quoted, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &FieldTerm{Field: lower(name), Op: op, Value: val, Quoted: quoted}, nil
}

// parseValue reads a field's value, reporting whether it was a quoted
// string (as opposed to a bareword) so the evaluator can tell a phrase
// match from a substring match.
func (p *parser) parseValue() (value string, quoted bool, err error) {
	switch p.peek().kind {
	case tokString:
		return p.advance().text, true, nil
	case tokIdent:
		return p.advance().text, false, nil
	default:
		return "", false, p.errorf("expected a value")
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
