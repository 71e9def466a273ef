package condition

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Parse reads the textual combinator form:
//
//	expr := ident
//	      | ("and" | "or") "(" [ expr { "," expr } ] ")"
//	      | "not" "(" expr ")"
//
// Identifiers are [A-Za-z0-9_]+ and case-sensitive. Whitespace between tokens
// is ignored. On failure it returns a *domain.ParseError and a zero Expr.
func Parse(text string) (Expr, error) {
	p := &parser{input: text}
	expr, err := p.expr()
	if err != nil {
		return Expr{}, err
	}
	p.skipSpace()
	if !p.eof() {
		return Expr{}, p.fail(fmt.Sprintf("unexpected %q after expression", p.input[p.pos]))
	}
	return expr, nil
}

// MustParse is like Parse but panics on malformed input.
// It is meant for static declarations in Go code.
func MustParse(text string) Expr {
	expr, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return expr
}

type parser struct {
	input string
	pos   int
}

func (p *parser) eof() bool { return p.pos >= len(p.input) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) fail(msg string) *domain.ParseError {
	return &domain.ParseError{
		Input:    p.input,
		Pos:      p.pos,
		Fragment: p.tokenAt(p.pos),
		Msg:      msg,
	}
}

// tokenAt returns the token starting at pos: an identifier, or a single
// byte for punctuation. It is empty at the end of the input.
func (p *parser) tokenAt(pos int) string {
	if pos >= len(p.input) {
		return ""
	}
	end := pos
	for end < len(p.input) && isIdentByte(p.input[end]) {
		end++
	}
	if end == pos {
		end++
	}
	return p.input[pos:end]
}

func isIdentByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && isIdentByte(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) expr() (Expr, error) {
	p.skipSpace()
	start := p.pos
	name := p.ident()
	if name == "" {
		if p.eof() {
			return Expr{}, p.fail("expected identifier, got end of input")
		}
		return Expr{}, p.fail(fmt.Sprintf("expected identifier, got %q", p.peek()))
	}

	after := p.pos
	p.skipSpace()
	open := p.peek() == '('

	switch name {
	case "and", "or", "not":
		if !open {
			return Expr{}, p.fail(fmt.Sprintf("expected '(' after %q", name))
		}
	default:
		if open {
			p.pos = start
			return Expr{}, p.fail(fmt.Sprintf("unknown operator %q (expected and, or, not)", name))
		}
		p.pos = after
		return Leaf(name), nil
	}

	p.pos++ // '('
	if name == "not" {
		arg, err := p.expr()
		if err != nil {
			return Expr{}, err
		}
		p.skipSpace()
		switch {
		case p.eof():
			return Expr{}, p.fail("unterminated argument list")
		case p.peek() == ',':
			return Expr{}, p.fail("not takes exactly one argument")
		case p.peek() != ')':
			return Expr{}, p.fail(fmt.Sprintf("expected ')', got %q", p.peek()))
		}
		p.pos++
		return Not(arg), nil
	}

	args, err := p.list()
	if err != nil {
		return Expr{}, err
	}
	if name == "and" {
		return And(args...), nil
	}
	return Or(args...), nil
}

// list parses the arguments of and/or after the opening parenthesis,
// consuming the closing one.
func (p *parser) list() ([]Expr, error) {
	args := []Expr{}
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return args, nil
	}
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.fail("unterminated argument list")
		}
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		p.skipSpace()
		switch {
		case p.eof():
			return nil, p.fail("unterminated argument list")
		case p.peek() == ',':
			p.pos++
		case p.peek() == ')':
			p.pos++
			return args, nil
		default:
			return nil, p.fail(fmt.Sprintf("expected ',' or ')', got %q", p.peek()))
		}
	}
}
