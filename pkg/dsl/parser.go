package dsl

import (
	"math/big"
	"strings"
)

// token kinds produced by the scanner.
type tokenKind int

const (
	tokLParen tokenKind = iota
	tokRParen
	tokAtom
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Parse tokenizes and parses src into an AST. It returns *ParseError for
// structural problems and *BlockedError for tokens outside the grammar.
// The result is NOT yet validated; callers must run Validate before
// compiling.
func Parse(src string) (*Node, error) {
	toks, err := scan(src)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, &ParseError{Pos: 0, Msg: "empty input"}
	}

	p := &parser{toks: toks}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.i != len(p.toks) {
		t := p.toks[p.i]
		return nil, &ParseError{Pos: t.pos, Msg: "unexpected trailing input"}
	}
	return node, nil
}

// scan splits src into parens and atoms, tracking byte offsets.
// The DSL wire format is ASCII; any byte outside the structural set,
// whitespace, and the atom charset blocks the request outright.
func scan(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isAtomByte(c):
			start := i
			for i < len(src) && isAtomByte(src[i]) {
				i++
			}
			toks = append(toks, token{tokAtom, src[start:i], start})
		default:
			return nil, &BlockedError{Pos: i, Token: string(c)}
		}
	}
	return toks, nil
}

func isAtomByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '.' || c == '-' || c == '+':
		return true
	}
	return false
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) parseExpr() (*Node, error) {
	if p.i >= len(p.toks) {
		return nil, &ParseError{Pos: len(p.toks), Msg: "unexpected end of input"}
	}
	t := p.toks[p.i]

	switch t.kind {
	case tokRParen:
		return nil, &ParseError{Pos: t.pos, Msg: "unexpected ')'"}
	case tokAtom:
		p.i++
		return atomNode(t)
	}

	// Compound form: '(' HEAD arg... ')'
	open := t
	p.i++
	if p.i >= len(p.toks) {
		return nil, &ParseError{Pos: open.pos, Msg: "unclosed '('"}
	}
	if p.toks[p.i].kind == tokRParen {
		return nil, &ParseError{Pos: open.pos, Msg: "empty form"}
	}
	head := p.toks[p.i]
	if head.kind != tokAtom {
		return nil, &ParseError{Pos: head.pos, Msg: "operator position must hold a symbol"}
	}
	if !isIdentifier(head.text) {
		// A head that is not even identifier-shaped (e.g. "1.2" or "a.b")
		// is outside the construct grammar entirely.
		return nil, &BlockedError{Pos: head.pos, Token: head.text}
	}
	p.i++

	form := &Node{Kind: NodeForm, Pos: open.pos, Head: head.text}
	for {
		if p.i >= len(p.toks) {
			return nil, &ParseError{Pos: open.pos, Msg: "unclosed '('"}
		}
		if p.toks[p.i].kind == tokRParen {
			p.i++
			return form, nil
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		form.Args = append(form.Args, arg)
	}
}

// atomNode classifies a bare token as a literal or identifier.
// Tokens matching none of the enumerated atom grammars are blocked, not
// merely malformed: "a.b" or "--" is an attempted construct we do not
// enumerate, so it fails closed.
func atomNode(t token) (*Node, error) {
	if r, ok := parseInt(t.text); ok {
		return &Node{Kind: NodeInt, Pos: t.pos, Num: r}, nil
	}
	if r, ok := parseReal(t.text); ok {
		return &Node{Kind: NodeReal, Pos: t.pos, Num: r}, nil
	}
	switch strings.ToLower(t.text) {
	case "true":
		return &Node{Kind: NodeBool, Pos: t.pos, Bool: true}, nil
	case "false":
		return &Node{Kind: NodeBool, Pos: t.pos, Bool: false}, nil
	}
	if isIdentifier(t.text) {
		return &Node{Kind: NodeIdent, Pos: t.pos, Name: t.text}, nil
	}
	return nil, &BlockedError{Pos: t.pos, Token: t.text}
}

// isIdentifier reports whether s matches [A-Za-z_][A-Za-z0-9_]*.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func parseInt(s string) (*big.Rat, bool) {
	body := s
	if len(body) > 0 && (body[0] == '+' || body[0] == '-') {
		body = body[1:]
	}
	if body == "" {
		return nil, false
	}
	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			return nil, false
		}
	}
	r, ok := new(big.Rat).SetString(s)
	return r, ok
}

func parseReal(s string) (*big.Rat, bool) {
	body := s
	if len(body) > 0 && (body[0] == '+' || body[0] == '-') {
		body = body[1:]
	}
	dot := strings.IndexByte(body, '.')
	if dot <= 0 || dot == len(body)-1 {
		return nil, false
	}
	for i := 0; i < len(body); i++ {
		if i == dot {
			continue
		}
		if body[i] < '0' || body[i] > '9' {
			return nil, false
		}
	}
	r, ok := new(big.Rat).SetString(s)
	return r, ok
}
