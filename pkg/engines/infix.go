package engines

import (
	"fmt"
	"math/big"
	"strings"
)

// evalInfix is the independent arithmetic derivation: a small
// recursive-descent evaluator over exact rationals. It shares no code
// with the CEL path on purpose — agreement between two unrelated
// implementations is the whole point of the cross-check.
func evalInfix(src string) (*big.Rat, error) {
	p := &infixParser{src: src}
	v, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.i != len(p.src) {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.src[p.i], p.i)
	}
	return v, nil
}

type infixParser struct {
	src string
	i   int
}

func (p *infixParser) skipSpace() {
	for p.i < len(p.src) && (p.src[p.i] == ' ' || p.src[p.i] == '\t') {
		p.i++
	}
}

func (p *infixParser) peek() byte {
	p.skipSpace()
	if p.i >= len(p.src) {
		return 0
	}
	return p.src[p.i]
}

func (p *infixParser) parseSum() (*big.Rat, error) {
	acc, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case '+':
			p.i++
			rhs, err := p.parseProduct()
			if err != nil {
				return nil, err
			}
			acc.Add(acc, rhs)
		case '-':
			p.i++
			rhs, err := p.parseProduct()
			if err != nil {
				return nil, err
			}
			acc.Sub(acc, rhs)
		default:
			return acc, nil
		}
	}
}

func (p *infixParser) parseProduct() (*big.Rat, error) {
	acc, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case '*':
			p.i++
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			acc.Mul(acc, rhs)
		case '/':
			p.i++
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			if rhs.Sign() == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			acc.Quo(acc, rhs)
		default:
			return acc, nil
		}
	}
}

func (p *infixParser) parseUnary() (*big.Rat, error) {
	if p.peek() == '-' {
		p.i++
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return v.Neg(v), nil
	}
	return p.parseAtom()
}

func (p *infixParser) parseAtom() (*big.Rat, error) {
	switch c := p.peek(); {
	case c == '(':
		p.i++
		v, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, fmt.Errorf("missing ')' at offset %d", p.i)
		}
		p.i++
		return v, nil
	case c >= '0' && c <= '9':
		return p.parseNumber()
	case c == 0:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected %q at offset %d", c, p.i)
	}
}

func (p *infixParser) parseNumber() (*big.Rat, error) {
	start := p.i
	seenDot := false
	for p.i < len(p.src) {
		c := p.src[p.i]
		if c == '.' {
			if seenDot {
				break
			}
			seenDot = true
			p.i++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		p.i++
	}
	text := p.src[start:p.i]
	if text == "" || strings.HasSuffix(text, ".") {
		return nil, fmt.Errorf("malformed number at offset %d", start)
	}
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, fmt.Errorf("malformed number %q", text)
	}
	return r, nil
}
