// Package dsl implements the restricted constraint expression language.
//
// The language is a strict S-expression grammar: an atom is an integer,
// real or boolean literal or an identifier; a compound form is
// (OPERATOR arg...). Acceptance is allow-list only: after parsing, a
// separate validation pass rejects every operator outside the enumerated
// set. There is no blocklist of "known-bad" substrings — such lists are
// incomplete against adversarial input by construction.
package dsl

import "math/big"

// Op is an operator tag. Only tags in the Signatures table survive
// validation; constructing a validated tree with any other tag is
// impossible through this package.
type Op string

const (
	// Logical connectives.
	OpAnd     Op = "AND"
	OpOr      Op = "OR"
	OpNot     Op = "NOT"
	OpImplies Op = "IMPLIES"
	OpIff     Op = "IFF"

	// Comparisons.
	OpEq  Op = "EQ"
	OpNeq Op = "NEQ"
	OpGt  Op = "GT"
	OpGte Op = "GTE"
	OpLt  Op = "LT"
	OpLte Op = "LTE"

	// Arithmetic.
	OpPlus  Op = "PLUS"
	OpMinus Op = "MINUS"
	OpMult  Op = "MULT"
	OpDiv   Op = "DIV"
)

// Signature fixes the accepted argument count for an operator.
// Max == -1 means variadic (no upper bound).
type Signature struct {
	Min int
	Max int
}

// Signatures is the complete operator whitelist. Membership here is the
// single source of truth for validation.
var Signatures = map[Op]Signature{
	OpAnd:     {Min: 2, Max: -1},
	OpOr:      {Min: 2, Max: -1},
	OpNot:     {Min: 1, Max: 1},
	OpImplies: {Min: 2, Max: 2},
	OpIff:     {Min: 2, Max: 2},

	OpEq:  {Min: 2, Max: 2},
	OpNeq: {Min: 2, Max: 2},
	OpGt:  {Min: 2, Max: 2},
	OpGte: {Min: 2, Max: 2},
	OpLt:  {Min: 2, Max: 2},
	OpLte: {Min: 2, Max: 2},

	OpPlus:  {Min: 2, Max: -1},
	OpMinus: {Min: 2, Max: 2},
	OpMult:  {Min: 2, Max: -1},
	OpDiv:   {Min: 2, Max: 2},
}

// IsLogical reports whether op is a boolean connective.
func (o Op) IsLogical() bool {
	switch o {
	case OpAnd, OpOr, OpNot, OpImplies, OpIff:
		return true
	}
	return false
}

// IsComparison reports whether op is a relational operator.
func (o Op) IsComparison() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// IsArithmetic reports whether op is a numeric operator.
func (o Op) IsArithmetic() bool {
	switch o {
	case OpPlus, OpMinus, OpMult, OpDiv:
		return true
	}
	return false
}

// NodeKind discriminates AST node variants.
type NodeKind int

const (
	NodeForm NodeKind = iota // compound form (OPERATOR arg...)
	NodeInt                  // integer literal
	NodeReal                 // real literal
	NodeBool                 // boolean literal
	NodeIdent                // identifier
)

// Node is one parsed expression node. Nodes are created by the parser,
// owned by the request, and discarded after compilation.
type Node struct {
	Kind NodeKind
	Pos  int // byte offset in the source, for diagnostics

	// NodeForm: Head is the raw operator symbol as written; Op is the
	// canonical tag, assigned by the validator once the head is accepted.
	Head string
	Op   Op
	Args []*Node

	// NodeInt / NodeReal: exact literal value.
	Num *big.Rat

	// NodeBool.
	Bool bool

	// NodeIdent.
	Name string
}
