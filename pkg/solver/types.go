// Package solver lowers validated DSL trees into an exact constraint
// form and decides satisfiability under a bounded timeout.
//
// The decision procedure is deliberately conservative: SAT always carries
// a model that has been substituted back into the original constraints
// and re-evaluated, UNSAT is only reported when infeasibility has been
// proved over exact rationals, and everything else is UNKNOWN. UNKNOWN is
// a first-class terminal outcome; it is never coerced to a guess.
package solver

import (
	"fmt"
	"math/big"
)

// Type is a declared variable type.
type Type string

const (
	TypeInt  Type = "Int"
	TypeReal Type = "Real"
	TypeBool Type = "Bool"
)

// ParseType maps the wire-format type name onto a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "Int":
		return TypeInt, nil
	case "Real":
		return TypeReal, nil
	case "Bool":
		return TypeBool, nil
	}
	return "", fmt.Errorf("unknown variable type %q", s)
}

// VariableDecl is one typed symbol supplied with a request.
type VariableDecl struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Status is the three-way solver verdict. The cases are exhaustive and
// mutually exclusive.
type Status string

const (
	StatusSat     Status = "SAT"
	StatusUnsat   Status = "UNSAT"
	StatusUnknown Status = "UNKNOWN"
)

// Value is a concrete model value.
type Value struct {
	Type Type
	Num  *big.Rat // TypeInt / TypeReal
	Bool bool     // TypeBool
}

// String renders the value in canonical form: integers without a
// fraction, rationals as exact "p/q", booleans as true/false.
func (v Value) String() string {
	switch v.Type {
	case TypeBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		if v.Num == nil {
			return "0"
		}
		return v.Num.RatString()
	}
}

// Outcome is the immutable result of one solve. Model is present iff
// Status is SAT, and is guaranteed to satisfy the round-trip check.
type Outcome struct {
	Status Status
	Model  map[string]Value
	Reason string // UNKNOWN only: why the solver gave up
}

// CompileError reports a type mismatch or an unresolvable construct
// during lowering. It is a structured, expected failure — lowering never
// panics on well-parsed input.
type CompileError struct {
	Pos int
	Msg string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error at offset %d: %s", e.Pos, e.Msg)
}
