package solver

import (
	"fmt"
	"math/big"

	"github.com/Mindburn-Labs/verdict/core/pkg/dsl"
)

// Evaluate computes the exact value of a compiled expression under a
// concrete assignment. It backs the solver's round-trip check: every SAT
// model is substituted into the original constraint and must evaluate to
// true before it is returned to a caller.
func Evaluate(e *Expr, model map[string]Value) (Value, error) {
	switch {
	case e.IsLit && e.Type == TypeBool:
		return Value{Type: TypeBool, Bool: e.Bool}, nil
	case e.IsLit:
		return Value{Type: e.Type, Num: e.Const}, nil
	case e.Var != "":
		v, ok := model[e.Var]
		if !ok {
			return Value{}, fmt.Errorf("unassigned variable %q", e.Var)
		}
		return v, nil
	}

	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		v, err := Evaluate(a, model)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}

	switch {
	case e.Op.IsLogical():
		return evalLogical(e.Op, args)
	case e.Op.IsComparison():
		return evalComparison(e.Op, args)
	case e.Op.IsArithmetic():
		return evalArithmetic(e.Op, e.Type, args)
	}
	return Value{}, fmt.Errorf("unsupported operator %s", e.Op)
}

func evalLogical(op dsl.Op, args []Value) (Value, error) {
	switch op {
	case dsl.OpAnd:
		for _, a := range args {
			if !a.Bool {
				return boolValue(false), nil
			}
		}
		return boolValue(true), nil
	case dsl.OpOr:
		for _, a := range args {
			if a.Bool {
				return boolValue(true), nil
			}
		}
		return boolValue(false), nil
	case dsl.OpNot:
		return boolValue(!args[0].Bool), nil
	case dsl.OpImplies:
		return boolValue(!args[0].Bool || args[1].Bool), nil
	case dsl.OpIff:
		return boolValue(args[0].Bool == args[1].Bool), nil
	}
	return Value{}, fmt.Errorf("not a logical operator: %s", op)
}

func evalComparison(op dsl.Op, args []Value) (Value, error) {
	a, b := args[0], args[1]
	if a.Type == TypeBool || b.Type == TypeBool {
		if a.Type != TypeBool || b.Type != TypeBool {
			return Value{}, fmt.Errorf("%s: mixed boolean comparison", op)
		}
		switch op {
		case dsl.OpEq:
			return boolValue(a.Bool == b.Bool), nil
		case dsl.OpNeq:
			return boolValue(a.Bool != b.Bool), nil
		}
		return Value{}, fmt.Errorf("%s is not defined on booleans", op)
	}

	cmp := a.Num.Cmp(b.Num)
	switch op {
	case dsl.OpEq:
		return boolValue(cmp == 0), nil
	case dsl.OpNeq:
		return boolValue(cmp != 0), nil
	case dsl.OpGt:
		return boolValue(cmp > 0), nil
	case dsl.OpGte:
		return boolValue(cmp >= 0), nil
	case dsl.OpLt:
		return boolValue(cmp < 0), nil
	case dsl.OpLte:
		return boolValue(cmp <= 0), nil
	}
	return Value{}, fmt.Errorf("not a comparison: %s", op)
}

func evalArithmetic(op dsl.Op, typ Type, args []Value) (Value, error) {
	acc := new(big.Rat).Set(args[0].Num)
	switch op {
	case dsl.OpPlus:
		for _, a := range args[1:] {
			acc.Add(acc, a.Num)
		}
	case dsl.OpMinus:
		acc.Sub(acc, args[1].Num)
	case dsl.OpMult:
		for _, a := range args[1:] {
			acc.Mul(acc, a.Num)
		}
	case dsl.OpDiv:
		if args[1].Num.Sign() == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		acc.Quo(acc, args[1].Num)
	default:
		return Value{}, fmt.Errorf("not arithmetic: %s", op)
	}
	return Value{Type: typ, Num: acc}, nil
}

func boolValue(b bool) Value { return Value{Type: TypeBool, Bool: b} }
