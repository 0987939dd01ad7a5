package solver

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/Mindburn-Labs/verdict/core/pkg/dsl"
)

// Expr is the solver-native constraint form: a typed tree over exact
// rational constants, boolean constants and resolved variables. It is
// produced only by Compile, from a tree that already passed whitelist
// validation, so every Op in it is from the enumerated set.
type Expr struct {
	Op   dsl.Op  // non-empty for operator nodes
	Args []*Expr // operator nodes only

	Type Type // result type of this subtree

	Const *big.Rat // numeric constant leaf
	Bool  bool     // boolean constant leaf
	IsLit bool     // set for constant leaves
	Var   string   // variable leaf
}

// canonical boolean symbol names that default to Bool when undeclared.
var booleanSymbols = map[string]bool{
	"p": true, "q": true, "r": true,
	"flag": true, "valid": true, "enabled": true, "active": true,
	"approved": true, "ok": true,
}

// defaultType resolves the type of an undeclared identifier: names shaped
// like predicates default to Bool, everything else to Int.
func defaultType(name string) Type {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "is_") || strings.HasPrefix(lower, "has_") || strings.HasPrefix(lower, "can_") {
		return TypeBool
	}
	if booleanSymbols[lower] {
		return TypeBool
	}
	return TypeInt
}

// SymbolTable resolves identifier types for one compilation.
type SymbolTable struct {
	types map[string]Type
}

// NewSymbolTable builds a table from declared variables. Later
// declarations of the same name win, matching wire-format order.
func NewSymbolTable(decls []VariableDecl) *SymbolTable {
	t := &SymbolTable{types: make(map[string]Type, len(decls))}
	for _, d := range decls {
		t.types[d.Name] = d.Type
	}
	return t
}

// Resolve returns the type for name, registering the heuristic default on
// first sight of an undeclared identifier.
func (t *SymbolTable) Resolve(name string) Type {
	if typ, ok := t.types[name]; ok {
		return typ
	}
	typ := defaultType(name)
	t.types[name] = typ
	return typ
}

// Names returns all resolved names in sorted order.
func (t *SymbolTable) Names() []string {
	names := make([]string, 0, len(t.types))
	for n := range t.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Type returns the resolved type of a known name.
func (t *SymbolTable) Type(name string) Type {
	return t.types[name]
}

// Compile lowers a validated AST into the solver-native form, checking
// operand types per operator. The root must be boolean-typed: a request
// asserts a constraint, not an arithmetic value.
func Compile(root *dsl.Node, syms *SymbolTable) (*Expr, error) {
	e, err := compileNode(root, syms)
	if err != nil {
		return nil, err
	}
	if e.Type != TypeBool {
		return nil, &CompileError{Pos: root.Pos, Msg: "top-level expression must be boolean"}
	}
	return e, nil
}

func compileNode(n *dsl.Node, syms *SymbolTable) (*Expr, error) {
	switch n.Kind {
	case dsl.NodeInt:
		return &Expr{Type: TypeInt, Const: n.Num, IsLit: true}, nil
	case dsl.NodeReal:
		return &Expr{Type: TypeReal, Const: n.Num, IsLit: true}, nil
	case dsl.NodeBool:
		return &Expr{Type: TypeBool, Bool: n.Bool, IsLit: true}, nil
	case dsl.NodeIdent:
		return &Expr{Type: syms.Resolve(n.Name), Var: n.Name}, nil
	}

	args := make([]*Expr, len(n.Args))
	for i, a := range n.Args {
		e, err := compileNode(a, syms)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}

	switch {
	case n.Op.IsLogical():
		for i, a := range args {
			if a.Type != TypeBool {
				return nil, &CompileError{Pos: n.Args[i].Pos,
					Msg: fmt.Sprintf("%s requires boolean operands, got %s", n.Op, a.Type)}
			}
		}
		return &Expr{Op: n.Op, Args: args, Type: TypeBool}, nil

	case n.Op.IsComparison():
		lt, rt := args[0].Type, args[1].Type
		switch {
		case lt == TypeBool && rt == TypeBool:
			if n.Op != dsl.OpEq && n.Op != dsl.OpNeq {
				return nil, &CompileError{Pos: n.Pos,
					Msg: fmt.Sprintf("%s is not defined on booleans", n.Op)}
			}
		case lt == TypeBool || rt == TypeBool:
			return nil, &CompileError{Pos: n.Pos,
				Msg: fmt.Sprintf("%s operands are not mutually comparable: %s vs %s", n.Op, lt, rt)}
		case lt != rt && !comparableNumeric(args[0], args[1]):
			return nil, &CompileError{Pos: n.Pos,
				Msg: fmt.Sprintf("%s operands are not mutually comparable: %s vs %s", n.Op, lt, rt)}
		}
		return &Expr{Op: n.Op, Args: args, Type: TypeBool}, nil

	case n.Op.IsArithmetic():
		resType := TypeInt
		for i, a := range args {
			if a.Type == TypeBool {
				return nil, &CompileError{Pos: n.Args[i].Pos,
					Msg: fmt.Sprintf("%s requires numeric operands, got Bool", n.Op)}
			}
			if a.Type == TypeReal {
				resType = TypeReal
			}
		}
		if n.Op == dsl.OpDiv {
			// Division over the DSL is exact rational division.
			resType = TypeReal
		}
		return &Expr{Op: n.Op, Args: args, Type: resType}, nil
	}

	// Unreachable after validation; kept as a structured failure anyway.
	return nil, &CompileError{Pos: n.Pos, Msg: fmt.Sprintf("unsupported operator %q", n.Head)}
}

// comparableNumeric allows an Int/Real mix only when one side is a
// literal, which coerces losslessly. Mixing Int and Real variables is a
// declared-type mismatch.
func comparableNumeric(a, b *Expr) bool {
	return a.IsLit || b.IsLit
}
