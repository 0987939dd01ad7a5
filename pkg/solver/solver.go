package solver

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/Mindburn-Labs/verdict/core/pkg/dsl"
)

// DefaultTimeout bounds one solve end to end. Exceeding it yields
// UNKNOWN, never a partial claim.
const DefaultTimeout = 5 * time.Second

// Search caps. Past these the problem is declared out of reach and the
// answer is UNKNOWN with a reason, keeping worst-case runtime bounded.
const (
	maxBoolVars = 16
	maxAtoms    = 12
)

// Solver decides compiled constraints. The zero value uses DefaultTimeout.
type Solver struct {
	Timeout time.Duration
}

// Solve decides satisfiability of a compiled boolean expression.
//
// The search enumerates boolean-variable assignments and truth vectors
// over the numeric atoms, checks the propositional skeleton, and hands
// each consistent arithmetic branch to the exact linear core. SAT is
// returned only with a model that survives re-evaluation against the
// original expression; UNSAT only when every branch is proved rationally
// infeasible. Anything else — timeout, caps, nonlinearity, missing
// integer witnesses — is UNKNOWN.
func (s *Solver) Solve(ctx context.Context, e *Expr, syms *SymbolTable) Outcome {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 1. Classify the symbols of this constraint.
	var boolVars []string
	types := make(map[string]Type)
	for _, name := range syms.Names() {
		t := syms.Type(name)
		types[name] = t
		if t == TypeBool {
			boolVars = append(boolVars, name)
		}
	}
	if len(boolVars) > maxBoolVars {
		return unknown(fmt.Sprintf("too many boolean variables (%d > %d)", len(boolVars), maxBoolVars))
	}

	// 2. Collect the numeric atoms of the skeleton.
	atoms := collectAtoms(e)
	if len(atoms) > maxAtoms {
		return unknown(fmt.Sprintf("too many atomic constraints (%d > %d)", len(atoms), maxAtoms))
	}

	// 3. Enumerate assignments. Every branch must resolve for UNSAT;
	// one witnessed branch suffices for SAT.
	sawIndeterminate := false
	indReason := ""
	boolTotal := 1 << len(boolVars)
	atomTotal := 1 << len(atoms)

	for bm := 0; bm < boolTotal; bm++ {
		boolVals := make(map[string]bool, len(boolVars))
		for i, name := range boolVars {
			boolVals[name] = bm&(1<<i) != 0
		}
		for am := 0; am < atomTotal; am++ {
			if ctx.Err() != nil {
				return unknown(fmt.Sprintf("timeout after %s", timeout))
			}
			atomVals := make([]bool, len(atoms))
			for i := range atoms {
				atomVals[i] = am&(1<<i) != 0
			}

			// The skeleton must hold under this truth vector before any
			// arithmetic work happens.
			hold, err := evalSkeleton(e, boolVals, atoms, atomVals)
			if err != nil {
				return unknown(err.Error())
			}
			if !hold {
				continue
			}

			model, feas, reason := s.solveBranch(ctx, atoms, atomVals, types)
			switch feas {
			case feasWitness:
				full := assembleModel(model, boolVals, types)
				ok, err := roundTrip(e, full)
				if err != nil || !ok {
					sawIndeterminate = true
					indReason = "model failed round-trip check"
					continue
				}
				return Outcome{Status: StatusSat, Model: full}
			case feasIndetermined:
				sawIndeterminate = true
				if reason != "" {
					indReason = reason
				}
			}
		}
	}

	if sawIndeterminate {
		if indReason == "" {
			indReason = "no exact witness found"
		}
		return unknown(indReason)
	}
	return Outcome{Status: StatusUnsat}
}

// solveBranch lowers one atom truth vector to linear constraint sets and
// tries the linear core on each disequality sub-branch.
func (s *Solver) solveBranch(ctx context.Context, atoms []*Expr, vals []bool, types map[string]Type) (map[string]*big.Rat, feasibility, string) {
	// Each atom contributes one or two alternative constraints; the
	// alternatives multiply into sub-branches.
	branches := [][]lincon{nil}
	for i, atom := range atoms {
		alts, err := atomConstraints(atom, vals[i])
		if err != nil {
			return nil, feasIndetermined, err.Error()
		}
		var next [][]lincon
		for _, br := range branches {
			for _, alt := range alts {
				ext := make([]lincon, len(br), len(br)+1)
				copy(ext, br)
				next = append(next, append(ext, alt))
			}
		}
		branches = next
	}

	indeterminate := false
	for _, br := range branches {
		if ctx.Err() != nil {
			return nil, feasIndetermined, "timeout during linear solving"
		}
		model, feas := solveLinear(br, types)
		switch feas {
		case feasWitness:
			return model, feasWitness, ""
		case feasIndetermined:
			indeterminate = true
		}
	}
	if indeterminate {
		return nil, feasIndetermined, "no integral witness found"
	}
	return nil, feasInfeasible, ""
}

// atomConstraints lowers one numeric comparison, asserted or negated,
// into alternative linear constraints. Disequality splits into the two
// strict orderings.
func atomConstraints(atom *Expr, truth bool) ([]lincon, error) {
	left, err := linearize(atom.Args[0])
	if err != nil {
		return nil, err
	}
	right, err := linearize(atom.Args[1])
	if err != nil {
		return nil, err
	}
	diff := left.clone()
	diff.addScaled(right, big.NewRat(-1, 1)) // left - right
	neg := right.clone()
	neg.addScaled(left, big.NewRat(-1, 1)) // right - left

	op := atom.Op
	if !truth {
		// Negation flips the relation exactly.
		switch op {
		case dsl.OpEq:
			op = dsl.OpNeq
		case dsl.OpNeq:
			op = dsl.OpEq
		case dsl.OpGt:
			op = dsl.OpLte
		case dsl.OpGte:
			op = dsl.OpLt
		case dsl.OpLt:
			op = dsl.OpGte
		case dsl.OpLte:
			op = dsl.OpGt
		}
	}

	switch op {
	case dsl.OpEq:
		return []lincon{{form: diff, rel: relEq}}, nil
	case dsl.OpNeq:
		return []lincon{{form: diff, rel: relGt}, {form: neg, rel: relGt}}, nil
	case dsl.OpGt:
		return []lincon{{form: diff, rel: relGt}}, nil
	case dsl.OpGte:
		return []lincon{{form: diff, rel: relGe}}, nil
	case dsl.OpLt:
		return []lincon{{form: neg, rel: relGt}}, nil
	case dsl.OpLte:
		return []lincon{{form: neg, rel: relGe}}, nil
	}
	return nil, fmt.Errorf("not a comparison atom: %s", atom.Op)
}

// collectAtoms gathers the numeric comparison leaves of the boolean
// skeleton, deduplicated structurally.
func collectAtoms(e *Expr) []*Expr {
	var atoms []*Expr
	seen := make(map[string]bool)
	var walk func(*Expr)
	walk = func(x *Expr) {
		if isNumericAtom(x) {
			key := exprKey(x)
			if !seen[key] {
				seen[key] = true
				atoms = append(atoms, x)
			}
			return
		}
		for _, a := range x.Args {
			walk(a)
		}
	}
	walk(e)
	return atoms
}

// isNumericAtom reports whether the node is a comparison over numeric
// operands. Boolean EQ/NEQ stays in the propositional skeleton.
func isNumericAtom(e *Expr) bool {
	return e.Op.IsComparison() && len(e.Args) == 2 &&
		e.Args[0].Type != TypeBool && e.Args[1].Type != TypeBool
}

// evalSkeleton evaluates the boolean structure with atoms replaced by
// their assumed truth values.
func evalSkeleton(e *Expr, boolVals map[string]bool, atoms []*Expr, atomVals []bool) (bool, error) {
	if isNumericAtom(e) {
		key := exprKey(e)
		for i, a := range atoms {
			if exprKey(a) == key {
				return atomVals[i], nil
			}
		}
		return false, fmt.Errorf("uncollected atom %s", key)
	}

	switch {
	case e.IsLit && e.Type == TypeBool:
		return e.Bool, nil
	case e.Var != "":
		v, ok := boolVals[e.Var]
		if !ok {
			return false, fmt.Errorf("unassigned boolean %q", e.Var)
		}
		return v, nil
	}

	switch e.Op {
	case dsl.OpAnd:
		for _, a := range e.Args {
			v, err := evalSkeleton(a, boolVals, atoms, atomVals)
			if err != nil || !v {
				return false, err
			}
		}
		return true, nil
	case dsl.OpOr:
		for _, a := range e.Args {
			v, err := evalSkeleton(a, boolVals, atoms, atomVals)
			if err != nil {
				return false, err
			}
			if v {
				return true, nil
			}
		}
		return false, nil
	case dsl.OpNot:
		v, err := evalSkeleton(e.Args[0], boolVals, atoms, atomVals)
		return !v, err
	case dsl.OpImplies:
		a, err := evalSkeleton(e.Args[0], boolVals, atoms, atomVals)
		if err != nil {
			return false, err
		}
		b, err := evalSkeleton(e.Args[1], boolVals, atoms, atomVals)
		return !a || b, err
	case dsl.OpIff, dsl.OpEq:
		a, err := evalSkeleton(e.Args[0], boolVals, atoms, atomVals)
		if err != nil {
			return false, err
		}
		b, err := evalSkeleton(e.Args[1], boolVals, atoms, atomVals)
		return a == b, err
	case dsl.OpNeq:
		a, err := evalSkeleton(e.Args[0], boolVals, atoms, atomVals)
		if err != nil {
			return false, err
		}
		b, err := evalSkeleton(e.Args[1], boolVals, atoms, atomVals)
		return a != b, err
	}
	return false, fmt.Errorf("non-boolean node in skeleton: %s", e.Op)
}

// exprKey renders a structural identity for atom deduplication.
func exprKey(e *Expr) string {
	switch {
	case e == nil:
		return "_"
	case e.IsLit && e.Type == TypeBool:
		return fmt.Sprintf("b:%v", e.Bool)
	case e.IsLit:
		return "n:" + e.Const.RatString()
	case e.Var != "":
		return "v:" + e.Var
	}
	parts := make([]string, 0, len(e.Args)+1)
	parts = append(parts, string(e.Op))
	for _, a := range e.Args {
		parts = append(parts, exprKey(a))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// assembleModel merges the numeric witness and boolean assignment into a
// complete typed model over every resolved symbol.
func assembleModel(nums map[string]*big.Rat, bools map[string]bool, types map[string]Type) map[string]Value {
	model := make(map[string]Value, len(types))
	names := make([]string, 0, len(types))
	for n := range types {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		t := types[name]
		if t == TypeBool {
			model[name] = Value{Type: TypeBool, Bool: bools[name]}
			continue
		}
		v, ok := nums[name]
		if !ok {
			v = new(big.Rat) // unconstrained numeric symbols default to 0
		}
		model[name] = Value{Type: t, Num: v}
	}
	return model
}

// roundTrip re-evaluates the original expression under the candidate
// model. SAT is never reported without this check passing.
func roundTrip(e *Expr, model map[string]Value) (bool, error) {
	v, err := Evaluate(e, model)
	if err != nil {
		return false, err
	}
	return v.Type == TypeBool && v.Bool, nil
}

func unknown(reason string) Outcome {
	return Outcome{Status: StatusUnknown, Reason: reason}
}
