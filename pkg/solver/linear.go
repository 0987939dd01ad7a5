package solver

import (
	"errors"
	"math/big"
	"sort"

	"github.com/Mindburn-Labs/verdict/core/pkg/dsl"
)

// The linear core: exact-rational Fourier–Motzkin elimination with
// Gaussian substitution of equalities. Infeasibility proved here is sound
// over both Real and Int interpretations (the integers embed in the
// rationals); feasibility over the rationals still needs an integer
// witness for Int variables, and when none is found the branch reports
// indeterminate rather than claiming either verdict.

var errNonlinear = errors.New("expression is not linear")

// linform is an affine form: sum(coeffs[v]·v) + k.
type linform struct {
	coeffs map[string]*big.Rat
	k      *big.Rat
}

func newLinform() *linform {
	return &linform{coeffs: make(map[string]*big.Rat), k: new(big.Rat)}
}

func (l *linform) clone() *linform {
	c := &linform{coeffs: make(map[string]*big.Rat, len(l.coeffs)), k: new(big.Rat).Set(l.k)}
	for v, r := range l.coeffs {
		c.coeffs[v] = new(big.Rat).Set(r)
	}
	return c
}

func (l *linform) addScaled(o *linform, s *big.Rat) {
	for v, r := range o.coeffs {
		cur, ok := l.coeffs[v]
		if !ok {
			cur = new(big.Rat)
			l.coeffs[v] = cur
		}
		cur.Add(cur, new(big.Rat).Mul(r, s))
		if cur.Sign() == 0 {
			delete(l.coeffs, v)
		}
	}
	l.k.Add(l.k, new(big.Rat).Mul(o.k, s))
}

func (l *linform) scale(s *big.Rat) {
	for v := range l.coeffs {
		l.coeffs[v].Mul(l.coeffs[v], s)
		if l.coeffs[v].Sign() == 0 {
			delete(l.coeffs, v)
		}
	}
	l.k.Mul(l.k, s)
}

// eval computes the form's value under a complete assignment.
func (l *linform) eval(assign map[string]*big.Rat) *big.Rat {
	out := new(big.Rat).Set(l.k)
	for v, c := range l.coeffs {
		val, ok := assign[v]
		if !ok {
			val = new(big.Rat)
		}
		out.Add(out, new(big.Rat).Mul(c, val))
	}
	return out
}

func (l *linform) vars() []string {
	names := make([]string, 0, len(l.coeffs))
	for v := range l.coeffs {
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}

// linearize lowers a numeric Expr to an affine form. Products of two
// variable-carrying subterms and division by a variable-carrying divisor
// are nonlinear and push the enclosing branch to UNKNOWN.
func linearize(e *Expr) (*linform, error) {
	switch {
	case e.IsLit:
		l := newLinform()
		l.k.Set(e.Const)
		return l, nil
	case e.Var != "":
		l := newLinform()
		l.coeffs[e.Var] = big.NewRat(1, 1)
		return l, nil
	}

	switch e.Op {
	case dsl.OpPlus:
		acc := newLinform()
		one := big.NewRat(1, 1)
		for _, a := range e.Args {
			la, err := linearize(a)
			if err != nil {
				return nil, err
			}
			acc.addScaled(la, one)
		}
		return acc, nil

	case dsl.OpMinus:
		la, err := linearize(e.Args[0])
		if err != nil {
			return nil, err
		}
		lb, err := linearize(e.Args[1])
		if err != nil {
			return nil, err
		}
		out := la.clone()
		out.addScaled(lb, big.NewRat(-1, 1))
		return out, nil

	case dsl.OpMult:
		constProduct := big.NewRat(1, 1)
		var varPart *linform
		for _, a := range e.Args {
			la, err := linearize(a)
			if err != nil {
				return nil, err
			}
			if len(la.coeffs) == 0 {
				constProduct.Mul(constProduct, la.k)
				continue
			}
			if varPart != nil {
				return nil, errNonlinear
			}
			varPart = la
		}
		if varPart == nil {
			l := newLinform()
			l.k.Set(constProduct)
			return l, nil
		}
		out := varPart.clone()
		out.scale(constProduct)
		return out, nil

	case dsl.OpDiv:
		num, err := linearize(e.Args[0])
		if err != nil {
			return nil, err
		}
		den, err := linearize(e.Args[1])
		if err != nil {
			return nil, err
		}
		if len(den.coeffs) != 0 || den.k.Sign() == 0 {
			return nil, errNonlinear
		}
		out := num.clone()
		out.scale(new(big.Rat).Inv(den.k))
		return out, nil
	}
	return nil, errNonlinear
}

// rel is the asserted relation of a linform against zero.
type rel int

const (
	relEq rel = iota // form == 0
	relGe            // form >= 0
	relGt            // form > 0
)

type lincon struct {
	form *linform
	rel  rel
}

// feasibility is the three-way answer of the linear core.
type feasibility int

const (
	feasWitness      feasibility = iota // witness found
	feasInfeasible                      // proved infeasible over the rationals
	feasIndetermined                    // rational-feasible, no exact witness found
)

// fmStep records one eliminated variable with its bound forms, for
// witness back-substitution.
type fmStep struct {
	name           string
	lowers, uppers []boundForm
}

type boundForm struct {
	form   *linform // value of the bound, in later-eliminated vars
	strict bool
}

type gaussStep struct {
	name string
	form *linform // var = form
}

// solveLinear decides a conjunction of linear constraints. Int-typed
// variables additionally need an integral witness; when rational
// feasibility holds but no integral witness is found, the answer is
// feasIndetermined — never feasInfeasible.
func solveLinear(cons []lincon, types map[string]Type) (map[string]*big.Rat, feasibility) {
	work := make([]lincon, 0, len(cons))
	for _, c := range cons {
		work = append(work, lincon{form: c.form.clone(), rel: c.rel})
	}

	// Strict bounds on all-integer forms tighten to inclusive ones:
	// form > 0 over integral terms means form >= 1.
	for i := range work {
		if work[i].rel == relGt && integralForm(work[i].form, types) {
			work[i].form.k.Sub(work[i].form.k, big.NewRat(1, 1))
			work[i].rel = relGe
		}
	}

	// 1. Gaussian substitution of equalities.
	var gauss []gaussStep
	for {
		idx := -1
		for i, c := range work {
			if c.rel == relEq && len(c.form.coeffs) > 0 {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		c := work[idx]
		v := c.form.vars()[0]
		coeff := c.form.coeffs[v]

		// v = -(rest)/coeff
		sub := c.form.clone()
		delete(sub.coeffs, v)
		sub.scale(new(big.Rat).Quo(big.NewRat(-1, 1), coeff))
		gauss = append(gauss, gaussStep{name: v, form: sub})

		next := work[:0]
		for i, o := range work {
			if i == idx {
				continue
			}
			if cv, ok := o.form.coeffs[v]; ok {
				s := new(big.Rat).Set(cv)
				delete(o.form.coeffs, v)
				o.form.addScaled(sub, s)
			}
			next = append(next, o)
		}
		work = next
	}

	// Constant equalities must hold exactly.
	ineqs := work[:0]
	for _, c := range work {
		if c.rel == relEq {
			if c.form.k.Sign() != 0 {
				return nil, feasInfeasible
			}
			continue
		}
		ineqs = append(ineqs, c)
	}

	// 2. Fourier–Motzkin elimination.
	var steps []fmStep
	for {
		v := pickVar(ineqs)
		if v == "" {
			break
		}
		step := fmStep{name: v}
		var rest []lincon
		for _, c := range ineqs {
			cv, ok := c.form.coeffs[v]
			if !ok {
				rest = append(rest, c)
				continue
			}
			// c: cv·v + rest' rel 0  →  bound form for v.
			bound := c.form.clone()
			delete(bound.coeffs, v)
			bound.scale(new(big.Rat).Quo(big.NewRat(-1, 1), cv))
			bf := boundForm{form: bound, strict: c.rel == relGt}
			if cv.Sign() > 0 {
				step.lowers = append(step.lowers, bf) // v >= bound
			} else {
				step.uppers = append(step.uppers, bf) // v <= bound
			}
		}
		// Combine each lower/upper pair: upper - lower rel 0.
		for _, lo := range step.lowers {
			for _, hi := range step.uppers {
				comb := hi.form.clone()
				comb.addScaled(lo.form, big.NewRat(-1, 1))
				r := relGe
				if lo.strict || hi.strict {
					r = relGt
				}
				rest = append(rest, lincon{form: comb, rel: r})
			}
		}
		steps = append(steps, step)
		ineqs = rest
	}

	// 3. Constant residue decides rational feasibility.
	for _, c := range ineqs {
		switch c.rel {
		case relGe:
			if c.form.k.Sign() < 0 {
				return nil, feasInfeasible
			}
		case relGt:
			if c.form.k.Sign() <= 0 {
				return nil, feasInfeasible
			}
		}
	}

	// 4. Witness assembly, reverse elimination order.
	assign := make(map[string]*big.Rat)
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		lo, loStrict := tightestBound(step.lowers, assign, true)
		hi, hiStrict := tightestBound(step.uppers, assign, false)
		val, ok := pickValue(lo, loStrict, hi, hiStrict, types[step.name] == TypeInt)
		if !ok {
			return nil, feasIndetermined
		}
		assign[step.name] = val
	}
	for i := len(gauss) - 1; i >= 0; i-- {
		g := gauss[i]
		val := g.form.eval(assign)
		if types[g.name] == TypeInt && !val.IsInt() {
			return nil, feasIndetermined
		}
		assign[g.name] = val
	}
	return assign, feasWitness
}

// integralForm reports whether every term of the form is integer-valued
// under any Int assignment: integer coefficients over Int variables and
// an integer constant.
func integralForm(l *linform, types map[string]Type) bool {
	if !l.k.IsInt() {
		return false
	}
	for v, c := range l.coeffs {
		if types[v] != TypeInt || !c.IsInt() {
			return false
		}
	}
	return true
}

// pickVar selects the next variable to eliminate: fewest bound
// combinations first keeps the constraint blowup down.
func pickVar(cons []lincon) string {
	counts := make(map[string][2]int)
	for _, c := range cons {
		for v, cv := range c.form.coeffs {
			n := counts[v]
			if cv.Sign() > 0 {
				n[0]++
			} else {
				n[1]++
			}
			counts[v] = n
		}
	}
	best, bestCost := "", -1
	for v, n := range counts {
		cost := n[0] * n[1]
		if bestCost < 0 || cost < bestCost || (cost == bestCost && v < best) {
			best, bestCost = v, cost
		}
	}
	return best
}

// tightestBound evaluates bound forms under the partial assignment and
// returns the binding one (max of lowers / min of uppers).
func tightestBound(bounds []boundForm, assign map[string]*big.Rat, lower bool) (*big.Rat, bool) {
	var best *big.Rat
	strict := false
	for _, b := range bounds {
		v := b.form.eval(assign)
		if best == nil {
			best, strict = v, b.strict
			continue
		}
		cmp := v.Cmp(best)
		if (lower && cmp > 0) || (!lower && cmp < 0) {
			best, strict = v, b.strict
		} else if cmp == 0 && b.strict {
			strict = true
		}
	}
	return best, strict
}

// pickValue chooses a witness inside (lo, hi) honoring strictness and,
// for Int variables, integrality.
func pickValue(lo *big.Rat, loStrict bool, hi *big.Rat, hiStrict bool, isInt bool) (*big.Rat, bool) {
	one := big.NewRat(1, 1)

	if lo == nil && hi == nil {
		return new(big.Rat), true
	}

	if isInt {
		var cand *big.Rat
		switch {
		case lo != nil:
			cand = ceilRat(lo)
			if loStrict && cand.Cmp(lo) == 0 {
				cand.Add(cand, one)
			}
		default:
			cand = floorRat(hi)
			if hiStrict && cand.Cmp(hi) == 0 {
				cand.Sub(cand, one)
			}
		}
		if !within(cand, lo, loStrict, hi, hiStrict) {
			return nil, false
		}
		return cand, true
	}

	switch {
	case lo != nil && hi != nil:
		if lo.Cmp(hi) == 0 {
			if loStrict || hiStrict {
				return nil, false
			}
			return new(big.Rat).Set(lo), true
		}
		mid := new(big.Rat).Add(lo, hi)
		mid.Quo(mid, big.NewRat(2, 1))
		return mid, true
	case lo != nil:
		if loStrict {
			return new(big.Rat).Add(lo, one), true
		}
		return new(big.Rat).Set(lo), true
	default:
		if hiStrict {
			return new(big.Rat).Sub(hi, one), true
		}
		return new(big.Rat).Set(hi), true
	}
}

func within(v, lo *big.Rat, loStrict bool, hi *big.Rat, hiStrict bool) bool {
	if lo != nil {
		cmp := v.Cmp(lo)
		if cmp < 0 || (cmp == 0 && loStrict) {
			return false
		}
	}
	if hi != nil {
		cmp := v.Cmp(hi)
		if cmp > 0 || (cmp == 0 && hiStrict) {
			return false
		}
	}
	return true
}

func ceilRat(r *big.Rat) *big.Rat {
	q := new(big.Int).Div(r.Num(), r.Denom())
	if new(big.Int).Mul(q, r.Denom()).Cmp(r.Num()) != 0 {
		q.Add(q, big.NewInt(1))
	}
	return new(big.Rat).SetInt(q)
}

func floorRat(r *big.Rat) *big.Rat {
	q := new(big.Int).Div(r.Num(), r.Denom())
	return new(big.Rat).SetInt(q)
}
