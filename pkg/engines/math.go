package engines

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"time"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

// arithmeticPattern bounds what the math engine will even look at:
// numbers, grouping and the four operators. Anything richer belongs to
// the DSL path.
var arithmeticPattern = regexp.MustCompile(`^[\d\s().+\-*/]+$`)

// MathEngine evaluates arithmetic claims twice: once through CEL and
// once through an independent exact-rational evaluator. The two
// derivations must agree before the engine trusts its own answer; a
// disagreement downgrades the attempt to failure regardless of how
// confident either path was, because a confidently solved wrong
// formalization is worse than no answer.
type MathEngine struct {
	env *cel.Env
	log *slog.Logger
}

// NewMathEngine builds the CEL environment.
func NewMathEngine(log *slog.Logger) (*MathEngine, error) {
	env, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("math engine: cel env: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &MathEngine{env: env, log: log}, nil
}

func (e *MathEngine) Name() string { return "math_cel" }

func (e *MathEngine) Applicable(task verdict.Task) bool {
	return e.expression(task) != ""
}

// expression extracts the arithmetic expression from a task: an
// explicit context entry wins, otherwise a query that is nothing but
// arithmetic qualifies.
func (e *MathEngine) expression(task verdict.Task) string {
	if expr, ok := task.Context["expression"]; ok {
		return expr
	}
	if task.Query != "" && arithmeticPattern.MatchString(task.Query) {
		return task.Query
	}
	return ""
}

func (e *MathEngine) Attempt(ctx context.Context, task verdict.Task) verdict.EngineResult {
	start := time.Now()
	fail := func(msg string) verdict.EngineResult {
		return verdict.EngineResult{
			EngineName: e.Name(),
			Method:     "cel_crosscheck",
			Success:    false,
			Error:      msg,
			LatencyMS:  time.Since(start).Milliseconds(),
		}
	}

	expr := e.expression(task)
	if expr == "" {
		return fail("no arithmetic expression in task")
	}

	// 1. Determinism screen on the parsed CEL AST, before evaluation.
	if err := e.screenDeterminism(expr); err != nil {
		return fail(err.Error())
	}

	// 2. Primary derivation through CEL.
	primary, err := e.evalCEL(expr)
	if err != nil {
		return fail("cel evaluation: " + err.Error())
	}

	// 3. Independent re-derivation with the exact evaluator.
	check, err := evalInfix(expr)
	if err != nil {
		return fail("cross-check derivation failed: " + err.Error())
	}

	// 4. The two must agree within exact-vs-float tolerance.
	if !ratsAgree(primary, check) {
		e.log.WarnContext(ctx, "math cross-check disagreement",
			"primary", primary.RatString(), "check", check.RatString())
		return fail(fmt.Sprintf("cross-check disagreement: %s vs %s",
			primary.RatString(), check.RatString()))
	}

	return verdict.EngineResult{
		EngineName: e.Name(),
		Method:     "cel_crosscheck",
		Result:     check.RatString(),
		Confidence: 0.95,
		Success:    true,
		LatencyMS:  time.Since(start).Milliseconds(),
	}
}

// screenDeterminism walks the parsed AST and rejects constructs whose
// value could vary between evaluations.
func (e *MathEngine) screenDeterminism(expr string) error {
	parsed, issues := e.env.Parse(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("cel parse: %w", issues.Err())
	}
	//nolint:staticcheck // deprecated accessor, no alternative for AST traversal yet
	return walkForDeterminism(parsed.Expr())
}

func walkForDeterminism(ex *exprpb.Expr) error {
	if ex == nil {
		return nil
	}
	switch k := ex.ExprKind.(type) {
	case *exprpb.Expr_CallExpr:
		call := k.CallExpr
		switch call.Function {
		case "now", "timestamp", "rand":
			return fmt.Errorf("non-deterministic function %q", call.Function)
		}
		if call.Target != nil {
			if err := walkForDeterminism(call.Target); err != nil {
				return err
			}
		}
		for _, arg := range call.Args {
			if err := walkForDeterminism(arg); err != nil {
				return err
			}
		}
	case *exprpb.Expr_ComprehensionExpr:
		return fmt.Errorf("comprehensions are not allowed in arithmetic claims")
	case *exprpb.Expr_IdentExpr:
		return fmt.Errorf("free identifier %q in arithmetic claim", k.IdentExpr.Name)
	case *exprpb.Expr_ListExpr:
		for _, el := range k.ListExpr.Elements {
			if err := walkForDeterminism(el); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *MathEngine) evalCEL(expr string) (*big.Rat, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, err
	}
	val, _, err := prg.Eval(cel.NoVars())
	if err != nil {
		return nil, err
	}
	switch v := val.Value().(type) {
	case int64:
		return new(big.Rat).SetInt64(v), nil
	case uint64:
		return new(big.Rat).SetUint64(v), nil
	case float64:
		r := new(big.Rat).SetFloat64(v)
		if r == nil {
			return nil, fmt.Errorf("non-finite result")
		}
		return r, nil
	}
	return nil, fmt.Errorf("non-numeric result %T", val.Value())
}

// ratsAgree compares the two derivations: exact equality, or within
// 1e-9 relative tolerance to absorb IEEE rounding on the CEL side.
func ratsAgree(a, b *big.Rat) bool {
	if a.Cmp(b) == 0 {
		return true
	}
	diff := new(big.Rat).Sub(a, b)
	diff.Abs(diff)
	scale := new(big.Rat).Abs(b)
	if scale.Cmp(big.NewRat(1, 1)) < 0 {
		scale = big.NewRat(1, 1)
	}
	tol := new(big.Rat).Mul(scale, big.NewRat(1, 1_000_000_000))
	return diff.Cmp(tol) <= 0
}
