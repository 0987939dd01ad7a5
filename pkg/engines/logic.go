// Package engines holds the independent verification strategies the
// consensus orchestrator routes between. Every engine reports through
// the uniform EngineResult contract and never panics or throws: all
// failure travels inside the result.
package engines

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Mindburn-Labs/verdict/core/pkg/cache"
	"github.com/Mindburn-Labs/verdict/core/pkg/dsl"
	"github.com/Mindburn-Labs/verdict/core/pkg/solver"
	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

// LogicEngine decides DSL constraint tasks with the exact solver,
// consulting the result cache beside every solve. Only terminal SAT and
// UNSAT outcomes enter the cache; UNKNOWN and malformed input never do.
type LogicEngine struct {
	solver *solver.Solver
	cache  *cache.Cache
	log    *slog.Logger
}

// NewLogicEngine builds the engine. cache may be nil to disable caching.
func NewLogicEngine(s *solver.Solver, c *cache.Cache, log *slog.Logger) *LogicEngine {
	if s == nil {
		s = &solver.Solver{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &LogicEngine{solver: s, cache: c, log: log}
}

func (e *LogicEngine) Name() string { return "logic_dsl" }

// Applicable: any task that carries a DSL expression.
func (e *LogicEngine) Applicable(task verdict.Task) bool {
	return task.DSL != ""
}

func (e *LogicEngine) Attempt(ctx context.Context, task verdict.Task) verdict.EngineResult {
	start := time.Now()
	fail := func(code, msg string) verdict.EngineResult {
		return verdict.EngineResult{
			EngineName: e.Name(),
			Method:     "exact_solver",
			Success:    false,
			Error:      code + ": " + msg,
			LatencyMS:  time.Since(start).Milliseconds(),
		}
	}

	key := ""
	if e.cache != nil {
		var err error
		key, err = cache.Key(task.DSL, task.Variables)
		if err == nil {
			if hit, ok := e.cache.Get(key); ok {
				hit.LatencyMS = time.Since(start).Milliseconds()
				hit.Method = "exact_solver_cached"
				return hit
			}
		}
	}

	node, err := dsl.ParseAndValidate(task.DSL)
	if err != nil {
		var blocked *dsl.BlockedError
		if errors.As(err, &blocked) {
			return fail(verdict.CodeBlocked, blocked.Error())
		}
		return fail(verdict.CodeParseError, err.Error())
	}

	syms := solver.NewSymbolTable(task.Variables)
	compiled, err := solver.Compile(node, syms)
	if err != nil {
		return fail(verdict.CodeCompileError, err.Error())
	}

	// The expensive step runs outside any cache lock.
	out := e.solver.Solve(ctx, compiled, syms)
	res := verdict.EngineResult{
		EngineName: e.Name(),
		Method:     "exact_solver",
		Result:     string(out.Status),
		LatencyMS:  time.Since(start).Milliseconds(),
	}
	switch out.Status {
	case solver.StatusSat, solver.StatusUnsat:
		res.Success = true
		res.Confidence = 0.98
	default:
		// UNKNOWN is honest indecision: not an answer to agree on.
		res.Success = false
		code := verdict.CodeEngineFailure
		if strings.Contains(out.Reason, "timeout") {
			code = verdict.CodeSolverTimeout
		}
		res.Error = code + ": " + out.Reason
	}

	if e.cache != nil && key != "" {
		e.cache.Put(key, res)
	}
	return res
}
