package engines

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/verdict/core/pkg/cache"
	"github.com/Mindburn-Labs/verdict/core/pkg/solver"
	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

func TestLogicEngine_Sat(t *testing.T) {
	e := NewLogicEngine(nil, nil, nil)
	res := e.Attempt(context.Background(), verdict.Task{
		DSL:       "(AND (GT x 5) (LT x 10))",
		Variables: []solver.VariableDecl{{Name: "x", Type: solver.TypeInt}},
	})
	assert.True(t, res.Success)
	assert.Equal(t, "SAT", res.Result)
	assert.Equal(t, "logic_dsl", res.EngineName)
}

func TestLogicEngine_Unsat(t *testing.T) {
	e := NewLogicEngine(nil, nil, nil)
	res := e.Attempt(context.Background(), verdict.Task{
		DSL:       "(AND (GT x 10) (LT x 5))",
		Variables: []solver.VariableDecl{{Name: "x", Type: solver.TypeInt}},
	})
	assert.True(t, res.Success)
	assert.Equal(t, "UNSAT", res.Result)
}

func TestLogicEngine_BlockedConstruct(t *testing.T) {
	e := NewLogicEngine(nil, nil, nil)
	res := e.Attempt(context.Background(), verdict.Task{DSL: "(IMPORT os)"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, verdict.CodeBlocked)
	assert.Contains(t, res.Error, "IMPORT")
}

func TestLogicEngine_ParseError(t *testing.T) {
	e := NewLogicEngine(nil, nil, nil)
	res := e.Attempt(context.Background(), verdict.Task{DSL: "(AND p"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, verdict.CodeParseError)
}

func TestLogicEngine_CompileError(t *testing.T) {
	e := NewLogicEngine(nil, nil, nil)
	res := e.Attempt(context.Background(), verdict.Task{
		DSL:       "(GT p q)",
		Variables: []solver.VariableDecl{{Name: "p", Type: solver.TypeBool}, {Name: "q", Type: solver.TypeBool}},
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, verdict.CodeCompileError)
}

func TestLogicEngine_CacheRoundTrip(t *testing.T) {
	c := cache.New(10, time.Minute)
	e := NewLogicEngine(nil, c, nil)
	task := verdict.Task{
		DSL:       "(AND (GT x 5) (LT x 10))",
		Variables: []solver.VariableDecl{{Name: "x", Type: solver.TypeInt}},
	}

	first := e.Attempt(context.Background(), task)
	require.True(t, first.Success)
	assert.Equal(t, "exact_solver", first.Method)

	second := e.Attempt(context.Background(), task)
	require.True(t, second.Success)
	assert.Equal(t, "exact_solver_cached", second.Method)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestLogicEngine_UnknownNotCached(t *testing.T) {
	c := cache.New(10, time.Minute)
	e := NewLogicEngine(nil, c, nil)
	task := verdict.Task{
		DSL:       "(EQ (MULT x y) 6)",
		Variables: []solver.VariableDecl{{Name: "x", Type: solver.TypeInt}, {Name: "y", Type: solver.TypeInt}},
	}

	res := e.Attempt(context.Background(), task)
	assert.False(t, res.Success)
	assert.Equal(t, "UNKNOWN", res.Result)

	again := e.Attempt(context.Background(), task)
	assert.Equal(t, "exact_solver", again.Method, "indeterminate outcomes must not be served from cache")
	assert.Zero(t, c.Stats().Hits)
}

func TestLogicEngine_Applicability(t *testing.T) {
	e := NewLogicEngine(nil, nil, nil)
	assert.True(t, e.Applicable(verdict.Task{DSL: "(GT x 5)"}))
	assert.False(t, e.Applicable(verdict.Task{Query: "is 17 prime"}))
}
