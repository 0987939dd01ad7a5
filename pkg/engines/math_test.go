package engines

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

func newMathEngine(t *testing.T) *MathEngine {
	t.Helper()
	e, err := NewMathEngine(nil)
	require.NoError(t, err)
	return e
}

func TestMathEngine_AgreeingDerivations(t *testing.T) {
	e := newMathEngine(t)
	tests := []struct {
		expr string
		want string
	}{
		{expr: "2 + 3 * 4", want: "14"},
		{expr: "(2 + 3) * 4", want: "20"},
		{expr: "100 - 42", want: "58"},
		{expr: "(1.5 + 2.5) * 2.0", want: "8"},
		{expr: "-3 + 5", want: "2"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			res := e.Attempt(context.Background(), verdict.Task{Query: tt.expr})
			require.True(t, res.Success, "error: %s", res.Error)
			assert.Equal(t, tt.want, res.Result)
			assert.Equal(t, 0.95, res.Confidence)
		})
	}
}

func TestMathEngine_CrossCheckDowngradesDisagreement(t *testing.T) {
	e := newMathEngine(t)
	// CEL computes integer division (10/4 == 2); the exact re-derivation
	// gives 5/2. The disagreement must downgrade to failure regardless
	// of either path's own confidence.
	res := e.Attempt(context.Background(), verdict.Task{Query: "10 / 4"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "disagreement")
}

func TestMathEngine_RejectsNonDeterministicConstructs(t *testing.T) {
	e := newMathEngine(t)
	res := e.Attempt(context.Background(), verdict.Task{
		Context: map[string]string{"expression": "now()"},
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "non-deterministic")
}

func TestMathEngine_RejectsFreeIdentifiers(t *testing.T) {
	e := newMathEngine(t)
	res := e.Attempt(context.Background(), verdict.Task{
		Context: map[string]string{"expression": "x + 1"},
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "identifier")
}

func TestMathEngine_Applicability(t *testing.T) {
	e := newMathEngine(t)
	assert.True(t, e.Applicable(verdict.Task{Query: "2 + 2"}))
	assert.True(t, e.Applicable(verdict.Task{Context: map[string]string{"expression": "1+1"}}))
	assert.False(t, e.Applicable(verdict.Task{Query: "is the sky blue"}))
	assert.False(t, e.Applicable(verdict.Task{}))
}

func TestEvalInfix(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{expr: "1 + 2 * 3", want: "7"},
		{expr: "(1 + 2) * 3", want: "9"},
		{expr: "7 / 2", want: "7/2"},
		{expr: "-(2 + 3)", want: "-5"},
		{expr: "0.1 + 0.2", want: "3/10"},
	}
	for _, tt := range tests {
		v, err := evalInfix(tt.expr)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, v.RatString(), tt.expr)
	}

	for _, bad := range []string{"", "1 +", "(1", "1 / 0", "abc"} {
		_, err := evalInfix(bad)
		assert.Error(t, err, "expression %q must fail", bad)
	}
}
