package engines

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

const factDoc = `
france:
  capital: Paris
  currency: Euro
japan:
  capital: Tokyo
`

func newFactEngine(t *testing.T) *FactEngine {
	t.Helper()
	store, err := NewYAMLFactStore([]byte(factDoc))
	require.NoError(t, err)
	return NewFactEngine(store)
}

func TestFactEngine_Supported(t *testing.T) {
	e := newFactEngine(t)
	res := e.Attempt(context.Background(), verdict.Task{Query: "the capital of France is Paris"})
	require.True(t, res.Success)
	assert.Equal(t, FactSupported, res.Result)
	assert.Equal(t, 0.95, res.Confidence)
}

func TestFactEngine_Refuted(t *testing.T) {
	e := newFactEngine(t)
	res := e.Attempt(context.Background(), verdict.Task{Query: "the capital of France is Lyon"})
	require.True(t, res.Success)
	assert.Equal(t, FactRefuted, res.Result)
}

func TestFactEngine_NotEnoughInfo(t *testing.T) {
	e := newFactEngine(t)

	res := e.Attempt(context.Background(), verdict.Task{Query: "the population of France is 68000000"})
	require.True(t, res.Success)
	assert.Equal(t, FactNotEnoughInfo, res.Result)
	assert.Less(t, res.Confidence, 0.5, "an honest non-answer carries low confidence")

	res = e.Attempt(context.Background(), verdict.Task{Query: "the capital of Atlantis is Poseidonis"})
	require.True(t, res.Success)
	assert.Equal(t, FactNotEnoughInfo, res.Result)
}

func TestFactEngine_StructuredClaimWins(t *testing.T) {
	e := newFactEngine(t)
	res := e.Attempt(context.Background(), verdict.Task{
		Query: "does japan use the euro",
		Context: map[string]string{
			"entity":    "Japan",
			"attribute": "capital",
			"claim":     "tokyo",
		},
	})
	require.True(t, res.Success)
	assert.Equal(t, FactSupported, res.Result, "claim comparison is case-insensitive")
}

func TestFactEngine_Applicability(t *testing.T) {
	e := newFactEngine(t)
	assert.True(t, e.Applicable(verdict.Task{Query: "the capital of France is Paris"}))
	assert.False(t, e.Applicable(verdict.Task{Query: "2 + 2"}))
	assert.False(t, NewFactEngine(nil).Applicable(verdict.Task{Query: "the capital of France is Paris"}))
}
