package solver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/verdict/core/pkg/dsl"
)

func compile(t *testing.T, src string, decls []VariableDecl) (*Expr, error) {
	t.Helper()
	node, err := dsl.ParseAndValidate(src)
	require.NoError(t, err)
	return Compile(node, NewSymbolTable(decls))
}

func TestCompile_TypeRules(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		decls   []VariableDecl
		wantErr string
	}{
		{
			name: "comparison over declared ints",
			src:  "(GT x y)",
			decls: []VariableDecl{
				{Name: "x", Type: TypeInt}, {Name: "y", Type: TypeInt},
			},
		},
		{
			name: "int variable against real literal",
			src:  "(GT x 1.5)",
			decls: []VariableDecl{
				{Name: "x", Type: TypeInt},
			},
		},
		{
			name: "int and real variables do not mix",
			src:  "(GT x r)",
			decls: []VariableDecl{
				{Name: "x", Type: TypeInt}, {Name: "r", Type: TypeReal},
			},
			wantErr: "not mutually comparable",
		},
		{
			name: "boolean against number",
			src:  "(EQ p 1)",
			decls: []VariableDecl{
				{Name: "p", Type: TypeBool},
			},
			wantErr: "not mutually comparable",
		},
		{
			name: "ordering undefined on booleans",
			src:  "(GT p q)",
			decls: []VariableDecl{
				{Name: "p", Type: TypeBool}, {Name: "q", Type: TypeBool},
			},
			wantErr: "not defined on booleans",
		},
		{
			name: "boolean equality allowed",
			src:  "(EQ p q)",
			decls: []VariableDecl{
				{Name: "p", Type: TypeBool}, {Name: "q", Type: TypeBool},
			},
		},
		{
			name: "logical operator over number",
			src:  "(AND x p)",
			decls: []VariableDecl{
				{Name: "x", Type: TypeInt}, {Name: "p", Type: TypeBool},
			},
			wantErr: "requires boolean operands",
		},
		{
			name: "arithmetic over boolean",
			src:  "(GT (PLUS p 1) 0)",
			decls: []VariableDecl{
				{Name: "p", Type: TypeBool},
			},
			wantErr: "requires numeric operands",
		},
		{
			name:    "non-boolean root",
			src:     "(PLUS x 1)",
			decls:   []VariableDecl{{Name: "x", Type: TypeInt}},
			wantErr: "must be boolean",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compile(t, tt.src, tt.decls)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cerr *CompileError
			require.True(t, errors.As(err, &cerr), "want *CompileError, got %T: %v", err, err)
			assert.Contains(t, cerr.Msg, tt.wantErr)
		})
	}
}

func TestCompile_DivisionIsReal(t *testing.T) {
	e, err := compile(t, "(LT (DIV x 2) 10)", []VariableDecl{{Name: "x", Type: TypeInt}})
	require.NoError(t, err)
	div := e.Args[0]
	assert.Equal(t, dsl.OpDiv, div.Op)
	assert.Equal(t, TypeReal, div.Type)
}

func TestSymbolTable_Defaults(t *testing.T) {
	syms := NewSymbolTable(nil)
	assert.Equal(t, TypeBool, syms.Resolve("is_valid"))
	assert.Equal(t, TypeBool, syms.Resolve("p"))
	assert.Equal(t, TypeBool, syms.Resolve("enabled"))
	assert.Equal(t, TypeInt, syms.Resolve("x"))
	assert.Equal(t, TypeInt, syms.Resolve("total_count"))

	declared := NewSymbolTable([]VariableDecl{{Name: "p", Type: TypeReal}})
	assert.Equal(t, TypeReal, declared.Resolve("p"), "declaration beats the heuristic")
}
