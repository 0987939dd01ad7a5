package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_HelpCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"verdict", "help"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "USAGE")
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"verdict", "frobnicate"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Unknown command")
}

func TestSolveCmd_Sat(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runSolveCmd(
		[]string{"-dsl", "(AND (GT x 5) (LT x 10))", "-var", "x:Int"},
		&stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "SAT")
	assert.Contains(t, stdout.String(), "x =")
}

func TestSolveCmd_UnsatJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runSolveCmd(
		[]string{"-dsl", "(AND (GT x 10) (LT x 5))", "-var", "x:Int", "-json"},
		&stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), `"UNSAT"`)
}

func TestSolveCmd_BlockedOperator(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runSolveCmd([]string{"-dsl", "(SHELL x)"}, &stdout, &stderr)
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr.String(), "blocked")
}

func TestSolveCmd_MissingDSL(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runSolveCmd(nil, &stdout, &stderr)
	assert.Equal(t, 2, code)
}

func TestSolveCmd_BadVarDecl(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runSolveCmd([]string{"-dsl", "(GT x 5)", "-var", "x=Int"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.True(t, strings.Contains(stderr.String(), "name:Type") ||
		strings.Contains(stderr.String(), "invalid value"))
}
