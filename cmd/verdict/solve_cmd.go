package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Mindburn-Labs/verdict/core/pkg/dsl"
	"github.com/Mindburn-Labs/verdict/core/pkg/solver"
)

// varFlags collects repeated -var name:Type declarations.
type varFlags []solver.VariableDecl

func (v *varFlags) String() string { return fmt.Sprintf("%v", []solver.VariableDecl(*v)) }

func (v *varFlags) Set(s string) error {
	name, typeName, ok := strings.Cut(s, ":")
	if !ok || name == "" {
		return fmt.Errorf("expected name:Type, got %q", s)
	}
	t, err := solver.ParseType(typeName)
	if err != nil {
		return err
	}
	*v = append(*v, solver.VariableDecl{Name: name, Type: t})
	return nil
}

// runSolveCmd solves one constraint expression from the command line.
func runSolveCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	expr := fs.String("dsl", "", "constraint expression, e.g. '(AND (GT x 5) (LT x 10))'")
	timeout := fs.Duration("timeout", solver.DefaultTimeout, "solver time bound")
	asJSON := fs.Bool("json", false, "emit JSON")
	var vars varFlags
	fs.Var(&vars, "var", "variable declaration name:Type (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *expr == "" {
		fmt.Fprintln(stderr, "solve: -dsl is required")
		fs.Usage()
		return 2
	}

	root, err := dsl.ParseAndValidate(*expr)
	if err != nil {
		var blocked *dsl.BlockedError
		if errors.As(err, &blocked) {
			fmt.Fprintf(stderr, "blocked: %v\n", err)
			return 3
		}
		fmt.Fprintf(stderr, "parse error: %v\n", err)
		return 2
	}

	syms := solver.NewSymbolTable(vars)
	compiled, err := solver.Compile(root, syms)
	if err != nil {
		fmt.Fprintf(stderr, "compile error: %v\n", err)
		return 2
	}

	slv := &solver.Solver{Timeout: *timeout}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout+time.Second)
	defer cancel()
	outcome := slv.Solve(ctx, compiled, syms)

	if *asJSON {
		doc := map[string]any{"status": outcome.Status}
		if outcome.Reason != "" {
			doc["reason"] = outcome.Reason
		}
		if outcome.Status == solver.StatusSat {
			model := make(map[string]string, len(outcome.Model))
			for name, v := range outcome.Model {
				model[name] = v.String()
			}
			doc["model"] = model
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(doc)
	} else {
		fmt.Fprintln(stdout, outcome.Status)
		if outcome.Reason != "" {
			fmt.Fprintf(stdout, "  reason: %s\n", outcome.Reason)
		}
		if outcome.Status == solver.StatusSat {
			for _, name := range syms.Names() {
				if v, ok := outcome.Model[name]; ok {
					fmt.Fprintf(stdout, "  %s = %s\n", name, v)
				}
			}
		}
	}

	if outcome.Status == solver.StatusUnknown {
		return 1
	}
	return 0
}
