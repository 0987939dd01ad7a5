package verdict

import (
	"context"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/verdict/core/pkg/solver"
)

// Task is one verification request as the engines see it. Fields beyond
// Query are optional; each engine reads only what it understands.
type Task struct {
	// Query is the natural-language claim or question.
	Query string `json:"query"`
	// DSL is the constraint expression, when the caller provides one.
	DSL string `json:"dsl,omitempty"`
	// Variables declares symbol types for the DSL.
	Variables []solver.VariableDecl `json:"variables,omitempty"`
	// Code is a compiled WASM program to execute under the sandbox.
	Code []byte `json:"code,omitempty"`
	// Input is fed to sandboxed code on stdin.
	Input []byte `json:"input,omitempty"`
	// Data is a numeric dataset for tabular verification.
	Data []float64 `json:"data,omitempty"`
	// Context carries free-form auxiliary facts.
	Context map[string]string `json:"context,omitempty"`
}

// Engine is one independent verification strategy.
//
// Attempt must never panic and never return an error through a second
// channel: every failure is reported inside the EngineResult with
// Success=false and a non-empty Error. Engines honor ctx cancellation.
type Engine interface {
	// Name identifies the engine in verification chains and audit records.
	Name() string
	// Applicable reports whether this engine can meaningfully attempt the
	// task. Routing under maximum depth consults this predicate.
	Applicable(task Task) bool
	// Attempt runs the verification strategy to completion.
	Attempt(ctx context.Context, task Task) EngineResult
}

// attemptSafely invokes an engine with panic isolation and latency
// accounting. A panicking engine becomes a failed EngineResult; it never
// takes down the request or its sibling engines.
func attemptSafely(ctx context.Context, eng Engine, task Task) (res EngineResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = EngineResult{
				EngineName: eng.Name(),
				Method:     "panic",
				Success:    false,
				Error:      fmt.Sprintf("engine panic: %v", r),
				LatencyMS:  time.Since(start).Milliseconds(),
			}
		}
	}()

	res = eng.Attempt(ctx, task)
	if res.EngineName == "" {
		res.EngineName = eng.Name()
	}
	if res.LatencyMS == 0 {
		res.LatencyMS = time.Since(start).Milliseconds()
	}
	if !res.Success && res.Error == "" {
		res.Error = "engine reported failure without detail"
	}
	return res
}
