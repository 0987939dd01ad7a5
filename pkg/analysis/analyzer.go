// Package analysis statically inspects WASM programs before the sandbox
// executes them. The module is compiled, never instantiated, and its
// import surface is checked against a WASI capability allowlist.
// Critical findings veto execution outright.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"
)

// Severity grades one finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Finding is one observed capability request.
type Finding struct {
	Severity   Severity `json:"severity"`
	Capability string   `json:"capability"`
	Detail     string   `json:"detail"`
}

// Report is the full analysis outcome for one module.
type Report struct {
	Findings []Finding `json:"findings"`
}

// Blocked reports whether the module must not run.
func (r Report) Blocked() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

const wasiModule = "wasi_snapshot_preview1"

// stdio and process-lifecycle imports the sandbox actually wires.
var allowedWASI = map[string]bool{
	"fd_write":            true,
	"fd_read":             true,
	"fd_close":            true,
	"fd_seek":             true,
	"fd_fdstat_get":       true,
	"args_get":            true,
	"args_sizes_get":      true,
	"proc_exit":           true,
	"sched_yield":         true,
	"fd_prestat_get":      true,
	"fd_prestat_dir_name": true,
}

// tolerated but noteworthy: the sandbox serves these with inert values.
var warnedWASI = map[string]bool{
	"environ_get":       true,
	"environ_sizes_get": true,
	"random_get":        true,
	"clock_time_get":    true,
	"clock_res_get":     true,
}

// Analyzer inspects compiled module import surfaces. It owns a wazero
// runtime used purely for compilation.
type Analyzer struct {
	runtime wazero.Runtime
}

// NewAnalyzer builds an analyzer with an interpreter-only runtime:
// analysis never needs JIT compilation speed and the interpreter keeps
// the attack surface smaller.
func NewAnalyzer(ctx context.Context) *Analyzer {
	return &Analyzer{
		runtime: wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter()),
	}
}

// Analyze compiles the module and grades every import it declares. A
// module that fails to compile is reported as an error, not a finding:
// it cannot run at all.
func (a *Analyzer) Analyze(ctx context.Context, wasm []byte) (Report, error) {
	compiled, err := a.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return Report{}, fmt.Errorf("analysis: module does not compile: %w", err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	var report Report
	for _, def := range compiled.ImportedFunctions() {
		mod, name, ok := def.Import()
		if !ok {
			continue
		}
		report.Findings = append(report.Findings, gradeImport(mod, name))
	}
	return report, nil
}

// Close releases the compilation runtime.
func (a *Analyzer) Close(ctx context.Context) error {
	return a.runtime.Close(ctx)
}

func gradeImport(mod, name string) Finding {
	capability := mod + "." + name
	if mod != wasiModule {
		return Finding{
			Severity:   SeverityCritical,
			Capability: capability,
			Detail:     "non-WASI host import; the sandbox provides no such function",
		}
	}
	switch {
	case allowedWASI[name]:
		return Finding{Severity: SeverityInfo, Capability: capability, Detail: "stdio/lifecycle capability"}
	case warnedWASI[name]:
		return Finding{Severity: SeverityWarning, Capability: capability, Detail: "served with inert values"}
	case strings.HasPrefix(name, "sock_"):
		return Finding{Severity: SeverityCritical, Capability: capability, Detail: "network capability requested"}
	case strings.HasPrefix(name, "path_"):
		return Finding{Severity: SeverityCritical, Capability: capability, Detail: "filesystem capability requested"}
	}
	return Finding{Severity: SeverityCritical, Capability: capability, Detail: "capability outside the sandbox allowlist"}
}
