package engines

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Mindburn-Labs/verdict/core/pkg/analysis"
	"github.com/Mindburn-Labs/verdict/core/pkg/sandbox"
	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

// CodeEngine verifies claims by running a caller-supplied WASM program
// under the capability sandbox. The static analyzer gates every run:
// critical findings veto execution before the program is instantiated.
type CodeEngine struct {
	analyzer *analysis.Analyzer
	sandbox  *sandbox.Sandbox
	log      *slog.Logger
}

// NewCodeEngine builds the engine with its own analyzer and sandbox.
func NewCodeEngine(ctx context.Context, cfg sandbox.Config, log *slog.Logger) *CodeEngine {
	if log == nil {
		log = slog.Default()
	}
	return &CodeEngine{
		analyzer: analysis.NewAnalyzer(ctx),
		sandbox:  sandbox.New(ctx, cfg),
		log:      log,
	}
}

func (e *CodeEngine) Name() string { return "code_sandbox" }

func (e *CodeEngine) Applicable(task verdict.Task) bool {
	return len(task.Code) > 0
}

func (e *CodeEngine) Attempt(ctx context.Context, task verdict.Task) verdict.EngineResult {
	start := time.Now()
	fail := func(msg string) verdict.EngineResult {
		return verdict.EngineResult{
			EngineName: e.Name(),
			Method:     "wasm_sandbox",
			Success:    false,
			Error:      msg,
			LatencyMS:  time.Since(start).Milliseconds(),
		}
	}

	report, err := e.analyzer.Analyze(ctx, task.Code)
	if err != nil {
		return fail("static analysis: " + err.Error())
	}
	if report.Blocked() {
		caps := make([]string, 0, len(report.Findings))
		for _, f := range report.Findings {
			if f.Severity == analysis.SeverityCritical {
				caps = append(caps, f.Capability)
			}
		}
		return fail(verdict.CodeBlocked + ": static analysis rejected capabilities: " + strings.Join(caps, ", "))
	}
	for _, f := range report.Findings {
		if f.Severity == analysis.SeverityWarning {
			e.log.WarnContext(ctx, "sandboxed program requests tolerated capability", "capability", f.Capability)
		}
	}

	out, err := e.sandbox.Run(ctx, task.Code, task.Input)
	if err != nil {
		return fail(err.Error())
	}
	return verdict.EngineResult{
		EngineName: e.Name(),
		Method:     "wasm_sandbox",
		Result:     strings.TrimSpace(string(out)),
		Confidence: 0.9,
		Success:    true,
		LatencyMS:  time.Since(start).Milliseconds(),
	}
}

// Close releases the analyzer and sandbox runtimes.
func (e *CodeEngine) Close(ctx context.Context) error {
	if err := e.analyzer.Close(ctx); err != nil {
		return err
	}
	return e.sandbox.Close()
}
