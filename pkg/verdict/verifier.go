package verdict

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Screen is the pre-execution security check. A non-nil error rejects
// the request before any engine runs.
type Screen interface {
	Inspect(ctx context.Context, task Task) error
}

// Auditor receives exactly one record per completed request.
// Implementations must not block request completion on durable writes.
type Auditor interface {
	Record(ctx context.Context, rec AuditRecord)
}

// AuditRecord is the per-request audit payload.
type AuditRecord struct {
	TaskDigest string    `json:"task_digest"`
	Query      string    `json:"query"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence"`
	Engines    []string  `json:"engines"`
	Timestamp  time.Time `json:"timestamp"`
}

// Digester derives the stable digest recorded for a task.
type Digester func(task Task) string

// Verifier coordinates screening, routing, concurrent engine execution,
// aggregation and the confidence policy gate for one request at a time.
// It holds no per-request state and is safe for concurrent use.
type Verifier struct {
	router      *Router
	screen      Screen
	auditor     Auditor
	digest      Digester
	weights     Weights
	reliability map[string]float64
	log         *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithScreen installs the pre-execution security check.
func WithScreen(s Screen) Option { return func(v *Verifier) { v.screen = s } }

// WithAuditor installs the audit sink.
func WithAuditor(a Auditor) Option { return func(v *Verifier) { v.auditor = a } }

// WithDigester overrides the task digest derivation.
func WithDigester(d Digester) Option { return func(v *Verifier) { v.digest = d } }

// WithWeights overrides the confidence-blending parameters.
func WithWeights(w Weights) Option { return func(v *Verifier) { v.weights = w } }

// WithReliability installs per-engine reliability scores in (0,1].
// A successful engine's reported confidence is scaled by its score
// before aggregation; engines without a score keep theirs unscaled.
func WithReliability(scores map[string]float64) Option {
	return func(v *Verifier) { v.reliability = scores }
}

// WithLogger installs a structured logger.
func WithLogger(l *slog.Logger) Option { return func(v *Verifier) { v.log = l } }

// NewVerifier builds a Verifier over the given engine router.
func NewVerifier(router *Router, opts ...Option) *Verifier {
	v := &Verifier{
		router:  router,
		weights: DefaultWeights(),
		digest:  func(Task) string { return "" },
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs the full consensus pipeline.
//
// minConfidence is a post-aggregation policy gate: when the computed
// confidence falls short, the aggregated result is still returned
// alongside a CONFIDENCE_BELOW_THRESHOLD error, because an answer was
// computed — rejecting it is policy, not fault.
func (v *Verifier) Verify(ctx context.Context, task Task, mode Mode, minConfidence float64) (*ConsensusResult, error) {
	start := time.Now()

	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	// 1. Security screening, before any engine or cache touch.
	if v.screen != nil {
		if err := v.screen.Inspect(ctx, task); err != nil {
			v.log.WarnContext(ctx, "request blocked by security screen", "error", err)
			v.record(ctx, task, "blocked", 0, nil)
			if CodeOf(err) != "" {
				return nil, err
			}
			return nil, NewError(CodeGatewayBlocked, "input rejected: %v", err)
		}
	}

	// 2. Route, then run the selected engines concurrently. The chain
	// keeps selection order regardless of completion order.
	engines := v.router.Select(task, mode)
	chain := make([]EngineResult, len(engines))
	var wg sync.WaitGroup
	for i, eng := range engines {
		wg.Add(1)
		go func(i int, eng Engine) {
			defer wg.Done()
			chain[i] = attemptSafely(ctx, eng, task)
		}(i, eng)
	}
	wg.Wait()

	for i := range chain {
		if score, ok := v.reliability[chain[i].EngineName]; ok && chain[i].Success && score > 0 && score <= 1 {
			chain[i].Confidence *= score
		}
	}

	// 3. Aggregate and stamp wall-clock latency for the whole request.
	res := Aggregate(chain, v.weights)
	res.TotalLatencyMS = time.Since(start).Milliseconds()

	v.log.InfoContext(ctx, "consensus complete",
		"mode", mode,
		"engines", len(chain),
		"status", res.AgreementStatus,
		"confidence", res.Confidence,
		"latency_ms", res.TotalLatencyMS,
	)
	v.record(ctx, task, string(res.AgreementStatus), res.Confidence, res.EnginesUsed)

	// 4. Policy gates, after aggregation. The result is attached to both
	// errors so callers can still inspect the chain.
	if res.AgreementStatus == AgreementAllFailed || res.AgreementStatus == AgreementNoResults {
		return &res, NewError(CodeNoConsensus,
			"no engine produced a usable answer (%s)", res.AgreementStatus)
	}
	if minConfidence > 0 && res.Confidence < minConfidence {
		return &res, NewError(CodeBelowThreshold,
			"computed confidence %.3f below required %.3f", res.Confidence, minConfidence)
	}
	return &res, nil
}

func (v *Verifier) record(ctx context.Context, task Task, status string, confidence float64, engines []string) {
	if v.auditor == nil {
		return
	}
	v.auditor.Record(ctx, AuditRecord{
		TaskDigest: v.digest(task),
		Query:      task.Query,
		Status:     status,
		Confidence: confidence,
		Engines:    engines,
		Timestamp:  time.Now().UTC(),
	})
}
