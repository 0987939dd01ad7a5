// Package verdict orchestrates independent verification engines into a
// single confidence-scored, auditable answer.
//
// Each engine attempts the task in isolation and reports one immutable
// EngineResult; the aggregator classifies how the successful results
// relate and blends a confidence score. The full chain of attempts,
// failures included, travels with the final verdict.
package verdict

import "time"

// Mode is the requested verification depth.
type Mode string

const (
	// ModeSingle runs exactly one general-purpose engine.
	ModeSingle Mode = "single"
	// ModeHigh runs two independent engines.
	ModeHigh Mode = "high"
	// ModeMaximum runs every engine whose applicability predicate
	// matches the task.
	ModeMaximum Mode = "maximum"
)

// ParseMode validates a wire-format mode string. Unknown modes are
// rejected before any engine runs.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingle, ModeHigh, ModeMaximum:
		return Mode(s), nil
	}
	return "", NewError(CodeInvalidMode, "unknown verification mode %q", s)
}

// AgreementStatus classifies how the successful engine outputs relate.
type AgreementStatus string

const (
	AgreementUnanimous AgreementStatus = "unanimous"
	AgreementMajority  AgreementStatus = "majority"
	AgreementSplit     AgreementStatus = "split"
	AgreementSingle    AgreementStatus = "single"
	AgreementNoResults AgreementStatus = "no_results"
	AgreementAllFailed AgreementStatus = "all_failed"
)

// EngineResult is one engine's attempt. It is created once per
// invocation, appended to the verification chain, and never mutated.
type EngineResult struct {
	EngineName string  `json:"engine"`
	Method     string  `json:"method"`
	Result     string  `json:"result"`
	Confidence float64 `json:"confidence"`
	LatencyMS  int64   `json:"latency_ms"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
}

// ConsensusResult is the aggregated verdict for one request. Confidence
// is always in [0,1] and len(VerificationChain) == len(EnginesUsed).
type ConsensusResult struct {
	FinalAnswer       string          `json:"final_answer"`
	Confidence        float64         `json:"confidence"`
	EnginesUsed       []string        `json:"engines_used"`
	AgreementStatus   AgreementStatus `json:"agreement_status"`
	VerificationChain []EngineResult  `json:"verification_chain"`
	TotalLatencyMS    int64           `json:"total_latency_ms"`
	Timestamp         time.Time       `json:"timestamp"`
}
