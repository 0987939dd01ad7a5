package verdict

import (
	"math/big"
	"strings"
	"time"
)

// Weights are the confidence-blending parameters. They are observed
// heuristics carried for behavioral parity, exposed as configuration
// rather than hard-coded as validated constants.
type Weights struct {
	Agreement       float64 `yaml:"agreement" json:"agreement"`
	MeanConfidence  float64 `yaml:"mean_confidence" json:"mean_confidence"`
	MajorityPenalty float64 `yaml:"majority_penalty" json:"majority_penalty"`
	Cap             float64 `yaml:"cap" json:"cap"`
	Split           float64 `yaml:"split" json:"split"`
	// FullAgreementEngines is the engine count treated as full
	// cross-engine agreement.
	FullAgreementEngines int `yaml:"full_agreement_engines" json:"full_agreement_engines"`
}

// DefaultWeights returns the stock blending parameters.
func DefaultWeights() Weights {
	return Weights{
		Agreement:            0.6,
		MeanConfidence:       0.4,
		MajorityPenalty:      0.8,
		Cap:                  0.999,
		Split:                0.5,
		FullAgreementEngines: 3,
	}
}

// Aggregate folds a verification chain into one ConsensusResult. The
// fold is commutative over success grouping but answer tie-breaking is
// first-seen, so the chain keeps engine invocation order.
func Aggregate(chain []EngineResult, w Weights) ConsensusResult {
	res := ConsensusResult{
		VerificationChain: chain,
		EnginesUsed:       make([]string, 0, len(chain)),
		Timestamp:         time.Now().UTC(),
	}
	for _, r := range chain {
		res.EnginesUsed = append(res.EnginesUsed, r.EngineName)
		res.TotalLatencyMS += r.LatencyMS
	}

	var successes []EngineResult
	for _, r := range chain {
		if r.Success {
			successes = append(successes, r)
		}
	}

	switch {
	case len(chain) == 0:
		res.AgreementStatus = AgreementNoResults
		return res
	case len(successes) == 0:
		res.AgreementStatus = AgreementAllFailed
		return res
	case len(successes) == 1:
		res.AgreementStatus = AgreementSingle
		res.FinalAnswer = successes[0].Result
		res.Confidence = clamp01(successes[0].Confidence)
		return res
	}

	// Group by normalized value, first-seen order.
	type group struct {
		answer string // raw answer of the first member
		count  int
	}
	var order []string
	groups := make(map[string]*group)
	meanConf := 0.0
	for _, r := range successes {
		key := normalizeResult(r.Result)
		g, ok := groups[key]
		if !ok {
			g = &group{answer: r.Result}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
		meanConf += clamp01(r.Confidence)
	}
	meanConf /= float64(len(successes))

	top := groups[order[0]]
	for _, key := range order[1:] {
		if groups[key].count > top.count {
			top = groups[key]
		}
	}
	res.FinalAnswer = top.answer

	agreement := float64(len(successes)) / float64(w.FullAgreementEngines)
	if agreement > 1 {
		agreement = 1
	}
	blended := w.Agreement*agreement + w.MeanConfidence*meanConf

	switch {
	case top.count == len(successes):
		res.AgreementStatus = AgreementUnanimous
		res.Confidence = capAt(blended, w.Cap)
	case top.count*2 > len(successes):
		res.AgreementStatus = AgreementMajority
		res.Confidence = capAt(blended*w.MajorityPenalty, w.Cap)
	default:
		// No strict majority, exact ties included.
		res.AgreementStatus = AgreementSplit
		res.Confidence = w.Split
	}
	return res
}

// normalizeResult canonicalizes an engine answer for comparison, so
// "4.0", " 4" and "8/2" count as the same value.
func normalizeResult(s string) string {
	trimmed := strings.TrimSpace(s)
	if r, ok := new(big.Rat).SetString(trimmed); ok {
		return r.RatString()
	}
	return strings.ToLower(trimmed)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func capAt(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return clamp01(v)
}
