package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Mindburn-Labs/verdict/core/pkg/cache"
	"github.com/Mindburn-Labs/verdict/core/pkg/dsl"
	"github.com/Mindburn-Labs/verdict/core/pkg/solver"
	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

const maxRequestBytes = 8 << 20 // generous: WASM payloads arrive base64-encoded

// Server exposes the verification core over HTTP.
type Server struct {
	verifier *verdict.Verifier
	solver   *solver.Solver
	cache    *cache.Cache
	log      *slog.Logger
}

// NewServer builds the HTTP surface. cache may be nil when result
// caching is disabled.
func NewServer(verifier *verdict.Verifier, slv *solver.Solver, c *cache.Cache, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{verifier: verifier, solver: slv, cache: c, log: log}
}

// Routes registers all endpoints on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/verify/consensus", s.HandleConsensus)
	mux.HandleFunc("/verify/logic", s.HandleLogic)
	mux.HandleFunc("/cache/stats", s.HandleCacheStats)
	mux.HandleFunc("/healthz", s.HandleHealth)
	return mux
}

// consensusRequest is the wire form of POST /verify/consensus.
// Confidence values cross the API boundary on a 0-100 scale.
type consensusRequest struct {
	Query         string            `json:"query"`
	Mode          string            `json:"mode"`
	MinConfidence float64           `json:"min_confidence"`
	DSL           string            `json:"dsl"`
	Variables     []wireDecl        `json:"variables"`
	Data          []float64         `json:"data"`
	Context       map[string]string `json:"context"`
	Code          string            `json:"code"` // base64 WASM
}

type wireDecl struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type consensusResponse struct {
	FinalAnswer       string                  `json:"final_answer"`
	Confidence        float64                 `json:"confidence"` // 0-100
	MeetsRequirement  bool                    `json:"meets_requirement"`
	AgreementStatus   verdict.AgreementStatus `json:"agreement_status"`
	EnginesUsed       []string                `json:"engines_used"`
	VerificationChain []wireEngineResult      `json:"verification_chain"`
	TotalLatencyMS    int64                   `json:"total_latency_ms"`
	Timestamp         time.Time               `json:"timestamp"`
	RequestID         string                  `json:"request_id,omitempty"`
}

type wireEngineResult struct {
	EngineName string  `json:"engine"`
	Method     string  `json:"method"`
	Result     string  `json:"result"`
	Confidence float64 `json:"confidence"` // 0-100
	LatencyMS  int64   `json:"latency_ms"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
}

// HandleConsensus runs the multi-engine consensus pipeline.
func (s *Server) HandleConsensus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}

	var req consensusRequest
	if !decodeValidated(w, r, compiledConsensusSchema, &req) {
		return
	}

	mode := verdict.ModeSingle
	if req.Mode != "" {
		mode = verdict.Mode(req.Mode)
	}

	task, ok := s.buildTask(w, req)
	if !ok {
		return
	}

	res, err := s.verifier.Verify(r.Context(), task, mode, req.MinConfidence/100)
	if err != nil {
		switch verdict.CodeOf(err) {
		case verdict.CodeInvalidMode:
			WriteCodedError(w, http.StatusBadRequest, "Bad Request", err.Error(), verdict.CodeInvalidMode)
			return
		case verdict.CodeGatewayBlocked, verdict.CodeBlocked:
			WriteCodedError(w, http.StatusForbidden, "Forbidden", err.Error(), verdict.CodeOf(err))
			return
		case verdict.CodeBelowThreshold:
			// An answer was computed; rejecting it is policy. Return the
			// full result so the caller can inspect what fell short.
			s.writeConsensus(w, r, http.StatusUnprocessableEntity, res, false)
			return
		case verdict.CodeNoConsensus:
			// Every engine failed. The chain carries the per-engine errors,
			// so return it rather than an opaque problem document.
			s.writeConsensus(w, r, http.StatusBadGateway, res, false)
			return
		default:
			WriteInternal(w, err)
			return
		}
	}

	meets := req.MinConfidence <= 0 || res.Confidence*100 >= req.MinConfidence
	s.writeConsensus(w, r, http.StatusOK, res, meets)
}

func (s *Server) buildTask(w http.ResponseWriter, req consensusRequest) (verdict.Task, bool) {
	task := verdict.Task{
		Query:   req.Query,
		DSL:     req.DSL,
		Data:    req.Data,
		Context: req.Context,
	}
	for _, d := range req.Variables {
		// The schema already constrained the type name.
		t, err := solver.ParseType(d.Type)
		if err != nil {
			WriteBadRequest(w, err.Error())
			return verdict.Task{}, false
		}
		task.Variables = append(task.Variables, solver.VariableDecl{Name: d.Name, Type: t})
	}
	if req.Code != "" {
		code, err := base64.StdEncoding.DecodeString(req.Code)
		if err != nil {
			WriteBadRequest(w, "code must be valid base64")
			return verdict.Task{}, false
		}
		task.Code = code
	}
	return task, true
}

func (s *Server) writeConsensus(w http.ResponseWriter, r *http.Request, status int, res *verdict.ConsensusResult, meets bool) {
	chain := make([]wireEngineResult, len(res.VerificationChain))
	for i, er := range res.VerificationChain {
		chain[i] = wireEngineResult{
			EngineName: er.EngineName,
			Method:     er.Method,
			Result:     er.Result,
			Confidence: roundPct(er.Confidence),
			LatencyMS:  er.LatencyMS,
			Success:    er.Success,
			Error:      er.Error,
		}
	}
	resp := consensusResponse{
		FinalAnswer:       res.FinalAnswer,
		Confidence:        roundPct(res.Confidence),
		MeetsRequirement:  meets,
		AgreementStatus:   res.AgreementStatus,
		EnginesUsed:       res.EnginesUsed,
		VerificationChain: chain,
		TotalLatencyMS:    res.TotalLatencyMS,
		Timestamp:         res.Timestamp,
		RequestID:         GetRequestID(r.Context()),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// roundPct converts a unit-interval confidence to a percentage with two
// decimal places.
func roundPct(v float64) float64 {
	return math.Round(v*10000) / 100
}

// logicRequest is the wire form of POST /verify/logic: the direct
// solver path, no consensus machinery.
type logicRequest struct {
	DSL       string     `json:"dsl"`
	Variables []wireDecl `json:"variables"`
}

type logicResponse struct {
	Status    solver.Status     `json:"status"`
	Model     map[string]string `json:"model,omitempty"`
	Reason    string            `json:"reason,omitempty"` // UNKNOWN only
	LatencyMS int64             `json:"latency_ms"`
	RequestID string            `json:"request_id,omitempty"`
}

// HandleLogic parses, compiles and solves a constraint expression.
func (s *Server) HandleLogic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}

	var req logicRequest
	if !decodeValidated(w, r, compiledLogicSchema, &req) {
		return
	}

	decls := make([]solver.VariableDecl, 0, len(req.Variables))
	for _, d := range req.Variables {
		t, err := solver.ParseType(d.Type)
		if err != nil {
			WriteBadRequest(w, err.Error())
			return
		}
		decls = append(decls, solver.VariableDecl{Name: d.Name, Type: t})
	}

	start := time.Now()
	root, err := dsl.ParseAndValidate(req.DSL)
	if err != nil {
		var blocked *dsl.BlockedError
		if errors.As(err, &blocked) {
			WriteCodedError(w, http.StatusForbidden, "Forbidden", err.Error(), verdict.CodeBlocked)
			return
		}
		WriteCodedError(w, http.StatusBadRequest, "Bad Request", err.Error(), verdict.CodeParseError)
		return
	}

	syms := solver.NewSymbolTable(decls)
	expr, err := solver.Compile(root, syms)
	if err != nil {
		WriteCodedError(w, http.StatusBadRequest, "Bad Request", err.Error(), verdict.CodeCompileError)
		return
	}

	outcome := s.solver.Solve(r.Context(), expr, syms)

	resp := logicResponse{
		Status:    outcome.Status,
		Reason:    outcome.Reason,
		LatencyMS: time.Since(start).Milliseconds(),
		RequestID: GetRequestID(r.Context()),
	}
	if outcome.Status == solver.StatusSat {
		resp.Model = make(map[string]string, len(outcome.Model))
		for name, v := range outcome.Model {
			resp.Model[name] = v.String()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleCacheStats reports result-cache counters.
func (s *Server) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	var stats cache.Stats
	if s.cache != nil {
		stats = s.cache.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// HandleHealth is the liveness probe.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "verdict-core",
	})
}

// decodeValidated reads the body, validates it against the schema, then
// decodes into dst. Any failure writes the error response and returns
// false.
func decodeValidated(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		WriteBadRequest(w, "unable to read request body")
		return false
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		WriteCodedError(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", verdict.CodeInvalidRequest)
		return false
	}
	if err := schema.Validate(doc); err != nil {
		WriteCodedError(w, http.StatusBadRequest, "Bad Request", err.Error(), verdict.CodeInvalidRequest)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		WriteCodedError(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", verdict.CodeInvalidRequest)
		return false
	}
	return true
}
