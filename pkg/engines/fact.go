package engines

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

// Fact verdicts. NOT_ENOUGH_INFO is a successful, honest answer with
// low confidence — it must never be coerced to supported or refuted.
const (
	FactSupported     = "SUPPORTED"
	FactRefuted       = "REFUTED"
	FactNotEnoughInfo = "NOT_ENOUGH_INFO"
)

// FactStore resolves an entity's attribute to its known value.
type FactStore interface {
	Lookup(ctx context.Context, entity, attribute string) (string, bool, error)
}

// YAMLFactStore serves facts from a YAML document of the shape
//
//	entity:
//	  attribute: value
//
// Lookups are case-insensitive on both keys.
type YAMLFactStore struct {
	facts map[string]map[string]string
}

// NewYAMLFactStore parses a fact document.
func NewYAMLFactStore(doc []byte) (*YAMLFactStore, error) {
	raw := make(map[string]map[string]string)
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("fact store: %w", err)
	}
	facts := make(map[string]map[string]string, len(raw))
	for entity, attrs := range raw {
		m := make(map[string]string, len(attrs))
		for k, v := range attrs {
			m[strings.ToLower(k)] = v
		}
		facts[strings.ToLower(entity)] = m
	}
	return &YAMLFactStore{facts: facts}, nil
}

// LoadYAMLFactStore reads the fact document at path.
func LoadYAMLFactStore(path string) (*YAMLFactStore, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fact store: %w", err)
	}
	return NewYAMLFactStore(doc)
}

func (s *YAMLFactStore) Lookup(_ context.Context, entity, attribute string) (string, bool, error) {
	attrs, ok := s.facts[strings.ToLower(strings.TrimSpace(entity))]
	if !ok {
		return "", false, nil
	}
	v, ok := attrs[strings.ToLower(strings.TrimSpace(attribute))]
	return v, ok, nil
}

// claimPattern matches "the <attribute> of <entity> is <claim>".
var claimPattern = regexp.MustCompile(`(?i)the\s+([\w ]+?)\s+of\s+([\w .-]+?)\s+is\s+([\w .-]+)`)

// FactEngine checks entity-attribute claims against a fact store.
type FactEngine struct {
	store FactStore
}

// NewFactEngine builds the engine over a store.
func NewFactEngine(store FactStore) *FactEngine {
	return &FactEngine{store: store}
}

func (e *FactEngine) Name() string { return "fact_lookup" }

// Applicable: the task states an entity-attribute claim, either
// structured in Context or phrased in the query.
func (e *FactEngine) Applicable(task verdict.Task) bool {
	if e.store == nil {
		return false
	}
	entity, attribute, claim := extractClaim(task)
	return entity != "" && attribute != "" && claim != ""
}

func extractClaim(task verdict.Task) (entity, attribute, claim string) {
	if task.Context != nil {
		entity = task.Context["entity"]
		attribute = task.Context["attribute"]
		claim = task.Context["claim"]
		if entity != "" && attribute != "" && claim != "" {
			return entity, attribute, claim
		}
	}
	m := claimPattern.FindStringSubmatch(task.Query)
	if m == nil {
		return "", "", ""
	}
	return m[2], m[1], m[3]
}

func (e *FactEngine) Attempt(ctx context.Context, task verdict.Task) verdict.EngineResult {
	start := time.Now()
	done := func(result string, confidence float64) verdict.EngineResult {
		return verdict.EngineResult{
			EngineName: e.Name(),
			Method:     "fact_store",
			Result:     result,
			Confidence: confidence,
			Success:    true,
			LatencyMS:  time.Since(start).Milliseconds(),
		}
	}

	entity, attribute, claim := extractClaim(task)
	if entity == "" {
		return verdict.EngineResult{
			EngineName: e.Name(),
			Method:     "fact_store",
			Success:    false,
			Error:      "no entity-attribute claim in task",
			LatencyMS:  time.Since(start).Milliseconds(),
		}
	}

	known, found, err := e.store.Lookup(ctx, entity, attribute)
	if err != nil {
		return verdict.EngineResult{
			EngineName: e.Name(),
			Method:     "fact_store",
			Success:    false,
			Error:      "fact store lookup: " + err.Error(),
			LatencyMS:  time.Since(start).Milliseconds(),
		}
	}
	if !found {
		return done(FactNotEnoughInfo, 0.2)
	}
	if strings.EqualFold(strings.TrimSpace(known), strings.TrimSpace(claim)) {
		return done(FactSupported, 0.95)
	}
	return done(FactRefuted, 0.95)
}
