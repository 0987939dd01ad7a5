package engines

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

// aggregationVocabulary routes tabular tasks: a query mentioning one of
// these words, alongside a dataset, belongs to the stats engine.
var aggregationVocabulary = []string{
	"mean", "average", "median", "sum", "total",
	"min", "minimum", "max", "maximum", "count",
}

// StatsEngine answers aggregation questions over a caller-supplied
// numeric dataset. It is fully deterministic: same data, same answer.
type StatsEngine struct{}

// NewStatsEngine builds the engine.
func NewStatsEngine() *StatsEngine { return &StatsEngine{} }

func (e *StatsEngine) Name() string { return "stats_tabular" }

func (e *StatsEngine) Applicable(task verdict.Task) bool {
	if len(task.Data) == 0 {
		return false
	}
	return aggregationOf(task.Query) != ""
}

// aggregationOf returns the first aggregation keyword mentioned in the
// query, longest synonyms normalized to their canonical operation.
func aggregationOf(query string) string {
	q := strings.ToLower(query)
	for _, word := range aggregationVocabulary {
		if strings.Contains(q, word) {
			switch word {
			case "average":
				return "mean"
			case "total":
				return "sum"
			case "minimum":
				return "min"
			case "maximum":
				return "max"
			}
			return word
		}
	}
	return ""
}

func (e *StatsEngine) Attempt(ctx context.Context, task verdict.Task) verdict.EngineResult {
	start := time.Now()
	op := aggregationOf(task.Query)
	if op == "" || len(task.Data) == 0 {
		return verdict.EngineResult{
			EngineName: e.Name(),
			Method:     "tabular_aggregation",
			Success:    false,
			Error:      "no aggregation operation or empty dataset",
			LatencyMS:  time.Since(start).Milliseconds(),
		}
	}

	var value float64
	switch op {
	case "mean":
		value = sum(task.Data) / float64(len(task.Data))
	case "median":
		value = median(task.Data)
	case "sum":
		value = sum(task.Data)
	case "min":
		value = task.Data[0]
		for _, v := range task.Data[1:] {
			if v < value {
				value = v
			}
		}
	case "max":
		value = task.Data[0]
		for _, v := range task.Data[1:] {
			if v > value {
				value = v
			}
		}
	case "count":
		value = float64(len(task.Data))
	}

	return verdict.EngineResult{
		EngineName: e.Name(),
		Method:     "tabular_" + op,
		Result:     strconv.FormatFloat(value, 'f', -1, 64),
		Confidence: 0.99,
		Success:    true,
		LatencyMS:  time.Since(start).Milliseconds(),
	}
}

func sum(data []float64) float64 {
	total := 0.0
	for _, v := range data {
		total += v
	}
	return total
}

func median(data []float64) float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
