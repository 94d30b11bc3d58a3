// Package score aggregates check results into the weighted overall score.
package score

import (
	"math"

	"github.com/visibleai/siteaudit/internal/analysis"
)

// Category weights, version 1. The overall score is part of the public API
// contract; changing any weight is a breaking change and requires a version
// bump here and in release notes.
const (
	weightAIReadiness = 0.40
	weightContent     = 0.35
	weightStructure   = 0.15
	weightTechnical   = 0.10
)

// CategoryOrder fixes the reporting order, heaviest weight first.
var CategoryOrder = []analysis.Category{
	analysis.CategoryAIReadiness,
	analysis.CategoryContent,
	analysis.CategoryStructure,
	analysis.CategoryTechnical,
}

func weightOf(c analysis.Category) float64 {
	switch c {
	case analysis.CategoryAIReadiness:
		return weightAIReadiness
	case analysis.CategoryContent:
		return weightContent
	case analysis.CategoryStructure:
		return weightStructure
	default:
		return weightTechnical
	}
}

// CategoryScore is one row of the score breakdown.
type CategoryScore struct {
	Category     analysis.Category `json:"category"`
	Mean         float64           `json:"mean"`
	Weight       float64           `json:"weight"`
	Contribution float64           `json:"contribution"`
}

// categoryMean averages the scores for one category. An empty category does
// not penalize the overall score, so it defaults to a full mean.
func categoryMean(results []analysis.CheckResult, c analysis.Category) float64 {
	sum, n := 0, 0
	for _, r := range results {
		if r.Category != c {
			continue
		}
		sum += r.Score
		n++
	}
	if n == 0 {
		return 100
	}
	return float64(sum) / float64(n)
}

// Overall computes the weighted overall score, truncated to an integer.
func Overall(results []analysis.CheckResult) int {
	total := 0.0
	for _, c := range CategoryOrder {
		total += categoryMean(results, c) * weightOf(c)
	}
	return int(math.Floor(total))
}

// Breakdown reports each category's mean and its weighted contribution.
func Breakdown(results []analysis.CheckResult) []CategoryScore {
	out := make([]CategoryScore, 0, len(CategoryOrder))
	for _, c := range CategoryOrder {
		mean := categoryMean(results, c)
		w := weightOf(c)
		out = append(out, CategoryScore{
			Category:     c,
			Mean:         mean,
			Weight:       w,
			Contribution: mean * w,
		})
	}
	return out
}
