// Package checks implements the diagnostic check registry and the individual
// checks executed against an analysis target.
package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/visibleai/siteaudit/internal/analysis"
)

// Check is a single, isolated diagnostic probe. A check may perform network
// reads through the probe but must not mutate pipeline state other than
// through its returned result.
type Check interface {
	// Name is the stable identifier persisted with every result.
	Name() string
	// Category is the scoring dimension the result belongs to.
	Category() analysis.Category
	// Run produces the result. A returned error is converted by RunOne into
	// a fail result; it never aborts the stage.
	Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error)
}

// RunOne executes a check with failure isolation: panics and errors are
// converted into a fail result with the error recorded in details, so one
// broken check can never take down a stage.
func RunOne(ctx context.Context, c Check, probe *Probe) (result analysis.CheckResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = failResult(c, fmt.Sprintf("check panicked: %v", rec))
		}
	}()
	res, err := c.Run(ctx, probe)
	if err != nil {
		return failResult(c, err.Error())
	}
	res.CheckName = c.Name()
	res.Category = c.Category()
	if res.Score < 0 {
		res.Score = 0
	}
	if res.Score > 100 {
		res.Score = 100
	}
	return res
}

func failResult(c Check, msg string) analysis.CheckResult {
	return analysis.CheckResult{
		CheckName:       c.Name(),
		Category:        c.Category(),
		Status:          analysis.CheckStatusFail,
		Score:           0,
		Impact:          analysis.ImpactMedium,
		FixDifficulty:   analysis.FixMedium,
		Recommendation:  fmt.Sprintf("Unable to run the %s check", strings.ReplaceAll(c.Name(), "_", " ")),
		Details:         map[string]any{"error": msg},
		FixTimeEstimate: "30 minutes",
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

var interrogativePrefixes = []string{"how", "what", "why", "when", "where", "who"}

// isInterrogative reports whether a heading reads as a question.
func isInterrogative(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, prefix := range interrogativePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
