package checks

import (
	"context"
	"fmt"
	"sync"

	"github.com/visibleai/siteaudit/internal/aiengine"
	"github.com/visibleai/siteaudit/internal/analysis"
)

// engineScores memoizes one Scorer call shared by every engine check in a
// stage, so concurrent checks trigger a single scoring round trip.
type engineScores struct {
	scorer aiengine.Scorer

	once   sync.Once
	scores map[string]int
	err    error
}

func newEngineScores(scorer aiengine.Scorer) *engineScores {
	return &engineScores{scorer: scorer}
}

func (e *engineScores) get(ctx context.Context, target analysis.Target) (map[string]int, error) {
	e.once.Do(func() {
		e.scores, e.err = e.scorer.Score(ctx, target)
	})
	return e.scores, e.err
}

// EngineCheck reports the compatibility sub-score for one AI answer engine.
// The score is also lifted into the run's engine score fields during
// aggregation.
type EngineCheck struct {
	engine string
	label  string
	shared *engineScores
}

func (c EngineCheck) Name() string                { return c.engine + "_compatibility" }
func (c EngineCheck) Category() analysis.Category { return analysis.CategoryAIReadiness }

func (c EngineCheck) Run(ctx context.Context, probe *Probe) (analysis.CheckResult, error) {
	scores, err := c.shared.get(ctx, probe.Target())
	if err != nil {
		return analysis.CheckResult{}, fmt.Errorf("score engines: %w", err)
	}
	score, ok := scores[c.engine]
	if !ok {
		return analysis.CheckResult{}, fmt.Errorf("scorer returned no %s score", c.engine)
	}

	status := analysis.CheckStatusPass
	impact := analysis.ImpactLow
	recommendation := ""
	if score < 60 {
		status = analysis.CheckStatusWarn
		impact = analysis.ImpactMedium
		recommendation = fmt.Sprintf("Improve content for %s visibility", c.label)
	}
	return analysis.CheckResult{
		Status:        status,
		Score:         score,
		Impact:        impact,
		FixDifficulty: analysis.FixMedium,
		Recommendation: recommendation,
		Details: map[string]any{
			"engine":              c.engine,
			"compatibility_score": score,
		},
	}, nil
}

// engineChecks builds one check per engine, all sharing a memoized scorer
// call.
func engineChecks(scorer aiengine.Scorer) []Check {
	shared := newEngineScores(scorer)
	return []Check{
		EngineCheck{engine: analysis.EngineChatGPT, label: "ChatGPT", shared: shared},
		EngineCheck{engine: analysis.EnginePerplexity, label: "Perplexity", shared: shared},
		EngineCheck{engine: analysis.EngineClaude, label: "Claude", shared: shared},
		EngineCheck{engine: analysis.EngineGoogleAI, label: "Google AI", shared: shared},
		EngineCheck{engine: analysis.EngineBingChat, label: "Bing Chat", shared: shared},
	}
}
