// Package aiengine produces per-engine compatibility sub-scores for the AI
// stage of an analysis run.
package aiengine

import (
	"context"

	"github.com/visibleai/siteaudit/internal/analysis"
)

// Scorer rates how well a target is positioned for each AI answer engine.
// The returned map is keyed by the analysis.Engine* constants with values in
// 0..100.
type Scorer interface {
	Score(ctx context.Context, target analysis.Target) (map[string]int, error)
}

// StaticScorer returns a fixed baseline score per engine. It is the default
// scorer when no model-backed provider is configured.
type StaticScorer struct{}

// NewStaticScorer constructs the baseline scorer.
func NewStaticScorer() StaticScorer { return StaticScorer{} }

// Score returns the baseline engine scores regardless of target.
func (StaticScorer) Score(_ context.Context, _ analysis.Target) (map[string]int, error) {
	return map[string]int{
		analysis.EngineChatGPT:    75,
		analysis.EnginePerplexity: 80,
		analysis.EngineClaude:     70,
		analysis.EngineGoogleAI:   85,
		analysis.EngineBingChat:   78,
	}, nil
}
