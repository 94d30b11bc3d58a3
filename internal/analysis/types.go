// Package analysis defines the core types shared across the pipeline subsystems.
package analysis

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of an analysis run.
type RunStatus string

// Run status values persisted in the run store. Transitions are
// pending -> analyzing -> (complete | failed); terminal states are final.
const (
	RunStatusPending   RunStatus = "pending"
	RunStatusAnalyzing RunStatus = "analyzing"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// Category is a scoring dimension used for weighted aggregation.
type Category string

// The closed category vocabulary. Adding a check must not require a new
// category unless the dimension is genuinely novel.
const (
	CategoryTechnical   Category = "technical"
	CategoryStructure   Category = "structure"
	CategoryContent     Category = "content"
	CategoryAIReadiness Category = "ai_readiness"
)

// CheckStatus is the outcome classification of a single check.
type CheckStatus string

// Check outcome values.
const (
	CheckStatusPass CheckStatus = "pass"
	CheckStatusWarn CheckStatus = "warn"
	CheckStatusFail CheckStatus = "fail"
)

// Impact ranks how strongly an issue affects AI visibility.
type Impact string

// Impact levels, ordered most to least severe.
const (
	ImpactCritical Impact = "critical"
	ImpactHigh     Impact = "high"
	ImpactMedium   Impact = "medium"
	ImpactLow      Impact = "low"
)

// Rank returns a sort key; lower sorts first (critical before low).
func (i Impact) Rank() int {
	switch i {
	case ImpactCritical:
		return 0
	case ImpactHigh:
		return 1
	case ImpactMedium:
		return 2
	default:
		return 3
	}
}

// FixDifficulty estimates the effort to resolve an issue.
type FixDifficulty string

// Fix difficulty values.
const (
	FixEasy   FixDifficulty = "easy"
	FixMedium FixDifficulty = "medium"
	FixHard   FixDifficulty = "hard"
)

// EngineScores holds the per-engine compatibility sub-scores populated
// during the AI stage. Fields are nil until that stage has run.
type EngineScores struct {
	ChatGPT    *int `json:"chatgpt_score,omitempty"`
	Perplexity *int `json:"perplexity_score,omitempty"`
	Claude     *int `json:"claude_score,omitempty"`
	GoogleAI   *int `json:"google_ai_score,omitempty"`
	BingChat   *int `json:"bing_chat_score,omitempty"`
}

// Engine keys used in CheckResult details and config.
const (
	EngineChatGPT    = "chatgpt"
	EnginePerplexity = "perplexity"
	EngineClaude     = "claude"
	EngineGoogleAI   = "google_ai"
	EngineBingChat   = "bing_chat"
)

// Set assigns the sub-score for the named engine. Unknown keys are ignored.
func (e *EngineScores) Set(engine string, score int) {
	s := score
	switch engine {
	case EngineChatGPT:
		e.ChatGPT = &s
	case EnginePerplexity:
		e.Perplexity = &s
	case EngineClaude:
		e.Claude = &s
	case EngineGoogleAI:
		e.GoogleAI = &s
	case EngineBingChat:
		e.BingChat = &s
	}
}

// Run represents the metadata persisted for each submitted analysis.
type Run struct {
	ID               uuid.UUID    `json:"id"`
	TargetURL        string       `json:"url"`
	Status           RunStatus    `json:"status"`
	Progress         int          `json:"progress"`
	OverallScore     *int         `json:"overall_score"`
	StartedAt        time.Time    `json:"started_at"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	ErrorMessage     string       `json:"error_message,omitempty"`
	TotalChecksRun   int          `json:"total_checks_run"`
	TotalIssuesFound int          `json:"total_issues_found"`
	Engines          EngineScores `json:"engine_scores"`
}

// CheckResult is the normalized record produced by exactly one check
// execution. Results are append-only; retries upsert by (run, check name).
type CheckResult struct {
	RunID           uuid.UUID      `json:"run_id"`
	Category        Category       `json:"category"`
	CheckName       string         `json:"check_name"`
	Status          CheckStatus    `json:"status"`
	Score           int            `json:"score"`
	Impact          Impact         `json:"impact_level"`
	FixDifficulty   FixDifficulty  `json:"fix_difficulty"`
	Recommendation  string         `json:"recommendation,omitempty"`
	FixTimeEstimate string         `json:"fix_time_estimate,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// RunCompletion carries everything written in the single terminal update
// that moves a run to complete.
type RunCompletion struct {
	At          time.Time
	Score       int
	Engines     EngineScores
	TotalChecks int
	TotalIssues int
}

// QueueItem wraps a run ready for asynchronous execution.
type QueueItem struct {
	RunID     uuid.UUID
	TargetURL string
	Attempt   int
	Submitted int64
}

// CountIssues returns the number of results whose status is not pass.
func CountIssues(results []CheckResult) int {
	n := 0
	for _, r := range results {
		if r.Status != CheckStatusPass {
			n++
		}
	}
	return n
}

// CollectEngineScores extracts per-engine sub-scores from AI-stage results.
// A result participates when its details carry an "engine" key.
func CollectEngineScores(results []CheckResult) EngineScores {
	var engines EngineScores
	for _, r := range results {
		if r.Details == nil {
			continue
		}
		engine, ok := r.Details["engine"].(string)
		if !ok {
			continue
		}
		engines.Set(engine, r.Score)
	}
	return engines
}
