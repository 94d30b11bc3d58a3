// Package progress implements the event-driven progress stream for analysis
// runs: workers publish snapshots, API subscribers and metric sinks consume
// them.
package progress

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/visibleai/siteaudit/internal/analysis"
)

// maxPartialResults caps how many result summaries ride along with each
// snapshot.
const maxPartialResults = 10

// ResultSummary is the compact per-check view carried by snapshots.
type ResultSummary struct {
	CheckName string               `json:"check_name"`
	Category  analysis.Category    `json:"category"`
	Status    analysis.CheckStatus `json:"status"`
	Score     int                  `json:"score"`
}

// Snapshot is one observable point in a run's lifecycle.
type Snapshot struct {
	RunID          uuid.UUID          `json:"run_id"`
	Status         analysis.RunStatus `json:"status"`
	Progress       int                `json:"progress"`
	OverallScore   *int               `json:"overall_score,omitempty"`
	Error          string             `json:"error,omitempty"`
	PartialResults []ResultSummary    `json:"partial_results,omitempty"`
	At             time.Time          `json:"at"`
}

// Terminal reports whether this snapshot ends the stream for its run.
func (s Snapshot) Terminal() bool { return s.Status.Terminal() }

// Summarize converts full results into the capped snapshot form, most recent
// last.
func Summarize(results []analysis.CheckResult) []ResultSummary {
	if len(results) > maxPartialResults {
		results = results[len(results)-maxPartialResults:]
	}
	out := make([]ResultSummary, 0, len(results))
	for _, r := range results {
		out = append(out, ResultSummary{
			CheckName: r.CheckName,
			Category:  r.Category,
			Status:    r.Status,
			Score:     r.Score,
		})
	}
	return out
}

// FromRun builds a snapshot mirroring the persisted run state.
func FromRun(run analysis.Run, results []analysis.CheckResult, at time.Time) Snapshot {
	return Snapshot{
		RunID:          run.ID,
		Status:         run.Status,
		Progress:       run.Progress,
		OverallScore:   run.OverallScore,
		Error:          run.ErrorMessage,
		PartialResults: Summarize(results),
		At:             at,
	}
}

// Sink observes every published snapshot, independent of API subscribers.
type Sink interface {
	Consume(ctx context.Context, snap Snapshot) error
	Close(ctx context.Context) error
}
