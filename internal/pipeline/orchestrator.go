// Package pipeline drives a single analysis run through its ordered stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/visibleai/siteaudit/internal/analysis"
	"github.com/visibleai/siteaudit/internal/checks"
	"github.com/visibleai/siteaudit/internal/progress"
	"github.com/visibleai/siteaudit/internal/score"
)

// defaultCheckConcurrency bounds parallel checks within one stage.
const defaultCheckConcurrency = 4

// Orchestrator executes the staged check pipeline for one run at a time.
// Stage order is strict; checks inside a stage run concurrently. Store
// failures abort the run and surface to the executor for retry.
type Orchestrator struct {
	store       analysis.RunStore
	fetcher     analysis.Fetcher
	publisher   *progress.Publisher
	clock       analysis.Clock
	stages      []checks.Stage
	concurrency int
	logger      *zap.Logger
}

// New constructs an Orchestrator.
func New(
	store analysis.RunStore,
	fetcher analysis.Fetcher,
	publisher *progress.Publisher,
	clock analysis.Clock,
	stages []checks.Stage,
	concurrency int,
	logger *zap.Logger,
) *Orchestrator {
	if concurrency <= 0 {
		concurrency = defaultCheckConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:       store,
		fetcher:     fetcher,
		publisher:   publisher,
		clock:       clock,
		stages:      stages,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Execute runs the full pipeline for runID. Invoking it on a terminal run is
// a no-op. On retry, stages whose results are already persisted are skipped,
// so a run resumes from the first incomplete stage.
func (o *Orchestrator) Execute(ctx context.Context, runID uuid.UUID, targetURL string) error {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if run.Status.Terminal() {
		o.logger.Debug("skipping terminal run", zap.String("run_id", runID.String()))
		return nil
	}

	if err := o.store.StartRun(ctx, runID, o.clock.Now()); err != nil {
		if errors.Is(err, analysis.ErrTerminalRun) {
			return nil
		}
		return fmt.Errorf("start run: %w", err)
	}

	target, err := analysis.NewTarget(targetURL)
	if err != nil {
		return fmt.Errorf("parse target: %w", err)
	}
	probe := checks.NewProbe(o.fetcher, target)

	persisted, err := o.store.ListResults(ctx, runID)
	if err != nil {
		return fmt.Errorf("list persisted results: %w", err)
	}
	have := make(map[string]bool, len(persisted))
	for _, r := range persisted {
		have[r.CheckName] = true
	}

	o.publish(ctx, runID, analysis.RunStatusAnalyzing, run.Progress, nil, persisted)

	collected := persisted
	for _, stage := range o.stages {
		if stageComplete(stage, have) {
			o.logger.Debug("stage already persisted, skipping",
				zap.String("run_id", runID.String()), zap.String("stage", stage.Name))
			continue
		}

		if err := o.store.UpdateProgress(ctx, runID, stage.StartProgress); err != nil {
			return fmt.Errorf("advance progress to stage %s: %w", stage.Name, err)
		}
		o.publish(ctx, runID, analysis.RunStatusAnalyzing, stage.StartProgress, nil, collected)

		results := o.runStage(ctx, stage, probe)
		now := o.clock.Now()
		for i := range results {
			results[i].RunID = runID
			results[i].CreatedAt = now
		}
		if err := o.store.UpsertResults(ctx, runID, results); err != nil {
			return fmt.Errorf("persist stage %s results: %w", stage.Name, err)
		}
		collected = append(collected, results...)

		if err := o.store.UpdateProgress(ctx, runID, stage.Ceiling); err != nil {
			return fmt.Errorf("advance progress past stage %s: %w", stage.Name, err)
		}
		o.publish(ctx, runID, analysis.RunStatusAnalyzing, stage.Ceiling, nil, collected)
	}

	final, err := o.store.ListResults(ctx, runID)
	if err != nil {
		return fmt.Errorf("list final results: %w", err)
	}
	overall := score.Overall(final)
	completion := analysis.RunCompletion{
		At:          o.clock.Now(),
		Score:       overall,
		Engines:     analysis.CollectEngineScores(final),
		TotalChecks: len(final),
		TotalIssues: analysis.CountIssues(final),
	}
	if err := o.store.CompleteRun(ctx, runID, completion); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}

	o.publish(ctx, runID, analysis.RunStatusComplete, 100, &overall, final)
	o.logger.Info("analysis run complete",
		zap.String("run_id", runID.String()),
		zap.Int("overall_score", overall),
		zap.Int("checks", completion.TotalChecks),
		zap.Int("issues", completion.TotalIssues))
	return nil
}

// runStage executes the stage's checks with bounded concurrency. Check
// failures become fail results; they never abort the stage.
func (o *Orchestrator) runStage(ctx context.Context, stage checks.Stage, probe *checks.Probe) []analysis.CheckResult {
	results := make([]analysis.CheckResult, len(stage.Checks))
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup
	for i, c := range stage.Checks {
		wg.Add(1)
		go func(i int, c checks.Check) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = checks.RunOne(ctx, c, probe)
		}(i, c)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) publish(
	ctx context.Context,
	runID uuid.UUID,
	status analysis.RunStatus,
	prog int,
	overall *int,
	results []analysis.CheckResult,
) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(ctx, progress.Snapshot{
		RunID:          runID,
		Status:         status,
		Progress:       prog,
		OverallScore:   overall,
		PartialResults: progress.Summarize(results),
		At:             o.clock.Now(),
	})
}

func stageComplete(stage checks.Stage, have map[string]bool) bool {
	for _, c := range stage.Checks {
		if !have[c.Name()] {
			return false
		}
	}
	return true
}
