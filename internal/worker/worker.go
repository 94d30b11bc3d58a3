// Package worker implements the analysis execution loop.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/visibleai/siteaudit/internal/analysis"
	"github.com/visibleai/siteaudit/internal/pipeline"
	"github.com/visibleai/siteaudit/internal/progress"
)

// defaultAttemptBudget bounds the wall clock of one pipeline attempt.
const defaultAttemptBudget = 240 * time.Second

// Config controls Worker behavior.
type Config struct {
	// AttemptBudget is the per-attempt wall-clock limit.
	AttemptBudget time.Duration
}

// Worker consumes queue items and drives each run through the pipeline,
// retrying transient failures under the retry policy. Once retries are
// exhausted the run is deterministically marked failed.
type Worker struct {
	queue        analysis.Queue
	store        analysis.RunStore
	orchestrator *pipeline.Orchestrator
	publisher    *progress.Publisher
	retry        *analysis.ExponentialRetryPolicy
	clock        analysis.Clock
	cfg          Config
	logger       *zap.Logger
}

// New constructs a Worker.
func New(
	queue analysis.Queue,
	store analysis.RunStore,
	orchestrator *pipeline.Orchestrator,
	publisher *progress.Publisher,
	retry *analysis.ExponentialRetryPolicy,
	clock analysis.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.AttemptBudget <= 0 {
		cfg.AttemptBudget = defaultAttemptBudget
	}
	if retry == nil {
		retry = analysis.NewExponentialRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:        queue,
		store:        store,
		orchestrator: orchestrator,
		publisher:    publisher,
		retry:        retry,
		clock:        clock,
		cfg:          cfg,
		logger:       logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued run", zap.String("run_id", item.RunID.String()))
		w.processItem(ctx, item)
	}
}

func (w *Worker) processItem(ctx context.Context, item analysis.QueueItem) {
	var lastErr error
	attempt := item.Attempt
	if attempt < 1 {
		attempt = 1
	}
	for ; ; attempt++ {
		lastErr = w.attempt(ctx, item)
		if lastErr == nil {
			return
		}
		if !w.retry.ShouldRetry(lastErr, attempt) {
			break
		}
		backoff := w.retry.Backoff(attempt)
		w.logger.Warn("analysis attempt failed, retrying",
			zap.String("run_id", item.RunID.String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr))
		select {
		case <-ctx.Done():
			// Shutdown mid-run: leave the run non-terminal so a restart
			// resumes it from its last persisted stage.
			return
		case <-time.After(backoff):
		}
	}

	if ctx.Err() != nil {
		return
	}
	w.failRun(ctx, item, lastErr)
}

// attempt runs the pipeline once under the wall-clock budget.
func (w *Worker) attempt(ctx context.Context, item analysis.QueueItem) error {
	attemptCtx, cancel := context.WithTimeout(ctx, w.cfg.AttemptBudget)
	defer cancel()
	return w.orchestrator.Execute(attemptCtx, item.RunID, item.TargetURL)
}

// failRun applies the terminal failed transition after retries are spent.
func (w *Worker) failRun(ctx context.Context, item analysis.QueueItem, cause error) {
	errText := "analysis failed"
	if cause != nil {
		errText = cause.Error()
	}
	now := w.clock.Now()
	if err := w.store.FailRun(ctx, item.RunID, now, errText); err != nil {
		if errors.Is(err, analysis.ErrTerminalRun) {
			return
		}
		w.logger.Error("final run status update failed",
			zap.String("run_id", item.RunID.String()), zap.Error(err))
		return
	}
	w.logger.Error("analysis run failed permanently",
		zap.String("run_id", item.RunID.String()), zap.Error(cause))

	if w.publisher == nil {
		return
	}
	run, err := w.store.GetRun(ctx, item.RunID)
	if err != nil {
		run = analysis.Run{ID: item.RunID, Status: analysis.RunStatusFailed, ErrorMessage: errText}
	}
	w.publisher.Publish(ctx, progress.Snapshot{
		RunID:    item.RunID,
		Status:   analysis.RunStatusFailed,
		Progress: run.Progress,
		Error:    errText,
		At:       now,
	})
}
