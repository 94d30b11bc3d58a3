// Package postgres provides Postgres-backed persistence for analysis runs.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visibleai/siteaudit/internal/analysis"
)

// Pool is the pgxpool surface the store depends on. pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RunStore implements analysis.RunStore using a pgx connection pool.
type RunStore struct {
	pool Pool
}

// New connects a pool and returns the store plus its close function.
func New(ctx context.Context, dsn string) (*RunStore, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &RunStore{pool: pool}, pool.Close, nil
}

// NewWithPool wraps an existing pool, used by tests.
func NewWithPool(pool Pool) *RunStore {
	return &RunStore{pool: pool}
}

// CreateRun inserts a new pending run.
func (s *RunStore) CreateRun(ctx context.Context, run analysis.Run) error {
	query := `
		INSERT INTO analysis_runs (id, url, status, progress, started_at)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := s.pool.Exec(ctx, query, run.ID, run.TargetURL, run.Status, run.Progress, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun loads a run by ID.
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (analysis.Run, error) {
	query := `
		SELECT id, url, status, progress, overall_score, started_at,
		       completed_at, error_message, total_checks_run, total_issues_found,
		       chatgpt_score, perplexity_score, claude_score, google_ai_score, bing_chat_score
		FROM analysis_runs WHERE id = $1;
	`
	var (
		run      analysis.Run
		errMsg   *string
		checks   *int
		issues   *int
	)
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.ID, &run.TargetURL, &run.Status, &run.Progress, &run.OverallScore,
		&run.StartedAt, &run.CompletedAt, &errMsg, &checks, &issues,
		&run.Engines.ChatGPT, &run.Engines.Perplexity, &run.Engines.Claude,
		&run.Engines.GoogleAI, &run.Engines.BingChat,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return analysis.Run{}, analysis.ErrNotFound
		}
		return analysis.Run{}, fmt.Errorf("failed to load run: %w", err)
	}
	if errMsg != nil {
		run.ErrorMessage = *errMsg
	}
	if checks != nil {
		run.TotalChecksRun = *checks
	}
	if issues != nil {
		run.TotalIssuesFound = *issues
	}
	return run, nil
}

// StartRun transitions pending to analyzing. The status predicate makes the
// update idempotent under executor retries; a terminal run matches no row
// and is reported as ErrTerminalRun.
func (s *RunStore) StartRun(ctx context.Context, runID uuid.UUID, at time.Time) error {
	query := `
		UPDATE analysis_runs SET status = $1, started_at = $2
		WHERE id = $3 AND status = $4;
	`
	tag, err := s.pool.Exec(ctx, query, analysis.RunStatusAnalyzing, at, runID, analysis.RunStatusPending)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return analysis.ErrTerminalRun
	}
	return nil
}

// UpdateProgress raises progress monotonically while the run is analyzing.
func (s *RunStore) UpdateProgress(ctx context.Context, runID uuid.UUID, progress int) error {
	query := `
		UPDATE analysis_runs SET progress = GREATEST(progress, $1)
		WHERE id = $2 AND status = $3;
	`
	_, err := s.pool.Exec(ctx, query, progress, runID, analysis.RunStatusAnalyzing)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// CompleteRun applies the terminal complete transition in a single statement.
func (s *RunStore) CompleteRun(ctx context.Context, runID uuid.UUID, completion analysis.RunCompletion) error {
	query := `
		UPDATE analysis_runs
		SET status = $1, progress = 100, overall_score = $2, completed_at = $3,
		    error_message = NULL, total_checks_run = $4, total_issues_found = $5,
		    chatgpt_score = $6, perplexity_score = $7, claude_score = $8,
		    google_ai_score = $9, bing_chat_score = $10
		WHERE id = $11 AND status NOT IN ($12, $13);
	`
	tag, err := s.pool.Exec(ctx, query,
		analysis.RunStatusComplete, completion.Score, completion.At,
		completion.TotalChecks, completion.TotalIssues,
		completion.Engines.ChatGPT, completion.Engines.Perplexity,
		completion.Engines.Claude, completion.Engines.GoogleAI, completion.Engines.BingChat,
		runID, analysis.RunStatusComplete, analysis.RunStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return analysis.ErrTerminalRun
	}
	return nil
}

// FailRun applies the terminal failed transition.
func (s *RunStore) FailRun(ctx context.Context, runID uuid.UUID, at time.Time, errText string) error {
	query := `
		UPDATE analysis_runs
		SET status = $1, completed_at = $2, error_message = $3
		WHERE id = $4 AND status NOT IN ($5, $6);
	`
	tag, err := s.pool.Exec(ctx, query,
		analysis.RunStatusFailed, at, errText,
		runID, analysis.RunStatusComplete, analysis.RunStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return analysis.ErrTerminalRun
	}
	return nil
}

// UpsertResults writes a stage's results in one transaction, keyed by
// (run_id, check_name) so a re-run stage overwrites its earlier rows.
func (s *RunStore) UpsertResults(ctx context.Context, runID uuid.UUID, results []analysis.CheckResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin results tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO check_results
			(run_id, check_name, category, status, score, impact_level,
			 fix_difficulty, recommendation, fix_time_estimate, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, check_name) DO UPDATE
		SET category = EXCLUDED.category,
		    status = EXCLUDED.status,
		    score = EXCLUDED.score,
		    impact_level = EXCLUDED.impact_level,
		    fix_difficulty = EXCLUDED.fix_difficulty,
		    recommendation = EXCLUDED.recommendation,
		    fix_time_estimate = EXCLUDED.fix_time_estimate,
		    details = EXCLUDED.details,
		    created_at = EXCLUDED.created_at;
	`
	for _, r := range results {
		var details []byte
		if r.Details != nil {
			details, err = json.Marshal(r.Details)
			if err != nil {
				return fmt.Errorf("failed to encode details for %s: %w", r.CheckName, err)
			}
		}
		if _, err := tx.Exec(ctx, query,
			runID, r.CheckName, r.Category, r.Status, r.Score, r.Impact,
			r.FixDifficulty, r.Recommendation, r.FixTimeEstimate, details, r.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert result %s: %w", r.CheckName, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit results tx: %w", err)
	}
	return nil
}

// ListResults returns all results for a run in insertion order.
func (s *RunStore) ListResults(ctx context.Context, runID uuid.UUID) ([]analysis.CheckResult, error) {
	query := `
		SELECT run_id, check_name, category, status, score, impact_level,
		       fix_difficulty, recommendation, fix_time_estimate, details, created_at
		FROM check_results WHERE run_id = $1 ORDER BY seq;
	`
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var out []analysis.CheckResult
	for rows.Next() {
		var (
			r       analysis.CheckResult
			rec     *string
			fixTime *string
			details []byte
		)
		if err := rows.Scan(
			&r.RunID, &r.CheckName, &r.Category, &r.Status, &r.Score, &r.Impact,
			&r.FixDifficulty, &rec, &fixTime, &details, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		if rec != nil {
			r.Recommendation = *rec
		}
		if fixTime != nil {
			r.FixTimeEstimate = *fixTime
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &r.Details); err != nil {
				return nil, fmt.Errorf("failed to decode details for %s: %w", r.CheckName, err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate result rows: %w", err)
	}
	return out, nil
}
