// Package memory provides an in-memory run store for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visibleai/siteaudit/internal/analysis"
)

type runRecord struct {
	run     analysis.Run
	results map[string]analysis.CheckResult
	// order preserves first-insert order of check names for ListResults.
	order []string
}

// RunStore implements analysis.RunStore with mutex-guarded maps.
type RunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*runRecord
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[uuid.UUID]*runRecord)}
}

// CreateRun stores a new run.
func (s *RunStore) CreateRun(_ context.Context, run analysis.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return errors.New("run already exists")
	}
	s.runs[run.ID] = &runRecord{
		run:     run,
		results: make(map[string]analysis.CheckResult),
	}
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID uuid.UUID) (analysis.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return analysis.Run{}, analysis.ErrNotFound
	}
	return rec.run, nil
}

// StartRun moves a pending run to analyzing. A run already analyzing is left
// untouched; a terminal run rejects the transition.
func (s *RunStore) StartRun(_ context.Context, runID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[runID]
	if !ok {
		return analysis.ErrNotFound
	}
	switch rec.run.Status {
	case analysis.RunStatusAnalyzing:
		return nil
	case analysis.RunStatusPending:
		rec.run.Status = analysis.RunStatusAnalyzing
		rec.run.StartedAt = at
		return nil
	default:
		return analysis.ErrTerminalRun
	}
}

// UpdateProgress raises progress; lower values are ignored.
func (s *RunStore) UpdateProgress(_ context.Context, runID uuid.UUID, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[runID]
	if !ok {
		return analysis.ErrNotFound
	}
	if rec.run.Status.Terminal() {
		return analysis.ErrTerminalRun
	}
	if progress > rec.run.Progress {
		rec.run.Progress = progress
	}
	return nil
}

// CompleteRun applies the terminal complete transition.
func (s *RunStore) CompleteRun(_ context.Context, runID uuid.UUID, completion analysis.RunCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[runID]
	if !ok {
		return analysis.ErrNotFound
	}
	if rec.run.Status.Terminal() {
		return analysis.ErrTerminalRun
	}
	score := completion.Score
	at := completion.At
	rec.run.Status = analysis.RunStatusComplete
	rec.run.Progress = 100
	rec.run.OverallScore = &score
	rec.run.CompletedAt = &at
	rec.run.TotalChecksRun = completion.TotalChecks
	rec.run.TotalIssuesFound = completion.TotalIssues
	rec.run.Engines = completion.Engines
	rec.run.ErrorMessage = ""
	return nil
}

// FailRun applies the terminal failed transition.
func (s *RunStore) FailRun(_ context.Context, runID uuid.UUID, at time.Time, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[runID]
	if !ok {
		return analysis.ErrNotFound
	}
	if rec.run.Status.Terminal() {
		return analysis.ErrTerminalRun
	}
	failedAt := at
	rec.run.Status = analysis.RunStatusFailed
	rec.run.CompletedAt = &failedAt
	rec.run.ErrorMessage = errText
	return nil
}

// UpsertResults writes results keyed by check name, so retried stages
// overwrite rather than duplicate.
func (s *RunStore) UpsertResults(_ context.Context, runID uuid.UUID, results []analysis.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[runID]
	if !ok {
		return analysis.ErrNotFound
	}
	for _, r := range results {
		if _, seen := rec.results[r.CheckName]; !seen {
			rec.order = append(rec.order, r.CheckName)
		}
		rec.results[r.CheckName] = r
	}
	return nil
}

// ListResults returns all results for a run in first-insert order.
func (s *RunStore) ListResults(_ context.Context, runID uuid.UUID) ([]analysis.CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, analysis.ErrNotFound
	}
	out := make([]analysis.CheckResult, 0, len(rec.order))
	for _, name := range rec.order {
		out = append(out, rec.results[name])
	}
	return out, nil
}
