package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/visibleai/siteaudit/internal/analysis"
	"github.com/visibleai/siteaudit/internal/progress"
	"github.com/visibleai/siteaudit/internal/score"
)

const (
	enqueueTimeout  = 5 * time.Second
	previewIssueCap = 3
)

type submitRequest struct {
	URL string `json:"url"`
}

// submitAnalysis handles POST /v1/analyses. Each submission creates a fresh
// run; duplicate URLs are allowed and analyzed independently.
func (s *Server) submitAnalysis(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	target, err := analysis.NewTarget(req.URL)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	runID, err := s.idGen.NewID()
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, "failed to allocate run id")
		return
	}
	now := s.clock.Now()
	run := analysis.Run{
		ID:        runID,
		TargetURL: target.URL,
		Status:    analysis.RunStatusPending,
		Progress:  0,
		StartedAt: now,
	}
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		s.logger.Error("create run failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "failed to create run")
		return
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), enqueueTimeout)
	defer cancel()
	item := analysis.QueueItem{
		RunID:     runID,
		TargetURL: target.URL,
		Attempt:   1,
		Submitted: now.Unix(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		s.logger.Error("enqueue run failed", zap.String("run_id", runID.String()), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		writeError(s.logger, w, status, "failed to schedule analysis")
		return
	}

	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{
		"run_id": runID.String(),
		"status": string(run.Status),
	})
}

// getAnalysis handles GET /v1/analyses/{run_id}: the run, its results, and
// the category score breakdown.
func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, analysis.ErrNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "analysis not found")
			return
		}
		s.logger.Error("get run failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load analysis")
		return
	}
	results, err := s.store.ListResults(r.Context(), runID)
	if err != nil && !errors.Is(err, analysis.ErrNotFound) {
		s.logger.Error("list results failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load results")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"run":       run,
		"results":   results,
		"breakdown": score.Breakdown(results),
	})
}

type previewIssue struct {
	CheckName       string               `json:"check_name"`
	Category        analysis.Category    `json:"category"`
	Status          analysis.CheckStatus `json:"status"`
	Impact          analysis.Impact      `json:"impact_level"`
	Recommendation  string               `json:"recommendation,omitempty"`
	FixTimeEstimate string               `json:"fix_time_estimate,omitempty"`
}

// getPreview handles GET /v1/analyses/{run_id}/preview: the three most
// impactful outstanding issues, available even while the run is in flight.
func (s *Server) getPreview(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, analysis.ErrNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "analysis not found")
			return
		}
		s.logger.Error("get run failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load analysis")
		return
	}
	results, err := s.store.ListResults(r.Context(), runID)
	if err != nil && !errors.Is(err, analysis.ErrNotFound) {
		s.logger.Error("list results failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load results")
		return
	}

	issues := make([]analysis.CheckResult, 0, len(results))
	for _, res := range results {
		if res.Status != analysis.CheckStatusPass {
			issues = append(issues, res)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Impact.Rank() != issues[j].Impact.Rank() {
			return issues[i].Impact.Rank() < issues[j].Impact.Rank()
		}
		return issues[i].Score < issues[j].Score
	})
	if len(issues) > previewIssueCap {
		issues = issues[:previewIssueCap]
	}
	top := make([]previewIssue, 0, len(issues))
	for _, res := range issues {
		top = append(top, previewIssue{
			CheckName:       res.CheckName,
			Category:        res.Category,
			Status:          res.Status,
			Impact:          res.Impact,
			Recommendation:  res.Recommendation,
			FixTimeEstimate: res.FixTimeEstimate,
		})
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"run_id":             run.ID.String(),
		"status":             run.Status,
		"progress":           run.Progress,
		"total_issues_found": analysis.CountIssues(results),
		"top_issues":         top,
	})
}

// sse event names used on the wire.
const (
	eventProgress = "progress"
	eventComplete = "complete"
	eventFailed   = "failed"
	eventError    = "error"
)

// streamEvents handles GET /v1/analyses/{run_id}/events as Server-Sent
// Events: an initial snapshot of current state, every subsequent change, and
// exactly one terminal event before the stream ends.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(s.logger, w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Subscribe before the snapshot read so no transition between the two is
	// lost; duplicates are filtered below.
	ch, cancel := s.publisher.Subscribe(runID)
	defer cancel()

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, analysis.ErrNotFound) {
			s.writeSSE(w, eventError, map[string]string{"error": "analysis not found"})
			flusher.Flush()
			return
		}
		s.logger.Error("get run failed", zap.Error(err))
		s.writeSSE(w, eventError, map[string]string{"error": "failed to load analysis"})
		flusher.Flush()
		return
	}
	results, err := s.store.ListResults(r.Context(), runID)
	if err != nil && !errors.Is(err, analysis.ErrNotFound) {
		results = nil
	}

	snap := progress.FromRun(run, results, s.clock.Now())
	s.writeSSE(w, eventNameFor(snap), snap)
	flusher.Flush()
	if snap.Terminal() {
		return
	}

	lastProgress, lastStatus := snap.Progress, snap.Status
	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if snap.Progress == lastProgress && snap.Status == lastStatus {
				continue
			}
			lastProgress, lastStatus = snap.Progress, snap.Status
			s.writeSSE(w, eventNameFor(snap), snap)
			flusher.Flush()
			if snap.Terminal() {
				return
			}
		}
	}
}

func eventNameFor(snap progress.Snapshot) string {
	switch snap.Status {
	case analysis.RunStatusComplete:
		return eventComplete
	case analysis.RunStatusFailed:
		return eventFailed
	default:
		return eventProgress
	}
}

func (s *Server) writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encode SSE payload failed", zap.Error(err))
		return
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		s.logger.Debug("SSE write failed", zap.Error(err))
	}
}
