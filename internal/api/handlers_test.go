package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/visibleai/siteaudit/internal/analysis"
	"github.com/visibleai/siteaudit/internal/config"
	"github.com/visibleai/siteaudit/internal/dispatcher"
	idgen "github.com/visibleai/siteaudit/internal/id/uuid"
	"github.com/visibleai/siteaudit/internal/progress"
	queueMemory "github.com/visibleai/siteaudit/internal/queue/memory"
	memoryStorage "github.com/visibleai/siteaudit/internal/storage/memory"
)

type testHarness struct {
	server *Server
	store  *memoryStorage.RunStore
	queue  *queueMemory.Queue
	pub    *progress.Publisher
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	store := memoryStorage.NewRunStore()
	queue := queueMemory.NewQueue(8)
	pub := progress.NewPublisher(zap.NewNop())
	cfg := config.Config{}
	srv := NewServer(
		store,
		dispatcher.New(queue, nil),
		pub,
		idgen.New(),
		testClock{},
		cfg,
		zap.NewNop(),
	)
	return &testHarness{server: srv, store: store, queue: queue, pub: pub}
}

func (h *testHarness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSubmitAnalysis(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	body := strings.NewReader(`{"url": "https://example.com/pricing"}`)
	rec := h.do(httptest.NewRequest(http.MethodPost, "/v1/analyses", body))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "pending", resp["status"])

	runID, err := uuid.Parse(resp["run_id"])
	require.NoError(t, err)

	run, err := h.store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	require.Equal(t, analysis.RunStatusPending, run.Status)
	require.Equal(t, "https://example.com/pricing", run.TargetURL)

	item, err := h.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, runID, item.RunID)
	require.Equal(t, 1, item.Attempt)
}

func TestSubmitAnalysisDuplicateURLsGetDistinctRuns(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ids := make(map[string]bool)
	for i := 0; i < 2; i++ {
		body := strings.NewReader(`{"url": "https://example.com/"}`)
		rec := h.do(httptest.NewRequest(http.MethodPost, "/v1/analyses", body))
		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		ids[resp["run_id"]] = true
	}
	require.Len(t, ids, 2)
}

func TestSubmitAnalysisRejectsBadInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader("{not json")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(`{"url": "ftp://example.com"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(`{"url": ""}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAnalysis(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	run := seedRun(t, h.store)
	results := []analysis.CheckResult{
		{RunID: run.ID, CheckName: "llms_txt", Category: analysis.CategoryAIReadiness, Status: analysis.CheckStatusWarn, Score: 70},
	}
	require.NoError(t, h.store.UpsertResults(context.Background(), run.ID, results))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/v1/analyses/"+run.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Run       analysis.Run           `json:"run"`
		Results   []analysis.CheckResult `json:"results"`
		Breakdown []json.RawMessage      `json:"breakdown"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, run.ID, resp.Run.ID)
	require.Len(t, resp.Results, 1)
	require.Len(t, resp.Breakdown, 4)
}

func TestGetAnalysisNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/v1/analyses/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/v1/analyses/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewRanksByImpact(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	run := seedRun(t, h.store)
	results := []analysis.CheckResult{
		{RunID: run.ID, CheckName: "sitemap", Status: analysis.CheckStatusWarn, Score: 60, Impact: analysis.ImpactMedium},
		{RunID: run.ID, CheckName: "transport_security", Status: analysis.CheckStatusFail, Score: 0, Impact: analysis.ImpactCritical},
		{RunID: run.ID, CheckName: "meta_tags", Status: analysis.CheckStatusPass, Score: 100, Impact: analysis.ImpactLow},
		{RunID: run.ID, CheckName: "internal_linking", Status: analysis.CheckStatusFail, Score: 30, Impact: analysis.ImpactHigh},
		{RunID: run.ID, CheckName: "llms_txt", Status: analysis.CheckStatusWarn, Score: 70, Impact: analysis.ImpactMedium},
	}
	require.NoError(t, h.store.UpsertResults(context.Background(), run.ID, results))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/v1/analyses/"+run.ID.String()+"/preview", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TotalIssuesFound int            `json:"total_issues_found"`
		TopIssues        []previewIssue `json:"top_issues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 4, resp.TotalIssuesFound)
	require.Len(t, resp.TopIssues, 3)
	require.Equal(t, "transport_security", resp.TopIssues[0].CheckName)
	require.Equal(t, "internal_linking", resp.TopIssues[1].CheckName)
	// Passing checks never appear in the preview.
	for _, issue := range resp.TopIssues {
		require.NotEqual(t, "meta_tags", issue.CheckName)
	}
}

func TestStreamEventsTerminalRunEndsImmediately(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	run := seedRun(t, h.store)
	require.NoError(t, h.store.StartRun(context.Background(), run.ID, time.Now().UTC()))
	require.NoError(t, h.store.CompleteRun(context.Background(), run.ID, analysis.RunCompletion{
		At:    time.Now().UTC(),
		Score: 80,
	}))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/v1/analyses/"+run.ID.String()+"/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	require.Contains(t, body, "event: complete")
	require.Contains(t, body, `"progress":100`)
	require.Equal(t, 1, strings.Count(body, "event: complete"))
}

func TestStreamEventsUnknownRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/v1/analyses/"+uuid.NewString()+"/events", nil))
	body := rec.Body.String()
	require.Contains(t, body, "event: error")
	require.Contains(t, body, "analysis not found")
}

func TestStreamEventsLiveUpdates(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	run := seedRun(t, h.store)

	ts := httptest.NewServer(h.server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/analyses/" + run.ID.String() + "/events")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	go func() {
		time.Sleep(50 * time.Millisecond)
		h.pub.Publish(context.Background(), progress.Snapshot{
			RunID: run.ID, Status: analysis.RunStatusAnalyzing, Progress: 45, At: time.Now().UTC(),
		})
		score := 73
		h.pub.Publish(context.Background(), progress.Snapshot{
			RunID: run.ID, Status: analysis.RunStatusComplete, Progress: 100,
			OverallScore: &score, At: time.Now().UTC(),
		})
	}()

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimPrefix(line, "event: "))
		}
	}
	require.Equal(t, []string{"progress", "progress", "complete"}, events)
}

func seedRun(t *testing.T, store *memoryStorage.RunStore) analysis.Run {
	t.Helper()
	run := analysis.Run{
		ID:        uuid.New(),
		TargetURL: "https://example.com/",
		Status:    analysis.RunStatusPending,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateRun(context.Background(), run))
	return run
}

type testClock struct{}

func (testClock) Now() time.Time { return time.Now().UTC() }
