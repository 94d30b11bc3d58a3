package sinks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/visibleai/siteaudit/internal/analysis"
	"github.com/visibleai/siteaudit/internal/progress"
)

// PrometheusSink exports analysis run metrics. It owns all collectors for
// runs started/completed/running plus the score and duration distributions.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runDuration   *prometheus.HistogramVec
	overallScore  prometheus.Histogram

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteaudit_runs_started_total",
			Help: "Total analysis runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteaudit_runs_completed_total",
			Help: "Total analysis runs finished partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "siteaudit_runs_running",
			Help: "Current number of runs being analyzed.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "siteaudit_run_duration_seconds",
			Help:    "Wall time per finished run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480},
		}, []string{"result"}),
		overallScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "siteaudit_overall_score",
			Help:    "Overall score distribution across completed runs.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runDuration,
		s.overallScore,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the snapshot. It is safe for
// concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, snap progress.Snapshot) error {
	switch snap.Status {
	case analysis.RunStatusAnalyzing:
		if s.tracker.start(snap.RunID.String(), snap.At) {
			s.runsStarted.Inc()
			s.runsRunning.Inc()
		}
	case analysis.RunStatusComplete:
		s.finish(snap, "complete")
		if snap.OverallScore != nil {
			s.overallScore.Observe(float64(*snap.OverallScore))
		}
	case analysis.RunStatusFailed:
		s.finish(snap, "failed")
	}
	return nil
}

func (s *PrometheusSink) finish(snap progress.Snapshot, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	startedAt, tracked := s.tracker.complete(snap.RunID.String())
	if !tracked {
		return
	}
	s.runsRunning.Dec()
	if d := snap.At.Sub(startedAt); d > 0 {
		s.runDuration.WithLabelValues(result).Observe(d.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[string]time.Time
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[string]time.Time)}
}

func (t *runTracker) start(id string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = at
	return true
}

func (t *runTracker) complete(id string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.running[id]
	if !ok {
		return time.Time{}, false
	}
	delete(t.running, id)
	return at, true
}
