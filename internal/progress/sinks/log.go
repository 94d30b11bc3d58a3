package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/visibleai/siteaudit/internal/progress"
)

// LogSink emits structured logs for each run snapshot. It is useful during
// development or audits where a metrics backend is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the snapshot using structured fields.
func (s *LogSink) Consume(_ context.Context, snap progress.Snapshot) error {
	fields := []zap.Field{
		zap.String("run_id", snap.RunID.String()),
		zap.String("status", string(snap.Status)),
		zap.Int("progress", snap.Progress),
		zap.Int("results", len(snap.PartialResults)),
	}
	if snap.OverallScore != nil {
		fields = append(fields, zap.Int("overall_score", *snap.OverallScore))
	}
	if snap.Error != "" {
		fields = append(fields, zap.String("error", snap.Error))
	}
	s.logger.Info("analysis progress", fields...)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
