package exporters

import (
	"context"

	"go.uber.org/zap"

	"github.com/llamabridge/llamabridge/internal/metrics"
)

// LogExporter writes each metrics record through the structured logger at
// the configured stats format — the always-available sink, grounded on the
// original implementation's habit of logging stats regardless of whether a
// time-series backend is configured.
type LogExporter struct {
	logger *zap.Logger
	format metrics.Format
}

func NewLogExporter(logger *zap.Logger, format metrics.Format) *LogExporter {
	return &LogExporter{logger: logger, format: format}
}

func (e *LogExporter) Name() string { return "log" }

func (e *LogExporter) Export(_ context.Context, m *metrics.RequestMetrics) error {
	e.logger.Info("request metrics", zap.String("rendered", metrics.Render(m, e.format)))
	return nil
}
