// Package exporters fans RequestMetrics out to pluggable sinks without
// blocking the client response path: the orchestrator hands a metrics
// record to the Manager's bounded queue and returns immediately.
package exporters

import (
	"context"

	"github.com/llamabridge/llamabridge/internal/metrics"
)

// MetricsExporter is a single metrics sink. Export must not retry
// internally — a failing sink logs and is skipped for that record, never
// blocking siblings or the queue drain loop.
type MetricsExporter interface {
	Name() string
	Export(ctx context.Context, m *metrics.RequestMetrics) error
}
