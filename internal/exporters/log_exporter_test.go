package exporters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/llamabridge/llamabridge/internal/metrics"
)

func TestLogExporterWritesRenderedLine(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	exp := NewLogExporter(logger, metrics.FormatCompact)
	m := metrics.New()
	m.Model = "test-model"

	require.NoError(t, exp.Export(context.Background(), m))
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].ContextMap()["rendered"], "test-model")
}

func TestLogExporterName(t *testing.T) {
	exp := NewLogExporter(zap.NewNop(), metrics.FormatJSON)
	assert.Equal(t, "log", exp.Name())
}
