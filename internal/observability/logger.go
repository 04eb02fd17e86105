// Package observability provides process-wide structured logging and the
// context-scoped field plumbing every component logs through.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process-global logger. pretty selects a
// human-readable console encoder (for local/dev use); otherwise JSON,
// suited to log aggregation.
func NewLogger(pretty bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// NewNopLogger returns a logger that discards everything, for tests.
func NewNopLogger() *zap.Logger { return zap.NewNop() }

// MustNewLogger exits the process (via zap's Fatal) on build failure —
// used only at process startup
// before any request-handling goroutine exists, mirroring the teacher's
// fail-fast-on-boot convention.
func MustNewLogger(pretty bool) *zap.Logger {
	logger, err := NewLogger(pretty)
	if err != nil {
		zap.NewExample().Fatal("failed to initialize logger", zap.Error(err))
		os.Exit(1)
	}
	return logger
}
