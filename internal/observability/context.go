package observability

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// WithLogger attaches a logger (already carrying any request-scoped
// fields) to ctx, replacing whatever was there before.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request-scoped logger, falling back to a nop
// logger so callers never need a nil check.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return NewNopLogger()
}

// WithFields layers additional structured fields onto the context's
// current logger and returns the extended context. No caller in the
// request path adds request_id, model or endpoint fields; request loggers
// carry the method and path set by the logging middleware.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(fields...))
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return WithFields(ctx, zap.String("request_id", id))
}

func WithModel(ctx context.Context, model string) context.Context {
	return WithFields(ctx, zap.String("model", model))
}

func WithEndpoint(ctx context.Context, endpoint string) context.Context {
	return WithFields(ctx, zap.String("endpoint", endpoint))
}
