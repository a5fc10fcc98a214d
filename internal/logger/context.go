package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores l in ctx.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, else fallback, else a no-op logger.
func FromContext(ctx context.Context, fallback ...*zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	for _, l := range fallback {
		if l != nil {
			return l
		}
	}
	return zap.NewNop()
}

// WithFields derives a context whose logger carries fields in addition to
// whatever the current one has.
func WithFields(ctx context.Context, base *zap.Logger, fields ...zap.Field) context.Context {
	return ContextWithLogger(ctx, FromContext(ctx, base).With(fields...))
}

// WithRequestID tags the context logger with the HTTP request ID.
func WithRequestID(ctx context.Context, base *zap.Logger, requestID string) context.Context {
	return WithFields(ctx, base, zap.String("request_id", requestID))
}
