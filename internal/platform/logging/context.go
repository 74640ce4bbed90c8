package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type ctxKey struct{}

// fallback answers FromContext when no request logger was attached.
var fallback atomic.Pointer[slog.Logger]

func init() { fallback.Store(slog.Default()) }

// SetDefault makes logger the fallback here and in log/slog.
func SetDefault(logger *slog.Logger) {
	fallback.Store(logger)
	slog.SetDefault(logger)
}

// FromContext returns the request logger in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	return FromContextOr(ctx, fallback.Load())
}

// FromContextOr returns the request logger in ctx, or def.
func FromContextOr(ctx context.Context, def *slog.Logger) *slog.Logger {
	if ctx == nil {
		return def
	}

	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}

	return def
}

// WithContext attaches logger to ctx.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// WithAttrs attaches the logger in ctx extended with attrs, so every later
// line logged through ctx carries them.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}

	return WithContext(ctx, FromContext(ctx).With(args...))
}

// WithRequestID tags later lines with request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return WithAttrs(ctx, slog.String("request_id", id))
}

// WithCorrelationID tags later lines with correlation_id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return WithAttrs(ctx, slog.String("correlation_id", id))
}

// WithTraceID tags later lines with trace_id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return WithAttrs(ctx, slog.String("trace_id", id))
}
