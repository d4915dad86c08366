package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// WithContext stores log in ctx. The request middleware uses it so handlers
// log with the request_id, method and path already attached.
func WithContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext returns the logger stored in ctx, or slog.Default when there is
// none (background jobs, unit tests). It never returns nil.
func FromContext(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return slog.Default()
}

// With returns a context whose logger carries args in addition to whatever
// the context logger already had, e.g. the campaign or segment being handled.
func With(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	return WithContext(ctx, FromContext(ctx).With(args...))
}
