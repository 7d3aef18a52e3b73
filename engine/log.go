package engine

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// WithLogger returns a context carrying l. Engine code logs through it so
// request-scoped attributes (request id) follow the crawl.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFrom returns the logger stored in ctx, or slog.Default().
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
