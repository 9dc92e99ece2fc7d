package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// With stores a child logger carrying fields in ctx.
func With(ctx context.Context, fields ...any) context.Context {
	return context.WithValue(ctx, contextKey{}, From(ctx).With(fields...))
}

// WithPrincipal tags every later log line in ctx with the acting user.
func WithPrincipal(ctx context.Context, userID, role string) context.Context {
	return With(ctx, slog.Group("principal", "id", userID, "role", role))
}

// From falls back to the process logger when ctx carries none.
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return LoggerWrapper()
}
