package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithAccount tags the contextual logger with the account a call is acting
// for. Only the account name is attached, never secret material.
func WithAccount(ctx context.Context, accountName string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("account", accountName))
}

// WithRequestID tags the contextual logger with a correlation id for one
// remote round-trip.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("req_id", reqID))
}
