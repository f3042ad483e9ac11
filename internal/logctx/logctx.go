package logctx

import (
	"context"
	"log/slog"
)

type contextKey struct{}

var loggerKey = contextKey{}

// WithLogger returns a new context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithBatch derives a logger tagged with the batch id and trigger and stores it in ctx.
func WithBatch(ctx context.Context, batchID, trigger string) context.Context {
	logger := FromContext(ctx).With("batch_id", batchID, "trigger", trigger)
	return WithLogger(ctx, logger)
}
