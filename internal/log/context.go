package log

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
	// RunIDContextKey is the context key for the job run id
	RunIDContextKey ContextKey = "run_id"
)

// NewRunID generates an identifier for one job run.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID stores the run id in ctx.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDContextKey, runID)
}

// RunIDFrom returns the run id carried by ctx, or "".
func RunIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(RunIDContextKey).(string); ok {
		return id
	}
	return ""
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}
