package gblup

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/breedkit/gblup/jobs"
)

// Logger wraps slog.Logger with engine-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithJob adds a job ID field to the logger.
func (l *Logger) WithJob(id jobs.ID) *Logger {
	return &Logger{
		Logger: l.Logger.With("job_id", string(id)),
	}
}

// WithDims adds individual/marker dimension fields to the logger.
func (l *Logger) WithDims(n, m int) *Logger {
	return &Logger{
		Logger: l.Logger.With("individuals", n, "markers", m),
	}
}

// LogBuildGRM logs one relationship-matrix build.
func (l *Logger) LogBuildGRM(ctx context.Context, n, markersUsed int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "grm build failed",
			"individuals", n,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "grm build completed",
			"individuals", n,
			"markers_used", markersUsed,
			"duration", duration,
		)
	}
}

// LogSolve logs one mixed-model solve.
func (l *Logger) LogSolve(ctx context.Context, n int, heritability float64, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "gblup solve failed",
			"individuals", n,
			"heritability", heritability,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "gblup solve completed",
			"individuals", n,
			"heritability", heritability,
			"duration", duration,
		)
	}
}

// LogJob logs a job lifecycle transition.
func (l *Logger) LogJob(ctx context.Context, id jobs.ID, kind jobs.Kind, status jobs.Status) {
	l.InfoContext(ctx, "job "+string(status),
		"job_id", string(id),
		"kind", string(kind),
	)
}
