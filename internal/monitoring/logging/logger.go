// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package logging provides structured logging for the sorted vector.
//
// Logger wraps slog.Logger with helpers for the events worth recording:
// bank exhaustion, reclamation scans, session exits and shutdown. Hot-path
// operations (Insert, At) are not logged.
//
// # Usage Examples
//
//	logger := logging.NewTextLogger(slog.LevelDebug)
//	v := lfsv.New[int](lfsv.WithLogger(logger))
//
//	// Disable logging entirely (the default)
//	v := lfsv.New[int](lfsv.WithLogger(logging.NoopLogger()))
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with container-specific helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
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

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithSession tags log lines with a session id.
func (l *Logger) WithSession(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("session", id),
	}
}

// LogExhausted logs a failed slot allocation.
func (l *Logger) LogExhausted(ctx context.Context, capacity, retired, orphans int) {
	l.WarnContext(ctx, "memory bank exhausted",
		"capacity", capacity,
		"retired", retired,
		"orphans", orphans,
	)
}

// LogScan logs a reclamation scan.
func (l *Logger) LogScan(ctx context.Context, claimed, reclaimed, kept int) {
	l.DebugContext(ctx, "scan completed",
		"claimed", claimed,
		"reclaimed", reclaimed,
		"kept", kept,
	)
}

// LogSessionExit logs the retired entries a closing session left behind.
func (l *Logger) LogSessionExit(ctx context.Context, policy string, entries int) {
	if entries == 0 {
		return
	}
	l.DebugContext(ctx, "session closed",
		"policy", policy,
		"entries", entries,
	)
}

// LogClose logs container shutdown.
func (l *Logger) LogClose(ctx context.Context, reclaimed, free, capacity int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed",
			"reclaimed", reclaimed,
			"error", err,
		)
		return
	}
	if free != capacity {
		l.WarnContext(ctx, "closed with slots outstanding",
			"reclaimed", reclaimed,
			"free", free,
			"capacity", capacity,
		)
		return
	}
	l.InfoContext(ctx, "closed",
		"reclaimed", reclaimed,
		"capacity", capacity,
	)
}

// LogInvariant logs a broken ownership invariant.
func (l *Logger) LogInvariant(ctx context.Context, op string, err error) {
	l.ErrorContext(ctx, "invariant violated",
		"op", op,
		"error", err,
	)
}
