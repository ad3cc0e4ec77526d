package vecmesh

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with vecmesh-specific context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithAgent adds an agent field to the logger.
func (l *Logger) WithAgent(agent string) *Logger {
	return &Logger{
		Logger: l.Logger.With("agent", agent),
	}
}

// WithShard adds a shard field to the logger.
func (l *Logger) WithShard(shardID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard", shardID),
	}
}

// LogInsert logs a vector insert operation.
func (l *Logger) LogInsert(ctx context.Context, id string, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"id", id,
			"dimension", dimension,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"id", id,
			"dimension", dimension,
		)
	}
}

// LogSearch logs a similarity search.
func (l *Logger) LogSearch(ctx context.Context, limit, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"limit", limit,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"limit", limit,
			"results", resultsFound,
		)
	}
}

// LogDelete logs a vector delete operation.
func (l *Logger) LogDelete(ctx context.Context, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"id", id,
		)
	}
}

// LogUpdate logs a vector update operation.
func (l *Logger) LogUpdate(ctx context.Context, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "update completed",
			"id", id,
		)
	}
}

// LogMerge logs a knowledge merge between two agents.
func (l *Logger) LogMerge(ctx context.Context, source, target string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "knowledge merge failed",
			"source", source,
			"target", target,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "knowledge merge completed",
			"source", source,
			"target", target,
		)
	}
}

// LogRebalance logs a rebalancing pass.
func (l *Logger) LogRebalance(ctx context.Context, plans int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "rebalancing pass failed",
			"plans", plans,
			"error", err,
		)
	} else if plans > 0 {
		l.InfoContext(ctx, "rebalancing pass planned migrations",
			"plans", plans,
		)
	}
}
