package landgo

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/landgo/core"
)

// Logger wraps slog.Logger with landgo-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithMinimum adds a minimum id field to the logger.
func (l *Logger) WithMinimum(id core.MinimumID) *Logger {
	return &Logger{
		Logger: l.Logger.With("minimum", uint32(id)),
	}
}

// WithPair adds both endpoint ids of a pair to the logger.
func (l *Logger) WithPair(p core.Pair) *Logger {
	return &Logger{
		Logger: l.Logger.With("min1", uint32(p.A), "min2", uint32(p.B)),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogAdmit logs an admission.
func (l *Logger) LogAdmit(ctx context.Context, id core.MinimumID, admitted int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "admit failed",
			"minimum", uint32(id),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "admit completed",
			"minimum", uint32(id),
			"admitted", admitted,
		)
	}
}

// LogInitialize logs graph initialization for a start/end pair.
func (l *Logger) LogInitialize(ctx context.Context, start, end core.MinimumID, admitted int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "initialize failed",
			"start", uint32(start),
			"end", uint32(end),
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "initialize completed",
			"start", uint32(start),
			"end", uint32(end),
			"admitted", admitted,
		)
	}
}

// LogShortestPath logs a path query.
func (l *Logger) LogShortestPath(ctx context.Context, a, b core.MinimumID, hops int, found bool) {
	if !found {
		l.DebugContext(ctx, "no path",
			"min1", uint32(a),
			"min2", uint32(b),
		)
	} else {
		l.DebugContext(ctx, "path found",
			"min1", uint32(a),
			"min2", uint32(b),
			"hops", hops,
		)
	}
}

// LogMarkConnected logs a direct-connection update.
func (l *Logger) LogMarkConnected(ctx context.Context, a, b core.MinimumID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "mark connected failed",
			"min1", uint32(a),
			"min2", uint32(b),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "pair connected",
			"min1", uint32(a),
			"min2", uint32(b),
		)
	}
}

// LogMarkUnproductive logs a pair being retired from future suggestions.
func (l *Logger) LogMarkUnproductive(ctx context.Context, a, b core.MinimumID) {
	l.DebugContext(ctx, "pair marked unproductive",
		"min1", uint32(a),
		"min2", uint32(b),
	)
}

// LogMerge logs a merge of two minima.
func (l *Logger) LogMerge(ctx context.Context, keep, drop core.MinimumID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "merge failed",
			"keep", uint32(keep),
			"drop", uint32(drop),
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "merge completed",
			"keep", uint32(keep),
			"drop", uint32(drop),
		)
	}
}

// LogFlush logs a persistence flush.
func (l *Logger) LogFlush(ctx context.Context, count int, forced bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"count", count,
			"forced", forced,
			"error", err,
		)
	} else if count > 0 {
		l.InfoContext(ctx, "flush completed",
			"count", count,
			"forced", forced,
		)
	}
}

// LogRepair logs a consistency repair pass. Genuine inconsistencies point at
// a mutation sequencing problem upstream and are warned about.
func (l *Logger) LogRepair(ctx context.Context, edges, redundant, forcedZero, reweighted int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "consistency check failed",
			"edges", edges,
			"error", err,
		)
	case forcedZero+reweighted > 0:
		l.WarnContext(ctx, "consistency check repaired inconsistencies",
			"edges", edges,
			"redundant", redundant,
			"forced_zero", forcedZero,
			"reweighted", reweighted,
		)
	default:
		l.DebugContext(ctx, "consistency check clean",
			"edges", edges,
			"redundant", redundant,
		)
	}
}

// LogSnapshot logs a snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"filename", filename,
		)
	}
}
