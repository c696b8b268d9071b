package thumbgrid

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with thumbgrid-specific context.
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

// WithID adds an image identifier field to the logger.
func (l *Logger) WithID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id),
	}
}

// WithGeneration adds a generation field to the logger.
func (l *Logger) WithGeneration(gen uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("generation", gen),
	}
}

// WithStore adds a store field to the logger.
func (l *Logger) WithStore(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("store", name),
	}
}

// LogSettle logs a settled viewport.
func (l *Logger) LogSettle(ctx context.Context, settles int64) {
	l.DebugContext(ctx, "viewport settled",
		"settles", settles,
	)
}

// LogGeneration logs the start of a generation.
func (l *Logger) LogGeneration(ctx context.Context, gen uint64, tasks, hits int) {
	l.DebugContext(ctx, "generation started",
		"generation", gen,
		"tasks", tasks,
		"hits", hits,
		"misses", tasks-hits,
	)
}

// LogDecode logs a decode. Failures are logged at debug level because they
// are expected for unreadable files.
func (l *Logger) LogDecode(ctx context.Context, id string, duration time.Duration, err error) {
	if err != nil {
		l.DebugContext(ctx, "decode failed",
			"id", id,
			"duration", duration,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "decode completed",
			"id", id,
			"duration", duration,
		)
	}
}

// LogBatch logs a batch handed to the sink.
func (l *Logger) LogBatch(ctx context.Context, size, failed int, repaint bool) {
	if failed > 0 {
		l.DebugContext(ctx, "batch delivered with failures",
			"size", size,
			"failed", failed,
			"repaint", repaint,
		)
	} else {
		l.DebugContext(ctx, "batch delivered",
			"size", size,
			"repaint", repaint,
		)
	}
}

// LogReset logs a cache reset.
func (l *Logger) LogReset(ctx context.Context, dropped int) {
	l.InfoContext(ctx, "cache reset",
		"dropped", dropped,
	)
}

// LogResize logs a cache capacity change.
func (l *Logger) LogResize(ctx context.Context, tiles int, capacity int64) {
	l.InfoContext(ctx, "cache resized",
		"visible_tiles", tiles,
		"capacity", capacity,
	)
}

// LogRetry logs dropped failure sentinels.
func (l *Logger) LogRetry(ctx context.Context, dropped int) {
	l.InfoContext(ctx, "failed thumbnails scheduled for retry",
		"dropped", dropped,
	)
}

// LogDiskCache logs a disk cache problem.
func (l *Logger) LogDiskCache(ctx context.Context, dir string, err error) {
	l.WarnContext(ctx, "disk cache unavailable",
		"dir", dir,
		"error", err,
	)
}
