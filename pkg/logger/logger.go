package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Log is the process logger. It stays nil until Init is called, in which
// case the package helpers below are no-ops.
var Log *slog.Logger

// Init initializes the global slog logger. An empty level falls back to
// AUTOBULK_LOG_LEVEL. AUTOBULK_LOG_SINK may point logs at a file
// ("file:/path/to/log"); otherwise they go to stdout.
func Init(level string) {
	sink := os.Getenv("AUTOBULK_LOG_SINK")
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("AUTOBULK_LOG_LEVEL")))
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(lvl)}

	if strings.HasPrefix(sink, "file:") {
		path := strings.TrimPrefix(sink, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err == nil {
			Log = slog.New(slog.NewTextHandler(f, opts))
			return
		}
		// fallback to stdout
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
	}
	Log = slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// ParseLevel maps a level name onto a slog.Level, defaulting to info.
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogConfigSummary prints a titled block of "key: value" lines at info level.
func LogConfigSummary(title string, items []string) {
	if Log == nil {
		return
	}
	var b strings.Builder
	b.WriteString(title)
	for _, it := range items {
		b.WriteString("\n  - ")
		b.WriteString(it)
	}
	Log.Info(b.String())
}

// Sync is a no-op for the synchronous handlers used here.
func Sync() {}

// Debug logs with slog-style key/value pairs.
func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

// Info logs with slog-style key/value pairs.
func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

// Warn logs with slog-style key/value pairs.
func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

// Error logs with slog-style key/value pairs.
func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}
