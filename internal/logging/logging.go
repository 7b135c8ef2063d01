// Package logging wraps log/slog with package-level leveled helpers and a
// redaction pass for API keys and bearer tokens, the same shape the
// broader example pack uses for structured logging, adapted for this
// module's orchestrator and collaborators.
package logging

import (
	"context"
	"log/slog"
	"os"
	"regexp"
)

// DefaultLogger is the process-wide logger used by package-level helpers.
// It can be replaced wholesale (tests substitute a buffer-backed logger).
var DefaultLogger = newDefault()

func newDefault() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// SetLevel replaces DefaultLogger's handler at the given level.
func SetLevel(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	DefaultLogger = slog.New(handler)
}

// Info logs an info-level message with redacted key/value pairs.
func Info(msg string, kv ...any) { DefaultLogger.Info(msg, redactPairs(kv)...) }

// Warn logs a warn-level message with redacted key/value pairs.
func Warn(msg string, kv ...any) { DefaultLogger.Warn(msg, redactPairs(kv)...) }

// Error logs an error-level message with redacted key/value pairs.
func Error(msg string, kv ...any) { DefaultLogger.Error(msg, redactPairs(kv)...) }

// Debug logs a debug-level message with redacted key/value pairs.
func Debug(msg string, kv ...any) { DefaultLogger.Debug(msg, redactPairs(kv)...) }

// StdLogger adapts the package-level helpers to the workflow package's
// minimal Logger interface, so the orchestrator and state store can log
// through this package without importing slog directly.
type StdLogger struct{}

func (StdLogger) Info(msg string, kv ...any)  { Info(msg, kv...) }
func (StdLogger) Warn(msg string, kv ...any)  { Warn(msg, kv...) }
func (StdLogger) Error(msg string, kv ...any) { Error(msg, kv...) }
func (StdLogger) Debug(msg string, kv ...any) { Debug(msg, kv...) }

// StateChange logs a workflow state transition at info level. Kept
// separate from the generic helpers so callers get a consistent message
// shape regardless of which states are involved.
func StateChange(ctx context.Context, runID, from, to, trigger string) {
	Info("state change", "runId", runID, "from", from, "to", to, "trigger", trigger)
}

var (
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key["':=\s]+)([A-Za-z0-9\-_]{16,})`)
	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-_.]{16,})`)
)

// Redact scrubs API keys and bearer tokens out of a string before it
// reaches a log line.
func Redact(s string) string {
	s = apiKeyPattern.ReplaceAllString(s, "${1}[REDACTED]")
	s = bearerPattern.ReplaceAllString(s, "${1}[REDACTED]")
	return s
}

// redactPairs applies Redact to any string value in a flat key/value
// variadic slice, leaving keys and non-string values untouched.
func redactPairs(kv []any) []any {
	out := make([]any, len(kv))
	copy(out, kv)
	for i := 1; i < len(out); i += 2 {
		if s, ok := out[i].(string); ok {
			out[i] = Redact(s)
		}
	}
	return out
}
