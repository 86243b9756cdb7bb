package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// LogLevelEnv overrides the default log level when no flag is given.
const LogLevelEnv = "KARAJAN_LOG_LEVEL"

// NewLogger creates a structured JSON logger on stdout for a karajan component.
func NewLogger(component string, level slog.Level) *slog.Logger {
	return NewLoggerTo(os.Stdout, component, level)
}

// NewLoggerTo is NewLogger with an explicit destination. CLI commands that
// print results on stdout log to stderr.
func NewLoggerTo(w io.Writer, component string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler).With("component", component)
}

// TraceLogger adds trace_id and span_id from the context to every record.
type TraceLogger struct {
	logger *slog.Logger
}

func NewTraceLogger(logger *slog.Logger) *TraceLogger {
	return &TraceLogger{logger: logger}
}

// WithTraceContext returns the logger with trace attributes when ctx carries a valid span.
func (l *TraceLogger) WithTraceContext(ctx context.Context) *slog.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return l.logger
	}
	return l.logger.With(
		"trace_id", sc.TraceID().String(),
		"span_id", sc.SpanID().String(),
	)
}

func (l *TraceLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.WithTraceContext(ctx).Debug(msg, args...)
}

func (l *TraceLogger) Info(ctx context.Context, msg string, args ...any) {
	l.WithTraceContext(ctx).Info(msg, args...)
}

func (l *TraceLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.WithTraceContext(ctx).Warn(msg, args...)
}

func (l *TraceLogger) Error(ctx context.Context, msg string, args ...any) {
	l.WithTraceContext(ctx).Error(msg, args...)
}

func (l *TraceLogger) With(args ...any) *TraceLogger {
	return &TraceLogger{logger: l.logger.With(args...)}
}

// ParseLogLevel maps debug, info, warn and error (case-insensitive) to a
// slog.Level. Anything else is info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// GetLogLevel prefers the flag value, then KARAJAN_LOG_LEVEL.
func GetLogLevel(flagLevel string) slog.Level {
	if flagLevel != "" {
		return ParseLogLevel(flagLevel)
	}
	if envLevel := os.Getenv(LogLevelEnv); envLevel != "" {
		return ParseLogLevel(envLevel)
	}
	return slog.LevelInfo
}
