// Package logging provides centralized logging functionality for the application.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug for detailed troubleshooting information.
	LevelDebug LogLevel = "debug"
	// LevelInfo for general operational information.
	LevelInfo LogLevel = "info"
	// LevelWarn for potentially harmful situations.
	LevelWarn LogLevel = "warn"
	// LevelError for error events that might still allow the application to continue.
	LevelError LogLevel = "error"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var (
	// defaultLogger is the default logger instance.
	defaultLogger *slog.Logger
)

// init initializes the default logger.
func init() {
	// Get log level from environment variable, default to "info"
	logLevelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = string(LevelInfo)
	}

	Setup(os.Stdout, LogLevel(logLevelStr), Format(strings.ToLower(os.Getenv("LOG_FORMAT"))))
}

// SetupLogger configures a text logger with the specified output and level.
func SetupLogger(w io.Writer, level LogLevel) {
	Setup(w, level, FormatText)
}

// Setup configures the logger with the specified output, level and format.
// Unknown levels fall back to info and unknown formats to text.
func Setup(w io.Writer, level LogLevel, format Format) {
	var logLevel slog.Level
	switch level {
	case LevelDebug:
		logLevel = slog.LevelDebug
	case LevelInfo:
		logLevel = slog.LevelInfo
	case LevelWarn:
		logLevel = slog.LevelWarn
	case LevelError:
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	defaultLogger = slog.New(NewContextHandler(handler))
	slog.SetDefault(defaultLogger)
}

// SetupOTel sends records to the global OpenTelemetry logger provider
// instead of a local writer. Telemetry must be set up first.
func SetupOTel(serviceName string) {
	handler := otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(global.GetLoggerProvider()))
	defaultLogger = slog.New(NewContextHandler(handler))
	slog.SetDefault(defaultLogger)
}

// Debug logs a message at debug level.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs a message at info level.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs a message at warn level.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs a message at error level.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// DebugContext logs at debug level with the fields carried by ctx.
func DebugContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.DebugContext(ctx, msg, args...)
}

// InfoContext logs at info level with the fields carried by ctx.
func InfoContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.InfoContext(ctx, msg, args...)
}

// WarnContext logs at warn level with the fields carried by ctx.
func WarnContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.WarnContext(ctx, msg, args...)
}

// ErrorContext logs at error level with the fields carried by ctx.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.ErrorContext(ctx, msg, args...)
}

// GetLogger returns the default logger.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// MaskSensitive masks sensitive data for logging.
func MaskSensitive(value string) string {
	if value == "" {
		return "<not set>"
	}
	if len(value) <= 4 {
		return "<set>"
	}
	return value[:4] + "..." + strings.Repeat("*", 3)
}

type fieldsKey struct{}

// WithFields returns a context whose log records carry the given key/value
// pairs. Later calls append to, and on key collision override, earlier ones.
func WithFields(ctx context.Context, args ...any) context.Context {
	existing := fieldsFrom(ctx)
	record := slog.Record{}
	record.Add(args...)

	merged := make([]slog.Attr, 0, len(existing)+record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		merged = append(merged, a)
		return true
	})
	for _, a := range existing {
		if !hasKey(merged, a.Key) {
			merged = append(merged, a)
		}
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

func fieldsFrom(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(fieldsKey{}).([]slog.Attr)
	return attrs
}

func hasKey(attrs []slog.Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// ContextHandler adds context fields and OpenTelemetry trace ids to records.
// A context field is dropped when the record already carries its key.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler wraps h.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if fields := fieldsFrom(ctx); len(fields) > 0 {
		keys := make(map[string]struct{}, r.NumAttrs())
		r.Attrs(func(a slog.Attr) bool {
			keys[a.Key] = struct{}{}
			return true
		})
		// Attributes passed at the call site win over context fields.
		for _, a := range fields {
			if _, dup := keys[a.Key]; !dup {
				r.AddAttrs(a)
			}
		}
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
