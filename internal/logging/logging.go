// Package logging provides structured logging using Go's slog package.
// Logs go to stderr so that archives written to stdout stay clean.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// RequestIDKey is the context key for request IDs.
const RequestIDKey ContextKey = "request_id"

var (
	defaultLogger *slog.Logger

	// output receives log records. Tests swap it for a buffer.
	output io.Writer = os.Stderr
)

func init() {
	InitLogger(LevelInfo, FormatJSON)
}

// Level is a slog level.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents a log output format.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

func (f Format) String() string {
	if f == FormatText {
		return "text"
	}
	return "json"
}

// ParseLevel maps a level name to a Level. The empty name is info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
}

// ParseFormat maps a format name to a Format. An empty name picks text
// when stderr is a terminal and JSON otherwise.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return AutoFormat(os.Stderr), nil
	case "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	}
	return FormatJSON, fmt.Errorf("unknown log format %q (want text or json)", s)
}

// isTerminal is replaced in tests.
var isTerminal = term.IsTerminal

// AutoFormat returns FormatText for a terminal and FormatJSON otherwise.
func AutoFormat(f *os.File) Format {
	if f != nil && isTerminal(int(f.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// replaceAttr writes times as RFC 3339 and durations as milliseconds.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindTime:
		if a.Key == slog.TimeKey {
			return slog.String(a.Key, a.Value.Time().Format(time.RFC3339))
		}
	case slog.KindDuration:
		return slog.Int64(a.Key+"_ms", a.Value.Duration().Milliseconds())
	}
	return a
}

// InitLogger installs the global logger.
func InitLogger(level Level, format Format) {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}
	var handler slog.Handler
	if format == FormatText {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// GetLogger returns the global logger instance.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// LoggerFromContext returns a logger with context values attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if requestID := GetRequestID(ctx); requestID != "" {
		return defaultLogger.With("request_id", requestID)
	}
	return defaultLogger
}

func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
func Info(msg string, args ...any)  { defaultLogger.Info(msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Info(msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Warn(msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Error(msg, args...)
}

// ConversionRecord describes one compiled quiz.
type ConversionRecord struct {
	Source     string
	Assessment string
	Questions  int
	Points     float64
	Images     int
	Duration   time.Duration
}

// Conversion logs a finished quiz conversion at debug level; a batch
// run converting many files stays quiet at the default level.
func Conversion(ctx context.Context, rec ConversionRecord) {
	LoggerFromContext(ctx).Debug("conversion",
		"source", rec.Source,
		"assessment", rec.Assessment,
		"questions", rec.Questions,
		"points", rec.Points,
		"images", rec.Images,
		"duration", rec.Duration,
	)
}

// Rejected logs a document the service refused with a diagnostic. The
// document text itself is never logged.
func Rejected(ctx context.Context, code string, line int) {
	LoggerFromContext(ctx).Info("quiz_rejected", "code", code, "line", line)
}

// WebSocketEvent logs WebSocket events.
func WebSocketEvent(event string, clientCount int, args ...any) {
	defaultLogger.Info("websocket_event", append([]any{"event", event, "client_count", clientCount}, args...)...)
}

// ServerStartup logs server startup information.
func ServerStartup(addr string, args ...any) {
	defaultLogger.Info("server_startup", append([]any{"addr", addr}, args...)...)
}

// SecurityEvent logs security-related events.
func SecurityEvent(event, component string, args ...any) {
	defaultLogger.Warn("security_event", append([]any{"event", event, "component", component}, args...)...)
}
