// Package logger provides structured logging for aptledger.
//
// Attributes that carry credentials (portal password, Notion token, session
// cookies) are masked by every handler Init builds.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Masked replaces the value of a sensitive attribute.
const Masked = "***"

var (
	defaultLogger *slog.Logger
	mu            sync.RWMutex
)

// sensitiveKeys are matched case-insensitively against the attribute key.
var sensitiveKeys = []string{"password", "token", "cookie", "authorization", "secret"}

func init() {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, handlerOptions(slog.LevelInfo)))
}

// Options configures the logger.
type Options struct {
	Debug  bool         // Enable debug level logging
	Quiet  bool         // Only show errors
	JSON   bool         // Output as JSON
	Output io.Writer    // Output destination (default: stderr)
	Logger *slog.Logger // Custom logger (overrides all other options)
}

// Init initializes the logger with the specified options.
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	if opts.Logger != nil {
		defaultLogger = opts.Logger
		return
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	if opts.Quiet {
		level = slog.LevelError
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(output, handlerOptions(level))
	} else {
		handler = slog.NewTextHandler(output, handlerOptions(level))
	}
	defaultLogger = slog.New(handler)
}

func handlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level, ReplaceAttr: redact}
}

// redact masks credential-bearing attributes, including nested groups.
func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if IsSensitive(a.Key) {
		return slog.String(a.Key, Masked)
	}
	return a
}

// IsSensitive reports whether an attribute key names a credential.
func IsSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// SetLogger replaces the package logger, e.g. with one a host program
// already configured. No redaction is applied to it.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Debug logs a debug message.
func Debug(msg string, args ...any) { current().Debug(msg, args...) }

// Info logs an info message.
func Info(msg string, args ...any) { current().Info(msg, args...) }

// Warn logs a warning message.
func Warn(msg string, args ...any) { current().Warn(msg, args...) }

// Error logs an error message.
func Error(msg string, args ...any) { current().Error(msg, args...) }

// With returns a logger with the given attributes. Packages call it once at
// construction, e.g. logger.With("component", "notion").
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// DebugContext logs a debug message with context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	current().DebugContext(ctx, msg, args...)
}

// InfoContext logs an info message with context.
func InfoContext(ctx context.Context, msg string, args ...any) {
	current().InfoContext(ctx, msg, args...)
}

// WarnContext logs a warning message with context.
func WarnContext(ctx context.Context, msg string, args ...any) {
	current().WarnContext(ctx, msg, args...)
}

// ErrorContext logs an error message with context.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	current().ErrorContext(ctx, msg, args...)
}
