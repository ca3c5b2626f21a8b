// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package logging provides structured logging for the master and worker daemons.
package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"
)

// Logger is the interface used throughout melon for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// slogLogger wraps slog.Logger to implement Logger.
type slogLogger struct {
	logger *slog.Logger
}

// NewLogger creates a new logger with the specified configuration.
func NewLogger(config *Config) Logger {
	if config == nil {
		config = DefaultConfig()
	}

	opts := &slog.HandlerOptions{
		Level: config.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		handler = slog.NewTextHandler(config.Output, opts)
	}

	logger := slog.New(handler)
	logger = logger.With(
		"component", config.Component,
		"version", config.Version,
	)

	return &slogLogger{logger: logger}
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	attrs := make([]any, 0, 4)

	if jobID := ctx.Value(ctxKeyJobID); jobID != nil {
		attrs = append(attrs, "job_id", jobID)
	}
	if nodeID := ctx.Value(ctxKeyNodeID); nodeID != nil {
		attrs = append(attrs, "node_id", nodeID)
	}
	if requestID := ctx.Value(ctxKeyRequestID); requestID != nil {
		attrs = append(attrs, "request_id", requestID)
	}

	if len(attrs) > 0 {
		return l.With(attrs...)
	}
	return l
}

type ctxKey string

const (
	ctxKeyJobID     ctxKey = "job_id"
	ctxKeyNodeID    ctxKey = "node_id"
	ctxKeyRequestID ctxKey = "request_id"
)

// WithJobID returns a context carrying job_id for WithContext to pick up.
func WithJobID(ctx context.Context, jobID uint64) context.Context {
	return context.WithValue(ctx, ctxKeyJobID, jobID)
}

// WithNodeID returns a context carrying node_id for WithContext to pick up.
func WithNodeID(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, ctxKeyNodeID, nodeID)
}

// WithRequestID returns a context carrying request_id for WithContext to pick up.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level.
	Level slog.Level

	// Format is the output format (text or json).
	Format Format

	// Output is where logs are written (default: os.Stdout).
	Output *os.File

	// Component names the process emitting logs, e.g. "master" or "worker".
	Component string

	// Version is the melon build version included in every record.
	Version string
}

// Format represents the log output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// DefaultConfig returns a default logger configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:     slog.LevelInfo,
		Format:    FormatText,
		Output:    os.Stdout,
		Component: "melon",
		Version:   "unknown",
	}
}

// sanitizeLogValue strips control characters that could be used for log injection.
func sanitizeLogValue(value any) any {
	if str, ok := value.(string); ok {
		sanitized := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == '\t' {
				return ' '
			}
			if unicode.IsControl(r) && !unicode.IsSpace(r) {
				return -1
			}
			return r
		}, str)
		return sanitized
	}
	return value
}

func sanitizeFields(fields []any) []any {
	sanitized := make([]any, len(fields))
	for i, field := range fields {
		sanitized[i] = sanitizeLogValue(field)
	}
	return sanitized
}

// LogDuration logs the duration of an operation.
func LogDuration(logger Logger, start time.Time, operation string) {
	duration := time.Since(start)
	logger.Info("operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogError logs an error with context, sanitizing caller-supplied fields.
func LogError(logger Logger, err error, operation string, fields ...any) {
	if err == nil {
		return
	}

	baseFields := []any{
		"operation", operation,
		"error", err.Error(),
		"error_type", getErrorType(err),
	}

	sanitizedFields := sanitizeFields(fields)
	logger.Error("operation failed", append(baseFields, sanitizedFields...)...)
}

func getErrorType(err error) string {
	if err == nil {
		return ""
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return "PathError"
	}
	var syscallErr *os.SyscallError
	if errors.As(err, &syscallErr) {
		return "SyscallError"
	}

	return fmt.Sprintf("%T", err)
}

// NoOpLogger discards all log messages. Used as a safe default when no
// logger is supplied.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, args ...any)          {}
func (NoOpLogger) Info(msg string, args ...any)           {}
func (NoOpLogger) Warn(msg string, args ...any)           {}
func (NoOpLogger) Error(msg string, args ...any)          {}
func (NoOpLogger) With(args ...any) Logger                { return NoOpLogger{} }
func (NoOpLogger) WithContext(ctx context.Context) Logger { return NoOpLogger{} }
