package prefstore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Logger defines an interface for logging operations.
// Implementations should be safe for concurrent use.
type Logger interface {
	// Info logs informational messages
	Info(ctx context.Context, format string, args ...interface{})

	// Warn logs warning messages
	Warn(ctx context.Context, format string, args ...interface{})

	// Error logs error messages
	Error(ctx context.Context, format string, args ...interface{})

	// Debug logs debug messages
	Debug(ctx context.Context, format string, args ...interface{})
}

// noopLogger is a Logger that does nothing.
type noopLogger struct{}

func (noopLogger) Info(ctx context.Context, format string, args ...interface{})  {}
func (noopLogger) Warn(ctx context.Context, format string, args ...interface{})  {}
func (noopLogger) Error(ctx context.Context, format string, args ...interface{}) {}
func (noopLogger) Debug(ctx context.Context, format string, args ...interface{}) {}

var defaultLogger Logger = noopLogger{}

// logTagged formats the message, prefixes tag when set and sends it to
// logger at level ("info", "warn", "error" or "debug").
func logTagged(logger Logger, tag, level string, ctx context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if tag != "" {
		msg = tag + " " + msg
	}
	switch level {
	case "info":
		logger.Info(ctx, "%s", msg)
	case "warn":
		logger.Warn(ctx, "%s", msg)
	case "error":
		logger.Error(ctx, "%s", msg)
	case "debug":
		logger.Debug(ctx, "%s", msg)
	}
}

// zerologLogger forwards to a zerolog.Logger.
type zerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger adapts l to the Logger interface. A logger attached to
// ctx with zerolog's WithContext takes precedence over l.
func NewZerologLogger(l zerolog.Logger) Logger {
	return zerologLogger{l: l}
}

func (z zerologLogger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l != nil && l != zerolog.DefaultContextLogger && l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return &z.l
}

func (z zerologLogger) Info(ctx context.Context, format string, args ...interface{}) {
	z.from(ctx).Info().Msgf(format, args...)
}

func (z zerologLogger) Warn(ctx context.Context, format string, args ...interface{}) {
	z.from(ctx).Warn().Msgf(format, args...)
}

func (z zerologLogger) Error(ctx context.Context, format string, args ...interface{}) {
	z.from(ctx).Error().Msgf(format, args...)
}

func (z zerologLogger) Debug(ctx context.Context, format string, args ...interface{}) {
	z.from(ctx).Debug().Msgf(format, args...)
}
