package logger

import (
	"context"

	"github.com/releasekit/releasekit/pkg/runctx"
)

// LoggerContext extends the Logger interface with context-aware methods.
// This follows Go best practices for structured logging with run tracing.
type LoggerContext interface {
	Logger
	InfoContext(ctx context.Context, message string, fields ...Field)
	ErrorContext(ctx context.Context, message string, fields ...Field)
	WarnContext(ctx context.Context, message string, fields ...Field)
	DebugContext(ctx context.Context, message string, fields ...Field)
	SuccessContext(ctx context.Context, message string, fields ...Field)
}

// Ensure PackageLogger implements LoggerContext
var _ LoggerContext = (*PackageLogger)(nil)

// InfoContext logs an info message with run tracing
func (l *PackageLogger) InfoContext(ctx context.Context, message string, fields ...Field) {
	allFields := append(l.extractContextFields(ctx), fields...)
	l.Info(message, allFields...)
}

// ErrorContext logs an error message with run tracing
func (l *PackageLogger) ErrorContext(ctx context.Context, message string, fields ...Field) {
	allFields := append(l.extractContextFields(ctx), fields...)
	l.Error(message, allFields...)
}

// WarnContext logs a warning message with run tracing
func (l *PackageLogger) WarnContext(ctx context.Context, message string, fields ...Field) {
	allFields := append(l.extractContextFields(ctx), fields...)
	l.Warn(message, allFields...)
}

// DebugContext logs a debug message with run tracing
func (l *PackageLogger) DebugContext(ctx context.Context, message string, fields ...Field) {
	allFields := append(l.extractContextFields(ctx), fields...)
	l.Debug(message, allFields...)
}

// SuccessContext logs a success message with run tracing
func (l *PackageLogger) SuccessContext(ctx context.Context, message string, fields ...Field) {
	allFields := append(l.extractContextFields(ctx), fields...)
	l.Success(message, allFields...)
}

// extractContextFields extracts run tracing fields from context
func (l *PackageLogger) extractContextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field

	if runID := runctx.GetRunID(ctx); runID != "unknown-run" {
		fields = append(fields, WithField("run_id", runID))
	}

	if stage := runctx.GetStage(ctx); stage != "unknown-stage" {
		fields = append(fields, WithField("stage", stage))
	}

	return fields
}
