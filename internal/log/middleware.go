package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := NewContext(r.Context(), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestIDMiddleware adds request ID to logger context
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger provides the domain log lines shared by the HTTP layer
// and the session.
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogSectionSaved logs a successful section save.
func (sl *StructuredLogger) LogSectionSaved(ctx context.Context, name string, index int, total string) {
	fields := NewFields().
		WithSection(name, index).
		WithOperation(OpSave).
		WithComponent(ComponentSession).
		ToSlice()
	fields = append(fields, FieldTotalValue, total)
	sl.logger.Logger.InfoContext(ctx, "Section saved", fields...)
}

// LogSectionReloaded logs a discard of unsaved edits.
func (sl *StructuredLogger) LogSectionReloaded(ctx context.Context, name string, index int) {
	fields := NewFields().
		WithSection(name, index).
		WithOperation(OpReload).
		WithComponent(ComponentSession)
	sl.logger.Logger.InfoContext(ctx, "Section reloaded from store", fields.ToSlice()...)
}

// LogRejected logs a structural edit refused by validation.
func (sl *StructuredLogger) LogRejected(ctx context.Context, msg string, err error, fields LogFields) {
	all := fields.
		WithError(err).
		WithOperation(OpValidate).
		WithComponent(ComponentSession)
	sl.logger.Logger.WarnContext(ctx, msg, all.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)
	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
