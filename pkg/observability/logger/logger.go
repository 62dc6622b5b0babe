// Package logger provides structured logging for the service.
// All log methods accept a message followed by key-value pairs.
package logger

import "context"

// Logger is the logging contract shared by every component.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a child logger carrying additional key-value pairs.
	With(args ...any) Logger

	// WithContext returns a child logger enriched with the request ID
	// stored in ctx, when present.
	WithContext(ctx context.Context) Logger
}

type requestIDKey struct{}

// ContextWithRequestID stores a request ID for later extraction by WithContext.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Noop returns a logger that discards everything. Useful in tests.
func Noop() Logger {
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any)                {}
func (noopLogger) Info(string, ...any)                 {}
func (noopLogger) Warn(string, ...any)                 {}
func (noopLogger) Error(string, ...any)                {}
func (noopLogger) With(...any) Logger                  { return noopLogger{} }
func (noopLogger) WithContext(context.Context) Logger  { return noopLogger{} }
