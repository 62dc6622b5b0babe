package logger

import (
	"context"
	"testing"
)

func TestNewZapLoggerLevels(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"defaults", DefaultConfig()},
		{"debug json", Config{Level: DebugLevel, Format: JSONFormat}},
		{"warn text", Config{Level: WarnLevel, Format: TextFormat}},
		{"error", Config{Level: ErrorLevel}},
		{"unknown level falls back to info", Config{Level: "verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewZapLogger(tt.cfg)
			if err != nil {
				t.Fatalf("NewZapLogger: %v", err)
			}
			if log == nil {
				t.Fatal("expected logger instance")
			}
			log.Debug("debug", "k", "v")
			log.Info("info", "k", "v")
			log.Warn("warn", "k", "v")
			log.Error("error", "k", "v")
		})
	}
}

func TestWithReturnsChildLogger(t *testing.T) {
	log, err := NewZapLogger(DefaultConfig())
	if err != nil {
		t.Fatalf("NewZapLogger: %v", err)
	}

	child := log.With("component", "jobs")
	if child == nil {
		t.Fatal("expected child logger")
	}
	child.Info("child message")
}

func TestWithContextRequestID(t *testing.T) {
	log, err := NewZapLogger(DefaultConfig())
	if err != nil {
		t.Fatalf("NewZapLogger: %v", err)
	}

	ctx := ContextWithRequestID(context.Background(), "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Fatalf("RequestIDFromContext = %q, want %q", got, "req-123")
	}

	child := log.WithContext(ctx)
	if child == nil {
		t.Fatal("expected context logger")
	}

	// Missing request ID returns the same logger untouched.
	if got := log.WithContext(context.Background()); got != Logger(log) {
		t.Fatal("expected identical logger when no request id is present")
	}
}
