// Package logger provides structured logging for the theory server.
// Every publication and milestone should be traceable through this.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging with context.
type Logger struct {
	z *zap.Logger
}

// NewLogger creates a production (JSON) logger.
func NewLogger() *Logger {
	z, err := zap.NewProduction()
	if err != nil {
		return NewNop()
	}
	return &Logger{z: z.Named("theory")}
}

// NewDevelopment creates a console logger, at debug level when verbose.
func NewDevelopment(verbose bool) *Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	z, err := cfg.Build()
	if err != nil {
		return NewNop()
	}
	return &Logger{z: z.Named("theory")}
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// Wrap adapts an existing zap logger.
func Wrap(z *zap.Logger) *Logger {
	if z == nil {
		return NewNop()
	}
	return &Logger{z: z}
}

// Debug logs verbose diagnostics.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.z.Debug(msg, fields...)
}

// Info logs informational messages.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.z.Info(msg, fields...)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.z.Warn(msg, fields...)
}

// Error logs error messages.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.z.Error(msg, fields...)
}

// Event logs a specific theory event.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.z.Info("event",
		zap.String("type", eventType),
		zap.String("actor", actorID),
		zap.String("details", details))
}

// With returns a child logger carrying fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

// Zap exposes the underlying logger.
func (l *Logger) Zap() *zap.Logger {
	return l.z
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}
