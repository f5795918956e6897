// Package log provides the logger used by all components.
// Messages go to the console and, if enabled, to a run log file,
// so a failed upgrade always leaves a full trace on disk.
package log

import (
	"context"

	"go.uber.org/zap/zapcore"
)

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

type Logger interface {
	Debug(ctx context.Context, message string)
	Info(ctx context.Context, message string)
	Warn(ctx context.Context, message string)
	Error(ctx context.Context, message string)

	Debugf(ctx context.Context, template string, args ...any)
	Infof(ctx context.Context, template string, args ...any)
	Warnf(ctx context.Context, template string, args ...any)
	Errorf(ctx context.Context, template string, args ...any)

	// WithComponent returns a logger with the "component" prefix added to each message.
	WithComponent(component string) Logger

	Sync() error
}

// DebugLogger collects messages in memory, it is used in tests.
type DebugLogger interface {
	Logger
	Truncate()
	AllMessages() string
	WarnAndErrorMessages() string
}
