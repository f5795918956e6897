package log

import (
	"context"

	"go.uber.org/zap"
)

// zapLogger is the default implementation of the Logger interface.
// The context parameter is accepted for future use, attributes are not extracted from it.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func loggerFromZap(l *zap.Logger) *zapLogger {
	return &zapLogger{sugar: l.Sugar()}
}

// NewNopLogger discards all messages.
func NewNopLogger() Logger {
	return loggerFromZap(zap.NewNop())
}

func (l *zapLogger) Debug(_ context.Context, message string) {
	l.sugar.Debug(message)
}

func (l *zapLogger) Info(_ context.Context, message string) {
	l.sugar.Info(message)
}

func (l *zapLogger) Warn(_ context.Context, message string) {
	l.sugar.Warn(message)
}

func (l *zapLogger) Error(_ context.Context, message string) {
	l.sugar.Error(message)
}

func (l *zapLogger) Debugf(_ context.Context, template string, args ...any) {
	l.sugar.Debugf(template, args...)
}

func (l *zapLogger) Infof(_ context.Context, template string, args ...any) {
	l.sugar.Infof(template, args...)
}

func (l *zapLogger) Warnf(_ context.Context, template string, args ...any) {
	l.sugar.Warnf(template, args...)
}

func (l *zapLogger) Errorf(_ context.Context, template string, args ...any) {
	l.sugar.Errorf(template, args...)
}

func (l *zapLogger) WithComponent(component string) Logger {
	return &zapLogger{sugar: l.sugar.Named(component)}
}

func (l *zapLogger) Sync() error {
	return l.sugar.Sync()
}
