package log

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// NewDebugLogger returns logs as string in tests.
func NewDebugLogger() DebugLogger {
	return &debugLogger{lock: &sync.Mutex{}}
}

type debugLogger struct {
	lock     *sync.Mutex
	messages []message
}

type message struct {
	level string
	text  string
}

func (l *debugLogger) log(level, text string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.messages = append(l.messages, message{level: level, text: text})
}

func (l *debugLogger) Debug(_ context.Context, msg string) { l.log("DEBUG", msg) }
func (l *debugLogger) Info(_ context.Context, msg string)  { l.log("INFO", msg) }
func (l *debugLogger) Warn(_ context.Context, msg string)  { l.log("WARN", msg) }
func (l *debugLogger) Error(_ context.Context, msg string) { l.log("ERROR", msg) }

func (l *debugLogger) Debugf(_ context.Context, template string, args ...any) {
	l.log("DEBUG", fmt.Sprintf(template, args...))
}

func (l *debugLogger) Infof(_ context.Context, template string, args ...any) {
	l.log("INFO", fmt.Sprintf(template, args...))
}

func (l *debugLogger) Warnf(_ context.Context, template string, args ...any) {
	l.log("WARN", fmt.Sprintf(template, args...))
}

func (l *debugLogger) Errorf(_ context.Context, template string, args ...any) {
	l.log("ERROR", fmt.Sprintf(template, args...))
}

func (l *debugLogger) WithComponent(component string) Logger {
	return &componentLogger{parent: l, component: component}
}

func (l *debugLogger) Sync() error {
	return nil
}

func (l *debugLogger) Truncate() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.messages = nil
}

func (l *debugLogger) AllMessages() string {
	l.lock.Lock()
	defer l.lock.Unlock()
	var out strings.Builder
	for _, m := range l.messages {
		out.WriteString(m.level)
		out.WriteString("  ")
		out.WriteString(m.text)
		out.WriteString("\n")
	}
	return out.String()
}

func (l *debugLogger) WarnAndErrorMessages() string {
	l.lock.Lock()
	defer l.lock.Unlock()
	var out strings.Builder
	for _, m := range l.messages {
		if m.level == "WARN" || m.level == "ERROR" {
			out.WriteString(m.level)
			out.WriteString("  ")
			out.WriteString(m.text)
			out.WriteString("\n")
		}
	}
	return out.String()
}

// componentLogger adds the component prefix and forwards to the parent debug logger.
type componentLogger struct {
	parent    *debugLogger
	component string
}

func (l *componentLogger) log(level, text string) {
	l.parent.log(level, l.component+": "+text)
}

func (l *componentLogger) Debug(_ context.Context, msg string) { l.log("DEBUG", msg) }
func (l *componentLogger) Info(_ context.Context, msg string)  { l.log("INFO", msg) }
func (l *componentLogger) Warn(_ context.Context, msg string)  { l.log("WARN", msg) }
func (l *componentLogger) Error(_ context.Context, msg string) { l.log("ERROR", msg) }

func (l *componentLogger) Debugf(_ context.Context, template string, args ...any) {
	l.log("DEBUG", fmt.Sprintf(template, args...))
}

func (l *componentLogger) Infof(_ context.Context, template string, args ...any) {
	l.log("INFO", fmt.Sprintf(template, args...))
}

func (l *componentLogger) Warnf(_ context.Context, template string, args ...any) {
	l.log("WARN", fmt.Sprintf(template, args...))
}

func (l *componentLogger) Errorf(_ context.Context, template string, args ...any) {
	l.log("ERROR", fmt.Sprintf(template, args...))
}

func (l *componentLogger) WithComponent(component string) Logger {
	return &componentLogger{parent: l.parent, component: l.component + "." + component}
}

func (l *componentLogger) Sync() error {
	return nil
}
