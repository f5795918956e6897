package log

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCliLogger creates a logger for the CLI run.
//   - Info messages go to stdout, warnings and errors to stderr.
//   - Debug messages are shown only in the verbose mode.
//   - If the logFile is set, all messages, including debug, are written to it.
func NewCliLogger(stdout io.Writer, stderr io.Writer, logFile *File, verbose bool) Logger {
	var cores []zapcore.Core

	if logFile != nil {
		cores = append(cores, fileCore(logFile))
	}

	cores = append(cores, stdoutCore(stdout, verbose))
	cores = append(cores, stderrCore(stderr))

	return loggerFromZap(zap.New(zapcore.NewTee(cores...)))
}

// stdoutCore prints debug (if verbose) and info messages without timestamps.
func stdoutCore(stdout io.Writer, verbose bool) zapcore.Core {
	minLevel := InfoLevel
	if verbose {
		minLevel = DebugLevel
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = ""
	encoderCfg.LevelKey = ""
	encoderCfg.CallerKey = ""
	encoderCfg.NameKey = ""
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	return zapcore.NewCore(encoder, zapcore.AddSync(stdout), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= minLevel && l < WarnLevel
	}))
}

// stderrCore prints warnings and errors with the level prefix.
func stderrCore(stderr io.Writer) zapcore.Core {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = ""
	encoderCfg.CallerKey = ""
	encoderCfg.NameKey = ""
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	return zapcore.NewCore(encoder, zapcore.AddSync(stderr), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= WarnLevel
	}))
}

// fileCore writes all messages with timestamps to the run log file.
func fileCore(logFile *File) zapcore.Core {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoder := zapcore.NewConsoleEncoder(encoderCfg)
	return zapcore.NewCore(encoder, zapcore.AddSync(logFile.File()), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return true
	}))
}
