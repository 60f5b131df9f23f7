// Package logger is the structured logger used across postbox.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger logs a message with alternating key/value pairs, or a formatted message.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Debugf(format string, args ...any)
	Info(msg string, keysAndValues ...any)
	Infof(format string, args ...any)
	Warn(msg string, keysAndValues ...any)
	Warnf(format string, args ...any)
	Error(msg string, keysAndValues ...any)
	Errorf(format string, args ...any)
	With(keysAndValues ...any) Logger
	WithComponent(componentName string) Logger
	Sync() error
}

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// ZapLogger implements Logger over a sugared zap logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a zap backed logger. level is one of debug, info, warn, error;
// format is json or console.
func New(level, format string) (Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "", FormatJSON:
		cfg = zap.NewProductionConfig()
	case FormatConsole:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q (expected %s or %s)", format, FormatJSON, FormatConsole)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &ZapLogger{sugar: z.Sugar()}, nil
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) Logger {
	return &ZapLogger{sugar: z.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) { l.sugar.Debugw(msg, keysAndValues...) }
func (l *ZapLogger) Debugf(format string, args ...any)      { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Info(msg string, keysAndValues ...any)  { l.sugar.Infow(msg, keysAndValues...) }
func (l *ZapLogger) Infof(format string, args ...any)       { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Warn(msg string, keysAndValues ...any)  { l.sugar.Warnw(msg, keysAndValues...) }
func (l *ZapLogger) Warnf(format string, args ...any)       { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Error(msg string, keysAndValues ...any) { l.sugar.Errorw(msg, keysAndValues...) }
func (l *ZapLogger) Errorf(format string, args ...any)      { l.sugar.Errorf(format, args...) }

func (l *ZapLogger) With(keysAndValues ...any) Logger {
	return &ZapLogger{sugar: l.sugar.With(keysAndValues...)}
}

func (l *ZapLogger) WithComponent(componentName string) Logger {
	return &ZapLogger{sugar: l.sugar.With("component", componentName)}
}

func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
