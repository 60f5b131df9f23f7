package logger

// NoOpLogger implements Logger with no-op methods to avoid nil pointer panics.
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, keysAndValues ...any)    {}
func (l *NoOpLogger) Debugf(format string, args ...any)         {}
func (l *NoOpLogger) Info(msg string, keysAndValues ...any)     {}
func (l *NoOpLogger) Infof(format string, args ...any)          {}
func (l *NoOpLogger) Warn(msg string, keysAndValues ...any)     {}
func (l *NoOpLogger) Warnf(format string, args ...any)          {}
func (l *NoOpLogger) Error(msg string, keysAndValues ...any)    {}
func (l *NoOpLogger) Errorf(format string, args ...any)         {}
func (l *NoOpLogger) With(keysAndValues ...any) Logger          { return l }
func (l *NoOpLogger) WithComponent(componentName string) Logger { return l }
func (l *NoOpLogger) Sync() error                               { return nil }

func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

// EnsureLogger returns the logger if not nil, otherwise returns a no-op logger.
func EnsureLogger(logger Logger) Logger {
	if logger == nil {
		return NewNoOpLogger()
	}
	return logger
}
