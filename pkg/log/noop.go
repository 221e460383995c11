package log

// NoopLogger discards everything. It is the logger components fall back to
// when none is configured.
type NoopLogger struct{}

// NewNoopLogger returns a no-op logger.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (NoopLogger) Debug(string, ...Field) {}
func (NoopLogger) Info(string, ...Field)  {}
func (NoopLogger) Warn(string, ...Field)  {}
func (NoopLogger) Error(string, ...Field) {}

// OrNoop returns l, or a no-op logger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}

// isNoop reports whether l drops every message, so scoping it is wasted work.
func isNoop(l Logger) bool {
	switch l.(type) {
	case nil, NoopLogger, *NoopLogger:
		return true
	}
	return false
}
