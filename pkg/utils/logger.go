package utils

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// LogLevel is a logging severity threshold.
type LogLevel int

const (
	// LevelDebug is the debug log level.
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level.
	LevelInfo
	// LevelWarn is the warning log level.
	LevelWarn
	// LevelError is the error log level.
	LevelError
)

// String returns the string representation of LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a level name, defaulting to LevelInfo for anything
// unrecognized. Used by pkg/config's LogSection.Logger to turn a
// configured level string into a LogLevel without failing startup on a
// typo.
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO":
		return LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the injection seam internal/forest.Forest logs through via
// Forest.SetLogger. Every implementation must also answer WithField/
// WithFields so call sites can attach structured context without
// type-asserting down to a concrete logger.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// NullLogger discards everything. It is Forest's default logger: a library
// stays silent until a caller opts into logging.
type NullLogger struct{}

// Debug does nothing.
func (l *NullLogger) Debug(msg string, args ...interface{}) {}

// Info does nothing.
func (l *NullLogger) Info(msg string, args ...interface{}) {}

// Warn does nothing.
func (l *NullLogger) Warn(msg string, args ...interface{}) {}

// Error does nothing.
func (l *NullLogger) Error(msg string, args ...interface{}) {}

// WithField returns the same NullLogger.
func (l *NullLogger) WithField(key string, value interface{}) Logger {
	return l
}

// WithFields returns the same NullLogger.
func (l *NullLogger) WithFields(fields map[string]interface{}) Logger {
	return l
}

// StdLogger wraps the standard library logger with a level threshold and
// attached fields, for callers that want forest diagnostics on stdout/a
// file instead of an OpenTelemetry backend.
type StdLogger struct {
	mu     sync.Mutex
	logger *log.Logger
	level  LogLevel
	fields map[string]interface{}
}

// NewStdLogger creates a StdLogger at the given level, writing to output.
func NewStdLogger(level LogLevel, output io.Writer) *StdLogger {
	return &StdLogger{
		logger: log.New(output, "", log.LstdFlags|log.Lmicroseconds),
		level:  level,
		fields: make(map[string]interface{}),
	}
}

func (l *StdLogger) log(level LogLevel, msg string, args ...interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	formatted := fmt.Sprintf(msg, args...)
	for k, v := range l.fields {
		formatted += fmt.Sprintf(" %s=%v", k, v)
	}
	l.logger.Printf("[%s] %s", level, formatted)
}

// Debug logs a debug message.
func (l *StdLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message.
func (l *StdLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *StdLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *StdLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// WithField creates a new logger with key=value merged into its fields.
func (l *StdLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields creates a new logger with fields merged into its own.
func (l *StdLogger) WithFields(fields map[string]interface{}) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &StdLogger{logger: l.logger, level: l.level, fields: merged}
}
