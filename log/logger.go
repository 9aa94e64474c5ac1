package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

// LogLevel represents logging severity
type LogLevel int

const (
	// LogLevelDebug for prompts, raw responses and per-call timings
	LogLevelDebug LogLevel = iota
	// LogLevelInfo for stage progress
	LogLevelInfo
	// LogLevelWarn for recovered failures such as a failed research step
	LogLevelWarn
	// LogLevelError for fatal pipeline errors
	LogLevelError
	// LogLevelNone disables all logging
	LogLevelNone
)

// Logger is the leveled printf-style logger used by every researchflow component.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// DefaultLogger implements Logger using Go's standard log package
type DefaultLogger struct {
	logger *log.Logger
	level  LogLevel
}

// NewDefaultLogger creates a logger writing to stderr.
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	return NewCustomLogger(os.Stderr, level)
}

// NewCustomLogger creates a logger with custom output
func NewCustomLogger(out io.Writer, level LogLevel) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(out, "[researchflow] ", log.LstdFlags),
		level:  level,
	}
}

func (l *DefaultLogger) Debug(format string, v ...any) { l.logf(LogLevelDebug, format, v...) }
func (l *DefaultLogger) Info(format string, v ...any)  { l.logf(LogLevelInfo, format, v...) }
func (l *DefaultLogger) Warn(format string, v ...any)  { l.logf(LogLevelWarn, format, v...) }
func (l *DefaultLogger) Error(format string, v ...any) { l.logf(LogLevelError, format, v...) }

func (l *DefaultLogger) logf(level LogLevel, format string, v ...any) {
	if l.level > level {
		return
	}
	l.logger.Printf("["+level.String()+"] "+format, v...)
}

// NoOpLogger is a logger that doesn't log anything
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}

// prefixed prepends a fixed tag to every message.
type prefixed struct {
	tag  string
	next Logger
}

// WithPrefix returns a Logger that tags every message, e.g. with a run id.
func WithPrefix(logger Logger, tag string) Logger {
	if logger == nil {
		logger = defaultLogger
	}
	return &prefixed{tag: "[" + tag + "] ", next: logger}
}

func (p *prefixed) Debug(format string, v ...any) { p.next.Debug(p.tag+format, v...) }
func (p *prefixed) Info(format string, v ...any)  { p.next.Info(p.tag+format, v...) }
func (p *prefixed) Warn(format string, v ...any)  { p.next.Warn(p.tag+format, v...) }
func (p *prefixed) Error(format string, v ...any) { p.next.Error(p.tag+format, v...) }

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// ParseLevel maps a config/flag value ("debug", "info", ...) to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch s {
	case "debug", "DEBUG":
		return LogLevelDebug, nil
	case "", "info", "INFO":
		return LogLevelInfo, nil
	case "warn", "WARN", "warning":
		return LogLevelWarn, nil
	case "error", "ERROR":
		return LogLevelError, nil
	case "none", "NONE", "off":
		return LogLevelNone, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Package-level logger (default is DefaultLogger with info level)
var defaultLogger Logger = NewDefaultLogger(LogLevelInfo)

// SetDefaultLogger sets the package-level logger
func SetDefaultLogger(logger Logger) {
	defaultLogger = logger
}

// GetDefaultLogger returns the current package-level logger
func GetDefaultLogger() Logger {
	return defaultLogger
}

// OrDefault returns logger, or the package-level logger when logger is nil.
func OrDefault(logger Logger) Logger {
	if logger == nil {
		return defaultLogger
	}
	return logger
}

func Debug(format string, v ...any) { defaultLogger.Debug(format, v...) }
func Info(format string, v ...any)  { defaultLogger.Info(format, v...) }
func Warn(format string, v ...any)  { defaultLogger.Warn(format, v...) }
func Error(format string, v ...any) { defaultLogger.Error(format, v...) }
