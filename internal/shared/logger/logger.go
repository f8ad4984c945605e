package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

// Logger provides a simple leveled key/value logging interface
type Logger struct {
	logger   *log.Logger
	minLevel int
}

// NewLogger creates a new logger instance. Verbosity comes from LOG_LEVEL
// (debug, info, warn, error); the default is info.
func NewLogger() *Logger {
	return &Logger{
		logger:   log.New(os.Stdout, "delivery-service ", log.LstdFlags|log.Lmsgprefix),
		minLevel: levelFromEnv(os.Getenv("LOG_LEVEL")),
	}
}

func levelFromEnv(value string) int {
	switch strings.ToLower(value) {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.print(levelDebug, "DEBUG", msg, keysAndValues)
}

// Info logs an informational message
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.print(levelInfo, "INFO", msg, keysAndValues)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.print(levelWarn, "WARN", msg, keysAndValues)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.print(levelError, "ERROR", msg, keysAndValues)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.logger.Printf("[FATAL] %s%s", msg, formatPairs(keysAndValues))
	os.Exit(1)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return nil
}

func (l *Logger) print(level int, tag, msg string, keysAndValues []interface{}) {
	if level < l.minLevel {
		return
	}
	l.logger.Printf("[%s] %s%s", tag, msg, formatPairs(keysAndValues))
}

// formatPairs renders key/value arguments as " key=value" pairs. A trailing
// odd argument is printed bare rather than dropped.
func formatPairs(keysAndValues []interface{}) string {
	if len(keysAndValues) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, " %v", keysAndValues[i])
		}
	}
	return b.String()
}
