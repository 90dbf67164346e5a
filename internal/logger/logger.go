package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Level is the logging level.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// Logger is a leveled logger instance. It is passed into components rather
// than accessed as a package global; a nil Logger discards everything.
type Logger struct {
	level   Level
	logger  *log.Logger
	enabled bool
}

// New creates a logger writing to an optional file and/or the console.
func New(enabled bool, levelStr, logFile string, console bool) (*Logger, error) {
	if !enabled {
		return &Logger{enabled: false}, nil
	}

	level := parseLevel(levelStr)
	var writers []io.Writer

	if logFile != "" {
		dir := filepath.Dir(logFile)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
	}

	if console || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	return &Logger{
		level:   level,
		logger:  log.New(io.MultiWriter(writers...), "", 0),
		enabled: true,
	}, nil
}

// Nop returns a disabled logger, useful in tests.
func Nop() *Logger {
	return &Logger{enabled: false}
}

func parseLevel(levelStr string) Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func formatMessage(level Level, format string, args ...interface{}) string {
	levelStr := "INFO"
	switch level {
	case Debug:
		levelStr = "DEBUG"
	case Info:
		levelStr = "INFO"
	case Warn:
		levelStr = "WARN"
	case Error:
		levelStr = "ERROR"
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	return fmt.Sprintf("[%s] [%s] %s", ts, levelStr, msg)
}

// Debugf logs a debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil || !l.enabled || l.level > Debug {
		return
	}
	l.logger.Println(formatMessage(Debug, format, args...))
}

// Infof logs an info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil || !l.enabled || l.level > Info {
		return
	}
	l.logger.Println(formatMessage(Info, format, args...))
}

// Warnf logs a warning.
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil || !l.enabled || l.level > Warn {
		return
	}
	l.logger.Println(formatMessage(Warn, format, args...))
}

// Errorf logs an error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l == nil || !l.enabled || l.level > Error {
		return
	}
	l.logger.Println(formatMessage(Error, format, args...))
}
