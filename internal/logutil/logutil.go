package logutil

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	logger  = log.NewWithOptions(os.Stderr, log.Options{Prefix: "postfan", ReportTimestamp: true, Level: log.InfoLevel})
	verbose bool
	mu      sync.RWMutex
)

// SetVerbose adjusts the global logging level.
func SetVerbose(enable bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = enable
	if enable {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

// Verbose reports whether verbose logging is enabled.
func Verbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetLevel parses and applies a level name such as "debug" or "warn".
func SetLevel(name string) error {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	verbose = level <= log.DebugLevel
	logger.SetLevel(level)
	return nil
}

// SetFormat switches between human readable and JSON output.
func SetFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		logger.SetFormatter(log.TextFormatter)
	case FormatJSON:
		logger.SetFormatter(log.JSONFormatter)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Debugf logs a debug message when verbose logging is enabled.
func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...any) {
	logger.Warnf(format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...any) {
	logger.Errorf(format, args...)
}

// Debug logs msg with key/value pairs.
func Debug(msg string, keyvals ...any) { logger.Debug(msg, keyvals...) }

// Info logs msg with key/value pairs.
func Info(msg string, keyvals ...any) { logger.Info(msg, keyvals...) }

// Warn logs msg with key/value pairs.
func Warn(msg string, keyvals ...any) { logger.Warn(msg, keyvals...) }

// Error logs msg with key/value pairs.
func Error(msg string, keyvals ...any) { logger.Error(msg, keyvals...) }
