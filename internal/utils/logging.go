package utils

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// LoggerOptions configures InitLogger.
type LoggerOptions struct {
	Level           string
	Output          io.Writer
	Prefix          string
	ReportTimestamp bool
}

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   = log.Default()
)

// InitLogger builds a charmbracelet logger. Output defaults to stderr.
func InitLogger(opts LoggerOptions) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return log.NewWithOptions(out, log.Options{
		Level:           parseLevel(opts.Level),
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.ReportTimestamp,
	})
}

// InitDefaultLogger builds a stderr logger at SHAI_LOG_LEVEL (default warn).
func InitDefaultLogger() *log.Logger {
	level := os.Getenv("SHAI_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	return InitLogger(LoggerOptions{Level: level})
}

// SetDefaultLogger replaces the process-wide logger, including log.Default().
func SetDefaultLogger(l *log.Logger) {
	if l == nil {
		return
	}
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = l
	log.SetDefault(l)
}

// GetDefaultLogger returns the process-wide logger.
func GetDefaultLogger() *log.Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

func parseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}
