// Package logger is the logging entry point used across the module. It
// fronts the zerolog implementation in infrastructure/logging.
package logger

import (
	"github.com/dataask/dataask/core/domain/interfaces"
	"github.com/dataask/dataask/core/infrastructure/logging"
)

const (
	LogLevelError = logging.LogLevelError
	LogLevelWarn  = logging.LogLevelWarn
	LogLevelInfo  = logging.LogLevelInfo
	LogLevelDebug = logging.LogLevelDebug
)

// Logger is the tagged logger handed to components.
type Logger = interfaces.Logger

// New creates a logger for tag.
func New(tag string) Logger {
	return logging.New(tag)
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return logging.Nop()
}

// SetLogLevel sets the global log level.
func SetLogLevel(level int) {
	logging.SetLogLevel(level)
}

// SetTagFilter sets the comma-separated tag filter.
func SetTagFilter(filterStr string) {
	logging.SetTagFilter(filterStr)
}

// SetLogFile enables log file streaming and returns the file path.
func SetLogFile() (string, error) {
	return logging.SetLogFile()
}

// CloseLogFile closes the streamed log file.
func CloseLogFile() error {
	return logging.CloseLogFile()
}

// ParseLevel maps a level name to its number.
func ParseLevel(name string) (int, error) {
	return logging.ParseLevel(name)
}
