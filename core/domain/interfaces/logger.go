package interfaces

// Logger is the tagged logger every package writes through. Leveled
// methods are filtered by the process log level; Success is always shown.
type Logger interface {
	Error(message string)
	Errorf(format string, args ...any)
	Warn(message string)
	Warnf(format string, args ...any)
	Info(message string)
	Infof(format string, args ...any)
	Debug(message string)
	Debugf(format string, args ...any)

	Success(message string)
	Successf(format string, args ...any)

	// PrintError logs err as a structured field under title
	PrintError(title string, err error)

	// With returns a logger that attaches key=value to every entry
	With(key string, value any) Logger
}
