package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/dataask/dataask/core/domain/interfaces"
)

// Levels, lowest number is most severe.
const (
	LogLevelError = 1
	LogLevelWarn  = 2
	LogLevelInfo  = 3
	LogLevelDebug = 4
)

// LogDir is where SetLogFile writes streamed logs.
const LogDir = "/tmp/.dataask/logs"

// Logger is the interface exported from this package
type Logger = interfaces.Logger

// state is the process-wide logging setup. Loggers read level on every
// call, and tags plus output only at construction.
var state = struct {
	sync.RWMutex
	level int
	tags  []string
	file  *os.File
	out   io.Writer
}{level: LogLevelInfo, out: os.Stdout}

// SetLogLevel sets the global level; out-of-range values are ignored.
func SetLogLevel(level int) {
	if level < LogLevelError || level > LogLevelDebug {
		return
	}
	state.Lock()
	state.level = level
	state.Unlock()
}

func currentLevel() int {
	state.RLock()
	defer state.RUnlock()
	return state.level
}

// ParseLevel maps a level name (error, warn, info, debug) to its number.
func ParseLevel(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "", "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	}
	return 0, fmt.Errorf("unknown log level '%s'", name)
}

// SetTagFilter sets the tag filter from a comma-separated list. A tag
// prefixed with '-' is excluded along with its subtags ("scheduler"
// covers "scheduler:runner"); any plain tag turns the filter into an
// allowlist.
func SetTagFilter(filter string) {
	var tags []string
	for _, tag := range strings.Split(filter, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	state.Lock()
	state.tags = tags
	state.Unlock()
}

func shouldLogTag(tag string) bool {
	state.RLock()
	defer state.RUnlock()

	covers := func(filter string) bool {
		return tag == filter || strings.HasPrefix(tag, filter+":")
	}
	allowlist, allowed := false, false
	for _, f := range state.tags {
		if excluded, ok := strings.CutPrefix(f, "-"); ok {
			if covers(excluded) {
				return false
			}
			continue
		}
		allowlist = true
		allowed = allowed || covers(f)
	}
	return allowed || !allowlist
}

// SetLogFile tees output of loggers created afterwards into a new file
// under LogDir and returns its path.
func SetLogFile() (string, error) {
	if err := os.MkdirAll(LogDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("dataask-%s-%d.log", time.Now().UTC().Format("20060102T150405"), os.Getpid())
	path := filepath.Join(LogDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", err
	}

	state.Lock()
	defer state.Unlock()
	if state.file != nil {
		_ = state.file.Close()
	}
	state.file = file
	state.out = io.MultiWriter(os.Stdout, file)
	return path, nil
}

// CloseLogFile stops streaming to the log file, if any.
func CloseLogFile() error {
	state.Lock()
	defer state.Unlock()
	if state.file == nil {
		return nil
	}
	err := state.file.Close()
	state.file = nil
	state.out = os.Stdout
	return err
}

// ZerologLogger implements Logger on top of zerolog
type ZerologLogger struct {
	logger zerolog.Logger
}

// New creates a logger tagged with tag. Filtered tags get a no-op logger.
// Output is human-readable on a terminal and JSON lines otherwise.
func New(tag string) Logger {
	if !shouldLogTag(tag) {
		return Nop()
	}
	state.RLock()
	out := state.out
	state.RUnlock()
	if term.IsTerminal(int(os.Stdout.Fd())) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02T15:04:05.000Z"}
	}
	return &ZerologLogger{logger: zerolog.New(out).With().Str("tag", tag).Timestamp().Logger()}
}

// NewWithWriter creates a logger that writes JSON lines to w regardless of
// the terminal.
func NewWithWriter(tag string, w io.Writer) Logger {
	return &ZerologLogger{logger: zerolog.New(w).With().Str("tag", tag).Logger()}
}

// event returns nil below the current level; zerolog events are nil-safe.
func (l *ZerologLogger) event(level int) *zerolog.Event {
	if level > currentLevel() {
		return nil
	}
	switch level {
	case LogLevelError:
		return l.logger.Error()
	case LogLevelWarn:
		return l.logger.Warn()
	case LogLevelInfo:
		return l.logger.Info()
	default:
		return l.logger.Debug()
	}
}

func (l *ZerologLogger) Error(msg string)                  { l.event(LogLevelError).Msg(msg) }
func (l *ZerologLogger) Errorf(format string, args ...any) { l.event(LogLevelError).Msgf(format, args...) }
func (l *ZerologLogger) Warn(msg string)                   { l.event(LogLevelWarn).Msg(msg) }
func (l *ZerologLogger) Warnf(format string, args ...any)  { l.event(LogLevelWarn).Msgf(format, args...) }
func (l *ZerologLogger) Info(msg string)                   { l.event(LogLevelInfo).Msg(msg) }
func (l *ZerologLogger) Infof(format string, args ...any)  { l.event(LogLevelInfo).Msgf(format, args...) }
func (l *ZerologLogger) Debug(msg string)                  { l.event(LogLevelDebug).Msg(msg) }
func (l *ZerologLogger) Debugf(format string, args ...any) { l.event(LogLevelDebug).Msgf(format, args...) }

// Success and Successf log regardless of the configured level.
func (l *ZerologLogger) Success(msg string) {
	l.logger.WithLevel(zerolog.NoLevel).Str("status", "success").Msg(msg)
}

func (l *ZerologLogger) Successf(format string, args ...any) {
	l.logger.WithLevel(zerolog.NoLevel).Str("status", "success").Msgf(format, args...)
}

// PrintError logs err as a structured field under title.
func (l *ZerologLogger) PrintError(title string, err error) {
	if err != nil {
		l.event(LogLevelError).Err(err).Msg(title)
	}
}

func (l *ZerologLogger) With(key string, value any) Logger {
	return &ZerologLogger{logger: l.logger.With().Interface(key, value).Logger()}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Error(string)              {}
func (noOpLogger) Errorf(string, ...any)     {}
func (noOpLogger) Warn(string)               {}
func (noOpLogger) Warnf(string, ...any)      {}
func (noOpLogger) Info(string)               {}
func (noOpLogger) Infof(string, ...any)      {}
func (noOpLogger) Success(string)            {}
func (noOpLogger) Successf(string, ...any)   {}
func (noOpLogger) Debug(string)              {}
func (noOpLogger) Debugf(string, ...any)     {}
func (noOpLogger) PrintError(string, error)  {}
func (n noOpLogger) With(string, any) Logger { return n }
