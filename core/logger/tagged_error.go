package logger

import "errors"

// ExitFailure is the process status for errors that carry no explicit code.
const ExitFailure = 1

// TaggedError routes a command error to the logger tag it belongs to and
// the process exit status the CLI should use.
type TaggedError struct {
	Tag  string
	Code int
	Err  error
}

func (e *TaggedError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *TaggedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithTag wraps err with a logger tag. A nil err stays nil.
func WithTag(tag string, err error) error {
	return WithExitCode(tag, ExitFailure, err)
}

// WithExitCode is WithTag with a specific exit status.
func WithExitCode(tag string, code int, err error) error {
	if err == nil {
		return nil
	}
	return &TaggedError{Tag: tag, Code: code, Err: err}
}

func outermost(err error) *TaggedError {
	var tagged *TaggedError
	if errors.As(err, &tagged) {
		return tagged
	}
	return nil
}

// ErrorTag returns the tag of the outermost TaggedError in the chain, or "".
func ErrorTag(err error) string {
	if t := outermost(err); t != nil {
		return t.Tag
	}
	return ""
}

// ExitCode maps err to a process exit status: 0 for nil, the tagged code
// when present, ExitFailure otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if t := outermost(err); t != nil && t.Code > 0 {
		return t.Code
	}
	return ExitFailure
}
