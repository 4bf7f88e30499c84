package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned from a connection, adapter or client
// matches exactly one of these with errors.Is.
var (
	ErrConfiguration        = errors.New("configuration error")
	ErrAuthentication       = errors.New("authentication error")
	ErrNetwork              = errors.New("network error")
	ErrValidation           = errors.New("validation error")
	ErrRemote               = errors.New("remote error")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// Error carries the kind of failure together with the originating
// HTTP status and the raw body returned by the API (if any).
type Error struct {
	Kind       error
	Op         string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Op != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Op)
		sb.WriteString(")")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if len(e.Body) > 0 {
		sb.WriteString(": ")
		sb.Write(e.Body)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind as well as the wrapped cause.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// NewError creates an error of the given kind.
func NewError(kind error, op string, err error) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

// Errorf creates an error of the given kind with a formatted message.
func Errorf(kind error, op string, format string, args ...any) *Error {
	return NewError(kind, op, fmt.Errorf(format, args...))
}

// StatusCode returns the HTTP status attached to err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// Body returns the raw API payload attached to err, or nil.
func Body(err error) []byte {
	var e *Error
	if errors.As(err, &e) {
		return e.Body
	}
	return nil
}
