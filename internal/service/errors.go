package service

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers branch on these with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrStateConflict = errors.New("state conflict")
)

// Error is a typed outcome from a service operation. Msg is safe to show
// to API callers.
type Error struct {
	Kind error
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func invalid(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func notFound(op, what string) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: what + " not found"}
}

func conflict(op, format string, args ...any) error {
	return &Error{Kind: ErrStateConflict, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Message returns the caller-facing text of err, or "" if err is not a
// service Error.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Msg
	}
	return ""
}
