// Package corerr provides a small system-level error wrapper shared across
// packages that aren't tool calls or channel sends (schedulers, guards,
// stores) and so have no natural home in channels.ErrorCode or
// agent.ToolErrorType. It follows the same code+message+cause shape those
// two packages already use.
package corerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a system-level error for logging and response mapping.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindTimeout          Kind = "timeout"
	KindPermissionDenied Kind = "permission_denied"
	KindUnavailable      Kind = "unavailable"
	KindInternal         Kind = "internal"
	KindInvalid          Kind = "invalid"
)

// Error is a structured error carrying a Kind for classification plus an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is a corerr.Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
