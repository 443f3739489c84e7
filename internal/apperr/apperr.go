// Package apperr defines the failure taxonomy shared by every layer of the
// store. Each failure carries a Kind so the tool boundary can report a tagged
// error without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind tags a failure.
type Kind string

const (
	InvalidArgument   Kind = "invalid_argument"
	NotFound          Kind = "not_found"
	WorkspaceNotFound Kind = "workspace_not_found"
	Duplicate         Kind = "duplicate"
	StorageIO         Kind = "storage_io"
)

// Sentinels for errors.Is checks. They match any *Error of the same Kind.
var (
	ErrInvalidArgument   = &Error{Kind: InvalidArgument}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrWorkspaceNotFound = &Error{Kind: WorkspaceNotFound}
	ErrDuplicate         = &Error{Kind: Duplicate}
	ErrStorageIO         = &Error{Kind: StorageIO}
)

// Error is a tagged failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// New returns a tagged error with a formatted message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags err. A nil err yields nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost tagged error in the chain.
// Untagged errors are reported as StorageIO since only the persistence layer
// produces them.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return StorageIO
}

// Invalid is shorthand for New(InvalidArgument, ...).
func Invalid(format string, args ...any) error {
	return New(InvalidArgument, format, args...)
}

// Missing is shorthand for New(NotFound, ...).
func Missing(format string, args ...any) error {
	return New(NotFound, format, args...)
}
