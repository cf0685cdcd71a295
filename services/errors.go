package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure. Handlers map kinds to status codes.
type Kind string

const (
	KindInvalidInput       Kind = "InvalidInput"
	KindNotFound           Kind = "NotFound"
	KindNotAMember         Kind = "NotAMember"
	KindForbidden          Kind = "Forbidden"
	KindMatchNotActive     Kind = "MatchNotActive"
	KindPreconditionFailed Kind = "PreconditionFailed"
	KindConflict           Kind = "Conflict"
	KindStorageUnavailable Kind = "StorageUnavailable"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can test against the
// sentinel values below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrNotAMember         = &Error{Kind: KindNotAMember}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrMatchNotActive     = &Error{Kind: KindMatchNotActive}
	ErrPreconditionFailed = &Error{Kind: KindPreconditionFailed}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// storageError wraps a store failure, translating not-found into kind NotFound.
func storageError(what string, err error) error {
	if errors.Is(err, ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Message: what + " not found", Err: err}
	}
	return &Error{Kind: KindStorageUnavailable, Message: "failed to access " + what, Err: err}
}

// KindOf returns the kind carried by err, or StorageUnavailable for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStorageUnavailable
}
