// Package apperrors defines the error kinds handlers map to HTTP statuses.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindInvalidRequest Kind = "invalid_request"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindInternal       Kind = "internal"
)

// Error carries a kind, an optional offending field and a user-facing message.
// Err holds the underlying cause and is never shown to clients.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinel values for errors.Is checks against a kind.
var (
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden    = &Error{Kind: KindForbidden, Message: "forbidden"}
)

// Is lets errors.Is(err, ErrNotFound) hold for every not-found error
// regardless of message. The same applies to the other sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return isSentinel(t) && t.Kind == e.Kind
}

func isSentinel(e *Error) bool {
	return e == ErrNotFound || e == ErrUnauthorized || e == ErrForbidden
}

func Invalid(field, message string) *Error {
	return &Error{Kind: KindInvalidRequest, Field: field, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(field, message string) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Internal wraps a cause behind a generic message.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the kind of err, defaulting to KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
