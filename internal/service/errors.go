// Package service holds the reservation lifecycle engine: validation,
// pricing, reference allocation and the status state machine, plus the
// flight inventory service.  It depends on the repository ports only.
package service

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a service failure.  Handlers map each kind to an HTTP
// status.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotCancellable    Kind = "not_cancellable"
	KindConflict          Kind = "conflict"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal"
)

// FieldError names one rejected input field.  Field uses dotted paths with
// indices, e.g. "passengers[1].birthDate".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the error type returned by every service operation.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, &service.Error{Kind: service.KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func validationError(fields []FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "reservation request is invalid", Fields: fields}
}

func notFound(what, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", what, id)}
}

func conflict(msg string, err error) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: err}
}

func forbidden() *Error {
	return &Error{Kind: KindForbidden, Message: "you do not have access to this reservation"}
}

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}
