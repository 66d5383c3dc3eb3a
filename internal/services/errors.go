package services

import (
	"errors"
	"fmt"
)

// Kind classifies a core failure so the boundary can pick a status without
// parsing messages.
type Kind string

const (
	KindAuthenticationRequired Kind = "authentication_required"
	KindAuthorizationDenied    Kind = "authorization_denied"
	KindNotFound               Kind = "not_found"
	KindValidation             Kind = "validation"
	KindBusinessRule           Kind = "business_rule"
	KindConflict               Kind = "conflict"
)

// Error is the typed error every service returns for expected failures.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind. A conflict also matches ErrBusinessRule since callers
// handle both the same way.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindConflict && t.Kind == KindBusinessRule
}

var (
	ErrAuthenticationRequired = &Error{Kind: KindAuthenticationRequired, Message: "authentication required"}
	ErrAuthorizationDenied    = &Error{Kind: KindAuthorizationDenied, Message: "insufficient permissions"}
	ErrNotFound               = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation             = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrBusinessRule           = &Error{Kind: KindBusinessRule, Message: "business rule violated"}
	ErrConflict               = &Error{Kind: KindConflict, Message: "concurrent update conflict"}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func authRequired(format string, args ...any) error {
	return newError(KindAuthenticationRequired, format, args...)
}

func denied(format string, args ...any) error {
	return newError(KindAuthorizationDenied, format, args...)
}

func notFound(format string, args ...any) error {
	return newError(KindNotFound, format, args...)
}

func invalid(format string, args ...any) error {
	return newError(KindValidation, format, args...)
}

func ruleViolation(format string, args ...any) error {
	return newError(KindBusinessRule, format, args...)
}

func conflict(err error, format string, args ...any) error {
	e := newError(KindConflict, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of a service error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
