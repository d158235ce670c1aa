// Package apperr defines the error taxonomy shared by the POS services and the HTTP layer.
package apperr

import (
	"errors"
	"maps"

	"github.com/gofiber/fiber/v2"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindRetryable    Kind = "retryable"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindInternal     Kind = "internal"
)

// Action tells a client what the operator should do next.
type Action string

const (
	ActionFixInput     Action = "fix_input"
	ActionRetry        Action = "retry"
	ActionContactAdmin Action = "contact_admin"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Action  Action
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so copies made by WithDetails or Wrap still compare equal to the sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = maps.Clone(details)
	return &cp
}

func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func (e *Error) Retryable() bool { return e.Kind == KindRetryable }

func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindConflict, KindRetryable:
		return fiber.StatusConflict
	case KindNotFound:
		return fiber.StatusNotFound
	case KindForbidden:
		return fiber.StatusForbidden
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func newError(kind Kind, action Action, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Action: action}
}

func Validation(code, msg string) *Error {
	return newError(KindValidation, ActionFixInput, code, msg)
}

func Conflict(code, msg string) *Error {
	return newError(KindConflict, ActionFixInput, code, msg)
}

// AdminConflict is a conflict only an administrator can resolve (e.g. fiscal authorization problems).
func AdminConflict(code, msg string) *Error {
	return newError(KindConflict, ActionContactAdmin, code, msg)
}

func Retryable(code, msg string) *Error {
	return newError(KindRetryable, ActionRetry, code, msg)
}

func NotFound(code, msg string) *Error {
	return newError(KindNotFound, ActionFixInput, code, msg)
}

func Forbidden(code, msg string) *Error {
	return newError(KindForbidden, ActionContactAdmin, code, msg)
}

func Internal(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    "internal_error",
		Message: "Error interno del servidor",
		Action:  ActionContactAdmin,
		Err:     err,
	}
}

// From returns err as *Error, treating anything unclassified as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
