// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"net/http"
)

type Code struct {
	Name   string
	Status int
}

var (
	CodeBadRequest   = Code{"BAD_REQUEST", http.StatusBadRequest}
	CodeUnauthorized = Code{"UNAUTHORIZED", http.StatusUnauthorized}
	CodeForbidden    = Code{"FORBIDDEN", http.StatusForbidden}
	CodeNotFound     = Code{"NOT_FOUND", http.StatusNotFound}
	CodeRateLimited  = Code{"TOO_MANY_REQUESTS", http.StatusTooManyRequests}
	CodeBadGateway   = Code{"BAD_GATEWAY", http.StatusBadGateway}
	CodeInternal     = Code{"INTERNAL_SERVER_ERROR", http.StatusInternalServerError}
)

const MsgBillingUnavailable = "Billing is temporarily unavailable, please try again later"

type Error struct {
	Code    Code
	Message string
	// Fields maps input field names to validation messages.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Code: CodeBadRequest, Message: msg, Fields: fields}
}

// InvalidField is a validation error for a single input field.
func InvalidField(field, msg string) *Error {
	return Validation(msg, map[string]string{field: msg})
}

func Unauthenticated(msg string) *Error {
	return New(CodeUnauthorized, msg, nil)
}

func Forbidden(msg string) *Error {
	return New(CodeForbidden, msg, nil)
}

func NotFound(msg string) *Error {
	return New(CodeNotFound, msg, nil)
}

// External wraps a failure of a third-party service. An empty message falls
// back to a generic retry-later message.
func External(msg string, err error) *Error {
	if msg == "" {
		msg = MsgBillingUnavailable
	}
	return New(CodeBadGateway, msg, err)
}

func Internal(err error) *Error {
	return New(CodeInternal, "Something went wrong", err)
}

// As returns the *Error in err's chain, or an internal error wrapping err.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
