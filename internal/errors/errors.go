// Package errors provides coded API errors.
//
// Services return *Error values; the GraphQL layer exposes Code and Details
// as error extensions and the HTTP layer maps Code to a status.
//
//	if user == nil {
//	    return nil, errors.ErrNotAuthenticated
//	}
//	return nil, errors.BadUserInput(err.Error()).WithDetails(map[string]any{"invalidArgs": title})
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
)

// Code is a machine-readable error code, surfaced as extensions.code.
type Code string

const (
	CodeBadUserInput    Code = "BAD_USER_INPUT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeBadRequest      Code = "BAD_REQUEST"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeInternal        Code = "INTERNAL"
)

// HTTPStatus returns the status used when an error of this code aborts a
// whole request. Resolver errors inside a GraphQL response are still 200.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeBadUserInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is an API error with a code, message, and optional details.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Code and Message, so copies made by
// WithDetails or WithCause still match their sentinel while sentinels that
// share a code stay distinct. Use CodeOf to classify by code alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code && e.Message == t.Message
	}
	return false
}

// Extensions is read by the GraphQL executor and merged into the error's
// "extensions" object.
func (e *Error) Extensions() map[string]interface{} {
	ext := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		ext[k] = v
	}
	ext["code"] = string(e.Code)
	return ext
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

var (
	ErrNotAuthenticated   = &Error{Code: CodeUnauthenticated, Message: "not authenticated"}
	ErrInvalidCredentials = &Error{Code: CodeBadUserInput, Message: "incorrect credentials"}
	ErrInvalidToken       = &Error{Code: CodeUnauthenticated, Message: "invalid token"}
	ErrTokenExpired       = &Error{Code: CodeUnauthenticated, Message: "token expired"}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: "too many requests"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
)

// BadUserInput creates an input error with a custom message.
func BadUserInput(msg string) *Error {
	return &Error{Code: CodeBadUserInput, Message: msg}
}

// BadUserInputf creates an input error with a formatted message.
func BadUserInputf(format string, args ...any) *Error {
	return &Error{Code: CodeBadUserInput, Message: fmt.Sprintf(format, args...)}
}

// BadRequest creates a transport-level error for malformed requests.
func BadRequest(msg string) *Error {
	return &Error{Code: CodeBadRequest, Message: msg}
}

// NotFoundf creates a not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps err as an internal error. The cause is kept for logging
// but never shown to clients.
func Internal(err error) *Error {
	return ErrInternal.WithCause(err)
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
