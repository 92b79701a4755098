// Package apierr provides the error taxonomy shared by every layer of the
// client: token exchange, request building, transport and response parsing.
// The CLI layer wraps these with user-facing hints.
package apierr

import (
	"errors"
	"fmt"
)

// Error is a structured error for client operations.
type Error struct {
	Code       string // Error code (e.g., "auth", "api")
	Message    string // Error message
	HTTPStatus int    // HTTP status code if a response was received
	Reason     string // HTTP reason phrase
	Body       []byte // Raw response body, if any
	APICode    string // Provider error_code
	Request    string // Provider "request" field (the failing endpoint)
	Cause      error  // Underlying error
}

func (e *Error) Error() string {
	switch {
	case e.Code == CodeAPI && e.APICode != "":
		return fmt.Sprintf("[error:%s occur when request %q]: %s", e.APICode, e.Request, e.Message)
	case e.Cause != nil && e.Message != "":
		return e.Message + ": " + e.Cause.Error()
	case e.Cause != nil:
		return e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes.
const (
	CodeAuth       = "auth"
	CodeValidation = "validation"
	CodeTransport  = "transport"
	CodeAPI        = "api"
)

// Error constructors.

// ErrAuth creates a token-exchange or signing error.
func ErrAuth(msg string) *Error {
	return &Error{Code: CodeAuth, Message: msg}
}

// ErrAuthStatus creates an auth error for a non-200 token endpoint response.
func ErrAuthStatus(status int, reason string, body []byte) *Error {
	return &Error{
		Code:       CodeAuth,
		Message:    fmt.Sprintf("oauth error: %d %s", status, reason),
		HTTPStatus: status,
		Reason:     reason,
		Body:       body,
	}
}

// ErrAuthCause creates an auth error that wraps a lower-level failure.
func ErrAuthCause(msg string, cause error) *Error {
	return &Error{Code: CodeAuth, Message: msg, Cause: cause}
}

// ErrValidation creates a local precondition error. No request was sent.
func ErrValidation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ErrTransport creates an error for a response that could not be interpreted.
func ErrTransport(status int, reason string, body []byte) *Error {
	return &Error{
		Code:       CodeTransport,
		Message:    fmt.Sprintf("errcode: %d, reason: %s, html: %s", status, reason, body),
		HTTPStatus: status,
		Reason:     reason,
		Body:       body,
	}
}

// ErrNetwork creates a transport error for a failed connection or I/O.
func ErrNetwork(cause error) *Error {
	return &Error{
		Code:    CodeTransport,
		Message: "network error",
		Cause:   cause,
	}
}

// ErrIO creates a transport error for a local read or write failure that
// happened while a request was being assembled or sent.
func ErrIO(msg string, cause error) *Error {
	return &Error{Code: CodeTransport, Message: msg, Cause: cause}
}

// ErrAPI creates a provider error from a {error_code, error, request} payload.
func ErrAPI(status int, code, request, msg string) *Error {
	return &Error{
		Code:       CodeAPI,
		Message:    msg,
		HTTPStatus: status,
		APICode:    code,
		Request:    request,
	}
}

// As returns err as an *Error if one is anywhere in its chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func hasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// IsAuth reports whether err is an auth error.
func IsAuth(err error) bool { return hasCode(err, CodeAuth) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

// IsTransport reports whether err is a transport error.
func IsTransport(err error) bool { return hasCode(err, CodeTransport) }

// IsAPI reports whether err is a provider API error.
func IsAPI(err error) bool { return hasCode(err, CodeAPI) }
