package output

import (
	"errors"
	"fmt"

	"github.com/weibokit/weibo/pkg/weibo/apierr"
)

// Error is a structured error with code, message, and optional hint.
type Error struct {
	Code       string
	Message    string
	Hint       string
	HTTPStatus int
	APICode    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

// Error constructors for common cases.

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrUsageHint(msg, hint string) *Error {
	return &Error{Code: CodeUsage, Message: msg, Hint: hint}
}

func ErrNotFound(resource, identifier string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

func ErrNotFoundHint(resource, identifier, hint string) *Error {
	e := ErrNotFound(resource, identifier)
	e.Hint = hint
	return e
}

func ErrAuth(msg string) *Error {
	return &Error{
		Code:    CodeAuth,
		Message: msg,
		Hint:    "Run: weibo auth login",
	}
}

func ErrNetwork(cause error) *Error {
	return &Error{
		Code:    CodeNetwork,
		Message: "Network error",
		Hint:    cause.Error(),
		Cause:   cause,
	}
}

func ErrAPI(status int, msg string) *Error {
	return &Error{
		Code:       CodeAPI,
		Message:    msg,
		HTTPStatus: status,
	}
}

// Provider error codes meaning "out of rate limit".
var rateLimitCodes = map[string]bool{
	"10022": true, // IP requests out of rate limit
	"10023": true, // User requests out of rate limit
	"10024": true, // User requests for this API out of rate limit
}

// FromClientError converts a client library error to a CLI error.
func FromClientError(e *apierr.Error) *Error {
	out := &Error{
		Message:    e.Error(),
		HTTPStatus: e.HTTPStatus,
		APICode:    e.APICode,
		Cause:      e,
	}
	switch e.Code {
	case apierr.CodeAuth:
		out.Code = CodeAuth
		out.Hint = "Run: weibo auth login"
	case apierr.CodeValidation:
		out.Code = CodeValidation
	case apierr.CodeTransport:
		if e.HTTPStatus == 0 {
			out.Code = CodeNetwork
			if e.Cause != nil {
				out.Hint = e.Cause.Error()
			}
		} else {
			out.Code = CodeAPI
		}
	case apierr.CodeAPI:
		out.Code = CodeAPI
		if rateLimitCodes[e.APICode] {
			out.Code = CodeRateLimit
			out.Hint = "Try again later"
		}
	default:
		out.Code = CodeAPI
	}
	return out
}

// AsError attempts to convert an error to an *Error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if ce, ok := apierr.As(err); ok {
		return FromClientError(ce)
	}
	return &Error{
		Code:    CodeAPI,
		Message: err.Error(),
		Cause:   err,
	}
}
