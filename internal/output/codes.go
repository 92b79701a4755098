// Package output provides JSON and styled terminal output plus CLI error handling.
package output

// Exit codes.
const (
	ExitOK        = 0 // Success
	ExitUsage     = 1 // Invalid arguments, flags or upload
	ExitNotFound  = 2 // Unknown provider, app or stored token
	ExitAuth      = 3 // Not authenticated or token rejected
	ExitRateLimit = 5 // Provider rate limit
	ExitNetwork   = 6 // Connection/DNS/timeout error
	ExitAPI       = 7 // Provider returned an error
)

// Error codes for the JSON envelope.
const (
	CodeUsage      = "usage"
	CodeValidation = "validation"
	CodeNotFound   = "not_found"
	CodeAuth       = "auth_required"
	CodeRateLimit  = "rate_limit"
	CodeNetwork    = "network"
	CodeAPI        = "api_error"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage, CodeValidation:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuth:
		return ExitAuth
	case CodeRateLimit:
		return ExitRateLimit
	case CodeNetwork:
		return ExitNetwork
	default:
		return ExitAPI
	}
}
