package domain

import "fmt"

// ValidationError reports a request the server refuses to process further
// (client outside the clients group, disallowed flow, bad redirect URI). It
// is recovered at the request boundary and surfaced to the caller as a
// description string; it never crashes the server.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "oauth: " + e.Reason }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports fatal misconfiguration detected at startup or
// deploy time. The server must refuse to activate the misconfigured endpoint
// rather than run degraded.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return "oauth config: " + e.Reason + ": " + e.Err.Error()
	}
	return "oauth config: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configf builds a ConfigurationError from a format string.
func Configf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ErrorResponse is an OAuth/OIDC protocol-level error carrying a
// ready-to-send response rather than free text. InvalidateSession asks the
// caller to drop the user's browser session along with delivering it.
type ErrorResponse struct {
	Code              string
	Description       string
	State             string
	InvalidateSession bool
}

func (e *ErrorResponse) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

// SigningError wraps a failure to sign a token. Never retried automatically:
// a deterministic signing failure cannot succeed on retry.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string { return "oauth: token signing failed: " + e.Err.Error() }
func (e *SigningError) Unwrap() error { return e.Err }
