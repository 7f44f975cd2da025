// internal/auth/errors.go
package auth

import "fmt"

// ConfigError marks a malformed or unsupported auth descriptor. It is a
// static program error: never retried, never downgraded.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "auth config: " + e.Reason }

// AuthError is a token-acquisition failure. Body carries the raw token
// endpoint response when one was received, for diagnosis; it never contains
// the secret or a usable token.
type AuthError struct {
	TenantID string
	AuthType string
	Body     string
	Err      error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("token acquisition failed for tenant %s (%s)", e.TenantID, e.AuthType)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }
