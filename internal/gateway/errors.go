package gateway

import (
	"errors"
	"fmt"
)

// NetworkError indicates the request never produced a response: DNS
// failure, refused connection, timeout, cancelled context.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error on %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError indicates the backend rejected the bearer token (HTTP 401).
// It is terminal for the session: callers must clear credentials and
// re-authenticate rather than retry.
type AuthError struct {
	Op string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (401) on %s", e.Op)
}

// ServerError indicates a non-2xx response other than 401, carrying the
// backend's error message when one was present in the body.
type ServerError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d) on %s: %s", e.Status, e.Op, e.Message)
	}
	return fmt.Sprintf("server error (%d) on %s", e.Status, e.Op)
}

// ValidationError indicates a client-side precondition failed before any
// network I/O, e.g. an empty reply body.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ReplyError wraps a failed reply send with the server's message so the
// UI can show it inline.
type ReplyError struct {
	EmailID string
	Message string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("reply to %s failed: %s", e.EmailID, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsNetworkError reports whether err is a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
