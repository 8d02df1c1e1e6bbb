package api

import (
	"errors"
	"fmt"
)

// ErrNoCredential is returned without contacting the service when no bearer
// token is available.
var ErrNoCredential = errors.New("no credential available")

// AuthError indicates that the server rejected the bearer credential.
// It is returned by the client when a 401 response is received.
type AuthError struct {
	Method  string
	Path    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication failed (401) on %s %s", e.Method, e.Path)
	}
	return fmt.Sprintf("authentication failed (401) on %s %s: %s", e.Method, e.Path, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Error is a non-2xx response from the service. Message holds the
// server-provided explanation, which callers such as the mark-attempt
// classifier interpret.
type Error struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error (%d) on %s %s: %s", e.Status, e.Method, e.Path, e.Message)
}

// ErrorResponse is the JSON error body returned by the service. Some
// endpoints use "message", others "error".
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Text returns the first non-empty explanation in the body.
func (r ErrorResponse) Text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}
