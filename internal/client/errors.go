package client

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflict marks a remote response indicating the requested entity
// already exists under the same unique identity. Callers recover through
// the create-or-reuse protocol instead of failing.
var ErrConflict = errors.New("entity already exists")

// ErrNotFound marks a 404 from the remote catalog.
var ErrNotFound = errors.New("entity not found")

// StatusError carries the HTTP status and body of a non-2xx response that
// is neither a conflict nor a not-found.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vtex: unexpected status %d: %s", e.Code, truncate(e.Body, 200))
}

// IsConflict reports whether err resulted from a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound reports whether err resulted from a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// statusToError maps a response to the error taxonomy. VTEX signals
// conflicts either as 409 or as 400 with an "already exists" message.
func statusToError(code int, body string) error {
	switch {
	case code == 409:
		return fmt.Errorf("status 409: %w", ErrConflict)
	case code == 400 && strings.Contains(strings.ToLower(body), "already exists"):
		return fmt.Errorf("status 400 (%s): %w", truncate(body, 120), ErrConflict)
	case code == 404:
		return ErrNotFound
	default:
		return &StatusError{Code: code, Body: body}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
