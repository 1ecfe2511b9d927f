// Package apperr defines the error kinds shared across the identity,
// conversation and strategy services. Callers classify failures with
// errors.Is against these sentinels; the HTTP layer maps them to status codes.
package apperr

import "errors"

var (
	// ErrValidation marks malformed or missing input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrDuplicate marks a uniqueness violation (e.g. an email already registered).
	ErrDuplicate = errors.New("duplicate error")
	// ErrAuth marks bad credentials or an invalid/expired token. The wrapped
	// message is intentionally uninformative to prevent account enumeration.
	ErrAuth = errors.New("auth error")
	// ErrAccess marks an authenticated caller lacking rights for the target.
	ErrAccess = errors.New("access error")
	// ErrNotFound marks a reference to an entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrState marks an operation invalid for the conversation's current status.
	ErrState = errors.New("invalid state")
	// ErrUnsupportedStrategy marks a persona configured with a reply-strategy
	// key that has no registered handler. A configuration defect, never retried.
	ErrUnsupportedStrategy = errors.New("unsupported strategy")
)
