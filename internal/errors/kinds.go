package errors

import stderrors "errors"

// Error kinds. Domain packages wrap one of these into their sentinels so Map
// can pick a status code without importing them.
var (
	ErrInvalid         = stderrors.New("invalid argument")
	ErrNotFound        = stderrors.New("not found")
	ErrPermission      = stderrors.New("permission denied")
	ErrPrecondition    = stderrors.New("failed precondition")
	ErrUnauthenticated = stderrors.New("unauthenticated")
	ErrExhausted       = stderrors.New("resource exhausted")

	// ErrRetryable marks transient failures: the input is intact and the
	// operation may be retried as is.
	ErrRetryable = stderrors.New("temporarily unavailable")
)
