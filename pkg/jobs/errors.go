package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation classifies malformed submissions and options.
	ErrValidation = errors.New("jobs validation error")
	// ErrNotFound classifies unknown queues, jobs and leases.
	ErrNotFound = errors.New("jobs not found")
	// ErrConflict classifies illegal state transitions.
	ErrConflict = errors.New("jobs conflict")
	// ErrRetryable classifies transient backend failures that may succeed on retry.
	ErrRetryable = errors.New("jobs retryable error")
	// ErrClosed classifies operations on an already closed queue.
	ErrClosed = errors.New("jobs closed")
)

func jobsError(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}
