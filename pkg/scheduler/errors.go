package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation classifies invalid trigger definitions.
	ErrValidation = errors.New("scheduler validation error")
	// ErrConflict classifies duplicate registrations and double starts.
	ErrConflict = errors.New("scheduler conflict")
)

func schedulerError(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}
