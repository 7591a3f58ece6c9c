package services

import (
	"errors"
	"fmt"

	"github.com/dlms-org/apiserver/internal/store"
)

// Business errors returned by the services. Handlers translate them into
// structured responses; only ErrUnavailable should surface as a 5xx.
var (
	ErrNotFound          = store.ErrNotFound
	ErrConflict          = store.ErrConflict
	ErrIneligibleUser    = errors.New("user is not eligible for a license")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyIssued     = errors.New("license already issued")
	ErrNoExistingLicense = errors.New("user has no existing license")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnavailable       = errors.New("storage unavailable")
)

// storeErr keeps not-found and conflict errors as they are and marks
// everything else as a retryable backend failure.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
}

// found reports whether a lookup returned a record, treating ErrNotFound as
// a plain "no" rather than a failure.
func found(op string, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
