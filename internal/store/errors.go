package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness rule,
	// e.g. a second current license for the same user.
	ErrConflict = errors.New("conflict")

	// ErrDuplicateNumber is returned when a generated license number is already taken.
	ErrDuplicateNumber = errors.New("duplicate license number")

	// ErrStaleState is returned when a conditional update found the record
	// in a state other than the one it expected.
	ErrStaleState = errors.New("stale state")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"

	constraintLicenseNumber = "licenses_number_key"
)

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		if pqErr.Constraint == constraintLicenseNumber {
			return ErrDuplicateNumber
		}
		return ErrConflict
	case pqForeignKeyViolation:
		return ErrNotFound
	default:
		return err
	}
}
