package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// maxNumberAttempts bounds retries when a generated number collides.
const maxNumberAttempts = 5

var licenseSerialSpace = big.NewInt(100_000_000)

// NumberGenerator produces a candidate license number. Uniqueness is
// enforced by storage; callers retry on collision.
type NumberGenerator func(now time.Time) (string, error)

// RandomLicenseNumber returns a number of the form DL-<year>-<8 digits>.
func RandomLicenseNumber(now time.Time) (string, error) {
	serial, err := rand.Int(rand.Reader, licenseSerialSpace)
	if err != nil {
		return "", fmt.Errorf("generate license number: %w", err)
	}
	return fmt.Sprintf("DL-%d-%08d", now.Year(), serial.Int64()), nil
}
