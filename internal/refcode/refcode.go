package refcode

import (
	"errors"
	"fmt"
	"math/rand"

	"gorm.io/gorm"

	"drawwin/internal/apperr"
)

const (
	// Prefix is shown to members in front of the 5-digit number.
	Prefix = "DW"

	// MaxAttempts bounds the collision retry loop. The address space is
	// 100,000 codes so collisions are rare, but concurrent allocation
	// makes the retry mandatory.
	MaxAttempts = 5
)

// Generate returns a candidate reference code of the form "DW" + 5 decimal
// digits. Uniqueness is the caller's problem: attempt the insert and retry
// on a duplicate-key failure.
func Generate() string {
	return fmt.Sprintf("%s%05d", Prefix, rand.Intn(100000))
}

// Allocate calls insert with fresh candidates until one sticks. A
// duplicate-key failure triggers another attempt; any other error aborts
// immediately. Exhausting MaxAttempts fails with reference_exhausted.
func Allocate(insert func(code string) error) (string, error) {
	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		code := Generate()
		err := insert(code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", err
		}
		lastErr = err
	}
	return "", apperr.Wrap(apperr.KindExhausted, "reference_exhausted",
		"could not allocate a unique reference code", lastErr)
}
