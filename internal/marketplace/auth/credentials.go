package auth

import (
	"errors"
	"fmt"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

// HashPassword returns the bcrypt hash stored as an account's credential.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", e.Invalid("credential", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	if len(password) > 72 {
		return "", e.Invalid("credential", "must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash credential: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a password with its stored hash. A mismatch is
// ErrUnauthenticated.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return e.ErrUnauthenticated
	}
	if err != nil {
		return fmt.Errorf("%w: %v", e.ErrUnauthenticated, err)
	}
	return nil
}
