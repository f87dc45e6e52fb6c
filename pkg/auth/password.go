package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// ErrWeakPassword marks password policy failures so handlers can map
// them to a validation response.
var ErrWeakPassword = errors.New("password does not meet requirements")

const (
	BcryptCost     = 12
	MinPasswordLen = 8
	MaxPasswordLen = 128

	ResetCodeDigits = 6
)

// HashPassword hashes a plaintext password with bcrypt.
// Plaintext is never persisted anywhere.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword checks a plaintext password against a bcrypt hash.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword enforces password length bounds.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, MinPasswordLen)
	}
	if len(password) > MaxPasswordLen {
		return fmt.Errorf("%w: must be at most %d characters", ErrWeakPassword, MaxPasswordLen)
	}
	return nil
}

// GenerateResetCode returns a random 6-digit numeric code, zero-padded.
func GenerateResetCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < ResetCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate reset code: %w", err)
	}
	return fmt.Sprintf("%0*d", ResetCodeDigits, n), nil
}

// HashResetCode hashes a reset code for storage; codes are verified by
// bcrypt comparison, never stored in plaintext.
func HashResetCode(code string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(code), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash reset code: %w", err)
	}
	return string(hashedBytes), nil
}

// CompareResetCode checks a plaintext reset code against its stored hash.
func CompareResetCode(hashedCode, code string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedCode), []byte(code))
}
