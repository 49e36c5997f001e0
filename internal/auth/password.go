// Package auth covers password hashing, JWT token pairs, and API keys.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing.
	BcryptCost = 12

	// MinPasswordLength is the minimum required password length.
	MinPasswordLength = 8
)

// HashPassword generates a bcrypt hash from a plain text password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash compares a plain text password with a stored hash.
// Bcrypt hashes are the norm; hex SHA-256(salt || password) hashes from
// older installs still verify so existing users can log in before their
// hash is upgraded on next password change.
func CheckPasswordHash(password, hash, salt string) bool {
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	sum := sha256.Sum256([]byte(salt + password))
	legacy := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(legacy), []byte(strings.ToLower(hash))) == 1
}

// ValidatePasswordComplexity checks if a password meets length requirements.
func ValidatePasswordComplexity(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	return nil
}
