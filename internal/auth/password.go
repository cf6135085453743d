package auth

import (
	"golang.org/x/crypto/bcrypt"
)

const (
	// bcryptCost of 12 provides good security while keeping hashing time
	// reasonable.
	bcryptCost = 12

	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt input limit
)

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password with a stored hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidPassword reports whether a password is acceptable for registration.
func ValidPassword(password string) bool {
	return len(password) >= minPasswordLength && len(password) <= maxPasswordLength
}
