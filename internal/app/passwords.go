package app

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordIterations = 100_000
	passwordKeyLength  = 32
	passwordSaltBytes  = 32
)

// GenerateSalt returns a fresh random salt as a hex string.
func GenerateSalt() (string, error) {
	raw := make([]byte, passwordSaltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// HashPassword derives a PBKDF2-SHA256 hash of the password with the given
// hex salt. An empty salt generates a new one. Returns (hash, salt).
func HashPassword(password, salt string) (string, string, error) {
	if salt == "" {
		generated, err := GenerateSalt()
		if err != nil {
			return "", "", err
		}
		salt = generated
	}

	key := pbkdf2.Key([]byte(password), []byte(salt), passwordIterations, passwordKeyLength, sha256.New)
	return hex.EncodeToString(key), salt, nil
}

// VerifyPassword reports whether password matches the stored hash and salt.
func VerifyPassword(password, storedHash, salt string) bool {
	computed, _, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
