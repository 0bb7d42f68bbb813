// Package password derives and verifies salted password hashes. The derived
// key and the salt are stored in separate columns on the user record.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters, based on OWASP recommendations.
const (
	memory      = 64 * 1024
	iterations  = 3
	parallelism = 2
	saltLength  = 16
	keyLength   = 32
)

// Derive generates a fresh random salt and returns the base64-encoded
// derived key and salt.
func Derive(password string) (encrypted, salt string, err error) {
	rawSalt := make([]byte, saltLength)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), rawSalt, iterations, memory, parallelism, keyLength)

	return base64.RawStdEncoding.EncodeToString(key),
		base64.RawStdEncoding.EncodeToString(rawSalt),
		nil
}

// Verify re-derives the key from the candidate password and the stored salt
// and compares in constant time.
func Verify(password, encrypted, salt string) (bool, error) {
	rawSalt, err := base64.RawStdEncoding.DecodeString(salt)
	if err != nil {
		return false, fmt.Errorf("invalid stored salt: %w", err)
	}
	stored, err := base64.RawStdEncoding.DecodeString(encrypted)
	if err != nil {
		return false, fmt.Errorf("invalid stored password: %w", err)
	}

	key := argon2.IDKey([]byte(password), rawSalt, iterations, memory, parallelism, keyLength)

	return subtle.ConstantTimeCompare(stored, key) == 1, nil
}
