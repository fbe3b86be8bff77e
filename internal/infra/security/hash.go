package security

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes new passwords with Argon2id and verifies both Argon2id
// hashes and bcrypt hashes carried over from accounts created before the switch.
type PasswordHasher struct {
	argon *Argon2Hasher
}

// NewPasswordHasher builds a hasher with the supplied Argon2id parameters.
func NewPasswordHasher(cfg Argon2Config) (*PasswordHasher, error) {
	argon, err := NewArgon2Hasher(cfg)
	if err != nil {
		return nil, err
	}
	return &PasswordHasher{argon: argon}, nil
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("hash: password must not be empty")
	}
	return h.argon.Hash(password)
}

// Verify reports whether password matches encoded. Unknown formats are an error.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, argon2Variant+"$"):
		return h.argon.Verify(password, encoded)
	case isBcrypt(encoded):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("bcrypt: %w", err)
		}
		return true, nil
	default:
		return false, errInvalidHashFormat
	}
}

func isBcrypt(encoded string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, prefix) {
			return true
		}
	}
	return false
}

// SecureCompare compares two secrets in constant time.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
