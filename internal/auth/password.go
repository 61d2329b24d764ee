package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// hashScheme discriminates the stored hash format. New hashes are always
// bcrypt; the legacy scheme survives only for verification of accounts
// migrated from the previous platform.
type hashScheme int

const (
	schemeUnknown hashScheme = iota
	schemeBcrypt
	schemeLegacySHA256
)

const bcryptCost = bcrypt.DefaultCost

// schemeOf inspects the format marker on a stored hash. This is the only
// place that branches on the hash format.
func schemeOf(stored, salt string) hashScheme {
	switch {
	case stored == "":
		return schemeUnknown
	case strings.HasPrefix(stored, "$2"):
		return schemeBcrypt
	case salt != "":
		return schemeLegacySHA256
	default:
		return schemeUnknown
	}
}

// HashPassword produces a bcrypt hash for new or updated passwords.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a candidate password against a stored hash,
// dispatching on the hash's format marker. Legacy hashes are hex-encoded
// SHA-256 over salt+password.
func VerifyPassword(salt, stored, password string) bool {
	switch schemeOf(stored, salt) {
	case schemeBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	case schemeLegacySHA256:
		sum := sha256.Sum256([]byte(salt + password))
		candidate := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(candidate), []byte(stored)) == 1
	default:
		return false
	}
}
