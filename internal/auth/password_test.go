package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestHashAndVerifyBcrypt(t *testing.T) {
	hash, err := HashPassword("pw123456")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected bcrypt format marker, got %q", hash)
	}

	if !VerifyPassword("", hash, "pw123456") {
		t.Fatal("expected bcrypt verification to succeed")
	}
	if VerifyPassword("", hash, "wrong-password") {
		t.Fatal("expected bcrypt verification to fail")
	}
}

func TestVerifyLegacySaltedSHA256(t *testing.T) {
	salt := "abc123"
	sum := sha256.Sum256([]byte(salt + "pw123456"))
	legacy := hex.EncodeToString(sum[:])

	if !VerifyPassword(salt, legacy, "pw123456") {
		t.Fatal("expected legacy verification to succeed")
	}
	if VerifyPassword(salt, legacy, "other") {
		t.Fatal("expected legacy verification to fail on wrong password")
	}
	// a legacy-shaped hash with no salt is unverifiable
	if VerifyPassword("", legacy, "pw123456") {
		t.Fatal("expected verification to fail without salt")
	}
}

func TestVerifyEmptyHash(t *testing.T) {
	// credentials pre-provisioned by invitation have no password yet
	if VerifyPassword("", "", "anything") {
		t.Fatal("expected verification to fail for empty hash")
	}
}
