package auth

import (
	"errors"
	"testing"
	"time"
)

func TestJWTGenerateValidate(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "issuer")
	jwtToken, err := manager.Generate("user-1", "org-1", "Admin")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := manager.Validate(jwtToken)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Subject != "user-1" || claims.OrgID != "org-1" || claims.Role != "Admin" {
		t.Fatalf("unexpected claims: %#v", claims)
	}
}

func TestJWTExpiryIsExplicit(t *testing.T) {
	manager := NewJWTManager("secret", 8*time.Hour, "issuer")
	jwtToken, err := manager.Generate("user-1", "org-1", "User")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := manager.Validate(jwtToken)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining < 8*time.Hour-time.Minute || remaining > 8*time.Hour+time.Minute {
		t.Fatalf("expected ~8h expiry, got %v", remaining)
	}
}

func TestJWTValidateExpired(t *testing.T) {
	manager := NewJWTManager("secret", -time.Minute, "issuer")
	jwtToken, err := manager.Generate("user-1", "", "User")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := manager.Validate(jwtToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error for expired token, got %v", err)
	}
}

func TestJWTValidateWrongSecret(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "issuer")
	jwtToken, err := manager.Generate("user-1", "org-1", "User")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	other := NewJWTManager("different", time.Hour, "issuer")
	if _, err := other.Validate(jwtToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestJWTGenerateInvalid(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "issuer")
	if _, err := manager.Generate("", "org-1", "Admin"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestJWTValidateMissing(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "issuer")
	if _, err := manager.Validate(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestTokenFromHeader(t *testing.T) {
	if _, err := TokenFromHeader("nope"); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
	if token, err := TokenFromHeader("Bearer token"); err != nil || token != "token" {
		t.Fatalf("expected token, got %s err %v", token, err)
	}
}
