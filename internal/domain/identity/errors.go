package identity

import (
	"errors"
	"fmt"
	"time"
)

// Typed lifecycle failures. Every branch surfaces one of these with a
// stable reason code; there is no generic internal-error swallowing except
// around audit writes and outbound email.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnverified         = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpired            = errors.New("token expired")
	ErrAlreadyConsumed    = errors.New("token already consumed")
	ErrForbidden          = errors.New("admin role required")
	ErrInvalidRole        = errors.New("invalid role")
	ErrMissingOrg         = errors.New("missing organization context")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 200 characters")
)

const (
	// ReasonCooldown rejects immediately-repeated requests.
	ReasonCooldown = "cooldown"
	// ReasonDailyLimit rejects after the trailing-24h cap is reached.
	ReasonDailyLimit = "daily_limit"
)

// RateLimitedError reports a throttled issuance request with a retry hint.
type RateLimitedError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (%s), retry after %s", e.Reason, e.RetryAfter)
}

// validatePassword enforces the length-only password policy.
func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if len(password) > 200 {
		return ErrPasswordTooLong
	}
	return nil
}
