package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/eventleads/server/internal/domain/token"
)

// IssuanceHistory is the slice of a token ledger the rate limiter consults:
// when the subject last requested an issuance and how many it has made in a
// trailing window.
type IssuanceHistory interface {
	CountSince(ctx context.Context, subjectID string, kind token.Kind, since time.Time) (int, error)
	LastIssuedAt(ctx context.Context, subjectID string, kind token.Kind) (*time.Time, error)
}

const dailyWindow = 24 * time.Hour

// defaultDailyRetryAfter is the retry hint when the daily cap is hit. The
// history interface does not expose the oldest issuance in the window, so
// the hint is a fixed hour rather than an exact expiry.
const defaultDailyRetryAfter = time.Hour

// RateLimiter is a pure check over issuance history: a short cooldown
// against immediately-repeated requests and a longer trailing-24h cap.
//
// The check is best-effort, not a hard guarantee: two concurrent requests
// from the same subject may both pass before either commits a token row,
// so the limiter may silently under-count under concurrency. The ceiling
// is an abuse throttle, not a security boundary.
type RateLimiter struct {
	history IssuanceHistory
	now     func() time.Time
}

func NewRateLimiter(history IssuanceHistory) *RateLimiter {
	return &RateLimiter{history: history, now: time.Now}
}

// Check returns nil when the subject may issue another token of the given
// kind, or a *RateLimitedError carrying the reason and a retry-after hint.
// A zero cooldown or cap disables that half of the check.
func (l *RateLimiter) Check(ctx context.Context, subjectID string, kind token.Kind, cooldown time.Duration, dailyCap int) error {
	now := l.now()

	if cooldown > 0 {
		last, err := l.history.LastIssuedAt(ctx, subjectID, kind)
		if err != nil {
			return fmt.Errorf("rate limit cooldown check: %w", err)
		}
		if last != nil {
			elapsed := now.Sub(*last)
			if elapsed < cooldown {
				return &RateLimitedError{Reason: ReasonCooldown, RetryAfter: cooldown - elapsed}
			}
		}
	}

	if dailyCap > 0 {
		count, err := l.history.CountSince(ctx, subjectID, kind, now.Add(-dailyWindow))
		if err != nil {
			return fmt.Errorf("rate limit daily check: %w", err)
		}
		if count >= dailyCap {
			return &RateLimitedError{Reason: ReasonDailyLimit, RetryAfter: defaultDailyRetryAfter}
		}
	}

	return nil
}
