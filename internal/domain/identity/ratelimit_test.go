package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eventleads/server/internal/domain/token"
	"github.com/stretchr/testify/require"
)

type stubHistory struct {
	last    *time.Time
	count   int
	lastErr error
	cntErr  error
}

func (s *stubHistory) CountSince(context.Context, string, token.Kind, time.Time) (int, error) {
	return s.count, s.cntErr
}

func (s *stubHistory) LastIssuedAt(context.Context, string, token.Kind) (*time.Time, error) {
	return s.last, s.lastErr
}

func newTestLimiter(h IssuanceHistory, now time.Time) *RateLimiter {
	l := NewRateLimiter(h)
	l.now = func() time.Time { return now }
	return l
}

func TestRateLimiterCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * time.Second)
	l := newTestLimiter(&stubHistory{last: &recent}, now)

	err := l.Check(context.Background(), "u1", token.KindVerification, 60*time.Second, 0)
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	require.Equal(t, ReasonCooldown, limited.Reason)
	require.Equal(t, 50*time.Second, limited.RetryAfter)
}

func TestRateLimiterCooldownElapsed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-2 * time.Minute)
	l := newTestLimiter(&stubHistory{last: &old}, now)

	err := l.Check(context.Background(), "u1", token.KindVerification, 60*time.Second, 0)
	require.NoError(t, err)
}

func TestRateLimiterDailyCap(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&stubHistory{count: 5}, now)

	err := l.Check(context.Background(), "u1", token.KindVerification, 0, 5)
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	require.Equal(t, ReasonDailyLimit, limited.Reason)
	require.Equal(t, time.Hour, limited.RetryAfter)
}

func TestRateLimiterUnderCap(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&stubHistory{count: 4}, now)

	require.NoError(t, l.Check(context.Background(), "u1", token.KindVerification, 0, 5))
}

func TestRateLimiterZeroDisables(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Second)
	l := newTestLimiter(&stubHistory{last: &recent, count: 1000}, now)

	require.NoError(t, l.Check(context.Background(), "u1", token.KindVerification, 0, 0))
}

func TestRateLimiterHistoryErrors(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	boom := errors.New("db down")

	l := newTestLimiter(&stubHistory{lastErr: boom}, now)
	err := l.Check(context.Background(), "u1", token.KindVerification, time.Minute, 5)
	require.ErrorIs(t, err, boom)

	l = newTestLimiter(&stubHistory{cntErr: boom}, now)
	err = l.Check(context.Background(), "u1", token.KindVerification, 0, 5)
	require.ErrorIs(t, err, boom)
}
