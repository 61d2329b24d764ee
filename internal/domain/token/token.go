package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// Kind partitions the ledger by use-case. All kinds share one shape and one
// consumption rule.
type Kind string

const (
	KindVerification Kind = "verification"
	KindReset        Kind = "reset"
	KindInvitation   Kind = "invitation"
)

// Token is an opaque, single-use, time-bounded credential proving possession
// of an email address or invitation. It transitions Issued → Consumed exactly
// once; tokens are never deleted by the lifecycle engine.
type Token struct {
	ID         string
	SubjectID  string
	Kind       Kind
	Value      string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
	IssuerID   string
}

// ConsumeOutcome is the four-way result of a consume attempt. The split
// between recent and stale repeats is what tolerates double-submission
// without opening a replay window.
type ConsumeOutcome int

const (
	OutcomeNotFound ConsumeOutcome = iota
	OutcomeConsumed
	OutcomeAlreadyConsumedRecently
	OutcomeAlreadyConsumedStale
	OutcomeExpired
)

func (o ConsumeOutcome) String() string {
	switch o {
	case OutcomeConsumed:
		return "consumed"
	case OutcomeAlreadyConsumedRecently:
		return "already_consumed_recently"
	case OutcomeAlreadyConsumedStale:
		return "already_consumed_stale"
	case OutcomeExpired:
		return "expired"
	default:
		return "not_found"
	}
}

// Success reports whether the outcome should be treated as a successful
// consumption by idempotent callers.
func (o ConsumeOutcome) Success() bool {
	return o == OutcomeConsumed || o == OutcomeAlreadyConsumedRecently
}

// GraceWindow is the interval after consumption during which a repeat
// consume call is still treated as success (double-click tolerance).
const GraceWindow = 2 * time.Second

// Classify maps the state of an already-persisted token row to a consume
// outcome for a caller that lost the atomic-update race (or retried). The
// winner of the race never calls Classify.
func Classify(consumedAt *time.Time, expiresAt, now time.Time) ConsumeOutcome {
	if consumedAt != nil {
		if now.Sub(*consumedAt) <= GraceWindow {
			return OutcomeAlreadyConsumedRecently
		}
		return OutcomeAlreadyConsumedStale
	}
	if !expiresAt.After(now) {
		return OutcomeExpired
	}
	// unconsumed and unexpired: the conditional update should have won
	return OutcomeNotFound
}

// Ledger is the persistence contract for single-use tokens. Consume must be
// implemented as a single atomic conditional update so that two concurrent
// calls for the same token yield exactly one OutcomeConsumed.
type Ledger interface {
	Issue(ctx context.Context, subjectID string, kind Kind, ttl time.Duration) (Token, error)
	Lookup(ctx context.Context, raw string, kind Kind) (*Token, error)
	Consume(ctx context.Context, raw string, kind Kind) (ConsumeOutcome, *Token, error)
	CountSince(ctx context.Context, subjectID string, kind Kind, since time.Time) (int, error)
	LastIssuedAt(ctx context.Context, subjectID string, kind Kind) (*time.Time, error)
}

// NewValue generates an opaque token value with 256 bits of entropy,
// URL-safe base64 encoded.
func NewValue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token value: %w", err)
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b), nil
}
