package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/eventleads/server/internal/domain/token"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenRepository is the single-use token ledger. Consume is one
// conditional UPDATE so that concurrent attempts on the same token yield
// exactly one winner; losers classify the surviving row.
type TokenRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *TokenRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const tokenColumns = `id, user_id, kind, token, expires_at, consumed_at, created_at`

func (r *TokenRepository) Issue(ctx context.Context, subjectID string, kind token.Kind, ttl time.Duration) (token.Token, error) {
	value, err := token.NewValue()
	if err != nil {
		return token.Token{}, fmt.Errorf("issue token value: %w", err)
	}

	row := r.queryer().QueryRow(ctx, `
INSERT INTO auth_tokens (user_id, kind, token, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING `+tokenColumns+`
`, subjectID, string(kind), value, time.Now().Add(ttl))

	issued, err := scanToken(row)
	if err != nil {
		return token.Token{}, fmt.Errorf("issue token: %w", err)
	}
	return *issued, nil
}

func (r *TokenRepository) Lookup(ctx context.Context, raw string, kind token.Kind) (*token.Token, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT `+tokenColumns+`
  FROM auth_tokens
 WHERE token = $1 AND kind = $2
 LIMIT 1
`, raw, string(kind))
	tok, err := scanToken(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	return tok, nil
}

func (r *TokenRepository) Consume(ctx context.Context, raw string, kind token.Kind) (token.ConsumeOutcome, *token.Token, error) {
	q := r.queryer()

	row := q.QueryRow(ctx, `
UPDATE auth_tokens
   SET consumed_at = now()
 WHERE token = $1 AND kind = $2 AND consumed_at IS NULL AND expires_at > now()
RETURNING `+tokenColumns+`
`, raw, string(kind))
	tok, err := scanToken(row)
	if err == nil {
		return token.OutcomeConsumed, tok, nil
	}
	if err != pgx.ErrNoRows {
		return token.OutcomeNotFound, nil, fmt.Errorf("consume token: %w", err)
	}

	// the update did not win: classify whatever row exists
	row = q.QueryRow(ctx, `
SELECT `+tokenColumns+`
  FROM auth_tokens
 WHERE token = $1 AND kind = $2
 LIMIT 1
`, raw, string(kind))
	tok, err = scanToken(row)
	if err == pgx.ErrNoRows {
		return token.OutcomeNotFound, nil, nil
	}
	if err != nil {
		return token.OutcomeNotFound, nil, fmt.Errorf("consume token lookup: %w", err)
	}
	return token.Classify(tok.ConsumedAt, tok.ExpiresAt, time.Now()), tok, nil
}

func (r *TokenRepository) CountSince(ctx context.Context, subjectID string, kind token.Kind, since time.Time) (int, error) {
	var count int
	err := r.queryer().QueryRow(ctx, `
SELECT COUNT(*) FROM auth_tokens
 WHERE user_id = $1 AND kind = $2 AND created_at >= $3
`, subjectID, string(kind), since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return count, nil
}

func (r *TokenRepository) LastIssuedAt(ctx context.Context, subjectID string, kind token.Kind) (*time.Time, error) {
	var last *time.Time
	err := r.queryer().QueryRow(ctx, `
SELECT MAX(created_at) FROM auth_tokens WHERE user_id = $1 AND kind = $2
`, subjectID, string(kind)).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last token issuance: %w", err)
	}
	return last, nil
}

func scanToken(row pgx.Row) (*token.Token, error) {
	var data struct {
		ID         string
		SubjectID  string
		Kind       string
		Value      string
		ExpiresAt  time.Time
		ConsumedAt *time.Time
		CreatedAt  time.Time
	}
	if err := row.Scan(
		&data.ID,
		&data.SubjectID,
		&data.Kind,
		&data.Value,
		&data.ExpiresAt,
		&data.ConsumedAt,
		&data.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token.Token{
		ID:         data.ID,
		SubjectID:  data.SubjectID,
		Kind:       token.Kind(data.Kind),
		Value:      data.Value,
		ExpiresAt:  data.ExpiresAt,
		ConsumedAt: data.ConsumedAt,
		CreatedAt:  data.CreatedAt,
	}, nil
}
