package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/eventleads/server/internal/domain/identity"
	"github.com/eventleads/server/internal/domain/token"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvitationRepository persists invitations. Consume carries the same
// atomic single-update contract as the token ledger; the organization
// seat assignment rides on the winning update.
type InvitationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *InvitationRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const invitationColumns = `id, org_id, email, role, token, expires_at, consumed_at, created_by, created_at`

func (r *InvitationRepository) Create(ctx context.Context, inv identity.Invitation) (identity.Invitation, error) {
	row := r.queryer().QueryRow(ctx, `
INSERT INTO invitations (org_id, email, role, token, expires_at, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+invitationColumns+`
`, inv.OrgID, inv.Email, inv.Role, inv.Token, inv.ExpiresAt, nullableString(inv.IssuerID))
	created, err := scanInvitation(row)
	if err != nil {
		return identity.Invitation{}, fmt.Errorf("create invitation: %w", err)
	}
	return *created, nil
}

func (r *InvitationRepository) Lookup(ctx context.Context, raw string) (*identity.Invitation, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT `+invitationColumns+`
  FROM invitations
 WHERE token = $1
 LIMIT 1
`, raw)
	inv, err := scanInvitation(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup invitation: %w", err)
	}
	return inv, nil
}

func (r *InvitationRepository) Consume(ctx context.Context, raw string) (token.ConsumeOutcome, *identity.Invitation, error) {
	q := r.queryer()

	row := q.QueryRow(ctx, `
UPDATE invitations
   SET consumed_at = now()
 WHERE token = $1 AND consumed_at IS NULL AND expires_at > now()
RETURNING `+invitationColumns+`
`, raw)
	inv, err := scanInvitation(row)
	if err == nil {
		return token.OutcomeConsumed, inv, nil
	}
	if err != pgx.ErrNoRows {
		return token.OutcomeNotFound, nil, fmt.Errorf("consume invitation: %w", err)
	}

	row = q.QueryRow(ctx, `
SELECT `+invitationColumns+`
  FROM invitations
 WHERE token = $1
 LIMIT 1
`, raw)
	inv, err = scanInvitation(row)
	if err == pgx.ErrNoRows {
		return token.OutcomeNotFound, nil, nil
	}
	if err != nil {
		return token.OutcomeNotFound, nil, fmt.Errorf("consume invitation lookup: %w", err)
	}
	return token.Classify(inv.ConsumedAt, inv.ExpiresAt, time.Now()), inv, nil
}

func (r *InvitationRepository) CountForOrgSince(ctx context.Context, orgID string, since time.Time) (int, error) {
	var count int
	err := r.queryer().QueryRow(ctx, `
SELECT COUNT(*) FROM invitations WHERE org_id = $1 AND created_at >= $2
`, orgID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count invitations: %w", err)
	}
	return count, nil
}

func scanInvitation(row pgx.Row) (*identity.Invitation, error) {
	var data struct {
		ID         string
		OrgID      string
		Email      string
		Role       string
		Token      string
		ExpiresAt  time.Time
		ConsumedAt *time.Time
		CreatedBy  *string
		CreatedAt  time.Time
	}
	if err := row.Scan(
		&data.ID,
		&data.OrgID,
		&data.Email,
		&data.Role,
		&data.Token,
		&data.ExpiresAt,
		&data.ConsumedAt,
		&data.CreatedBy,
		&data.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &identity.Invitation{
		ID:         data.ID,
		OrgID:      data.OrgID,
		Email:      data.Email,
		Role:       data.Role,
		Token:      data.Token,
		ExpiresAt:  data.ExpiresAt,
		ConsumedAt: data.ConsumedAt,
		IssuerID:   derefString(data.CreatedBy),
		CreatedAt:  data.CreatedAt,
	}, nil
}
