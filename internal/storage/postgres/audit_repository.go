package postgres

import (
	"context"
	"fmt"

	"github.com/eventleads/server/internal/audit"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository appends auth events. Inserts only; the lifecycle never
// reads the trail back and rows are never updated or deleted.
type AuditRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *AuditRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *AuditRepository) Insert(ctx context.Context, entry audit.Entry) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO auth_events (id, event_type, outcome, reason, user_id, email, org_id,
                         request_id, ip_address, user_agent, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`,
		entry.ID,
		string(entry.Type),
		string(entry.Outcome),
		nullableString(entry.Reason),
		nullableString(entry.SubjectID),
		nullableString(entry.Email),
		nullableString(entry.OrgID),
		nullableString(entry.RequestID),
		nullableString(entry.IP),
		nullableString(entry.UserAgent),
		entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}
