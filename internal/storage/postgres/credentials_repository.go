package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/eventleads/server/internal/domain/identity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialRepository persists user credentials. Emails arrive already
// normalized from the lifecycle; comparison here is exact.
type CredentialRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *CredentialRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const credentialColumns = `id, email, COALESCE(password_hash, ''), COALESCE(password_salt, ''),
       is_verified, org_id, role_id,
       COALESCE(first_name, ''), COALESCE(last_name, ''), created_at`

func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*identity.Credential, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT `+credentialColumns+`
  FROM users
 WHERE email = $1
 LIMIT 1
`, email)
	cred, err := scanCredential(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find credential by email: %w", err)
	}
	return cred, nil
}

func (r *CredentialRepository) FindByID(ctx context.Context, id string) (*identity.Credential, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT `+credentialColumns+`
  FROM users
 WHERE id = $1
 LIMIT 1
`, id)
	cred, err := scanCredential(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find credential by id: %w", err)
	}
	return cred, nil
}

func (r *CredentialRepository) Create(ctx context.Context, params identity.CreateCredentialParams) (identity.Credential, error) {
	row := r.queryer().QueryRow(ctx, `
INSERT INTO users (email, password_hash, password_salt, is_verified, org_id, role_id,
                   first_name, last_name, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+credentialColumns+`
`,
		params.Email,
		nullableString(params.PasswordHash),
		nullableString(params.PasswordSalt),
		params.Verified,
		nullableString(params.OrgID),
		nullableString(params.RoleID),
		params.FirstName,
		params.LastName,
		nullableString(params.CreatedBy),
	)
	cred, err := scanCredential(row)
	if err != nil {
		return identity.Credential{}, fmt.Errorf("create credential: %w", err)
	}
	return *cred, nil
}

func (r *CredentialRepository) SetPassword(ctx context.Context, id, hash, salt string) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE users
   SET password_hash = $2, password_salt = $3, updated_at = now()
 WHERE id = $1
`, id, hash, nullableString(salt))
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (r *CredentialRepository) MarkVerified(ctx context.Context, id string) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE users SET is_verified = TRUE, updated_at = now() WHERE id = $1
`, id)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (r *CredentialRepository) AttachOrganization(ctx context.Context, id, orgID, roleID string) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE users SET org_id = $2, role_id = $3, updated_at = now() WHERE id = $1
`, id, nullableString(orgID), nullableString(roleID))
	if err != nil {
		return fmt.Errorf("attach organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (r *CredentialRepository) EnsureMembership(ctx context.Context, id, orgID, roleID string) error {
	// COALESCE keeps a user already attached to an organization where they
	// are; only org-less credentials pick up the new organization
	tag, err := r.queryer().Exec(ctx, `
UPDATE users
   SET org_id = COALESCE(org_id, $2), role_id = $3, updated_at = now()
 WHERE id = $1
`, id, nullableString(orgID), nullableString(roleID))
	if err != nil {
		return fmt.Errorf("ensure membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func scanCredential(row pgx.Row) (*identity.Credential, error) {
	var data struct {
		ID           string
		Email        string
		PasswordHash string
		PasswordSalt string
		Verified     bool
		OrgID        *string
		RoleID       *string
		FirstName    string
		LastName     string
		CreatedAt    time.Time
	}
	if err := row.Scan(
		&data.ID,
		&data.Email,
		&data.PasswordHash,
		&data.PasswordSalt,
		&data.Verified,
		&data.OrgID,
		&data.RoleID,
		&data.FirstName,
		&data.LastName,
		&data.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &identity.Credential{
		ID:           data.ID,
		Email:        data.Email,
		PasswordHash: data.PasswordHash,
		PasswordSalt: data.PasswordSalt,
		Verified:     data.Verified,
		OrgID:        derefString(data.OrgID),
		RoleID:       derefString(data.RoleID),
		FirstName:    data.FirstName,
		LastName:     data.LastName,
		CreatedAt:    data.CreatedAt,
	}, nil
}
