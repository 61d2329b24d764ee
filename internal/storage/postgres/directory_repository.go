package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/eventleads/server/internal/domain/identity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultOrgCode marks the shared parking organization for unonboarded
// signups. Seeded by the initial migration.
const defaultOrgCode = "DEFAULT"

// DirectoryRepository resolves organizations and roles.
type DirectoryRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *DirectoryRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *DirectoryRepository) RoleName(ctx context.Context, roleID string) (string, error) {
	var name string
	err := r.queryer().QueryRow(ctx, `SELECT name FROM roles WHERE id = $1`, roleID).Scan(&name)
	if err == pgx.ErrNoRows {
		return "", identity.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("role name: %w", err)
	}
	return name, nil
}

func (r *DirectoryRepository) RoleIDByName(ctx context.Context, name string) (string, error) {
	var id string
	err := r.queryer().QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, name).Scan(&id)
	if err == pgx.ErrNoRows {
		return "", identity.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("role id by name: %w", err)
	}
	return id, nil
}

func (r *DirectoryRepository) DefaultOrgID(ctx context.Context) (string, error) {
	var id string
	err := r.queryer().QueryRow(ctx, `SELECT id FROM organizations WHERE code = $1`, defaultOrgCode).Scan(&id)
	if err == pgx.ErrNoRows {
		return "", identity.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("default organization: %w", err)
	}
	return id, nil
}

func (r *DirectoryRepository) CreateOrganization(ctx context.Context, name string) (string, error) {
	var id string
	err := r.queryer().QueryRow(ctx, `
INSERT INTO organizations (code, name) VALUES ($1, $2) RETURNING id
`, orgCodeFromName(name), name).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create organization: %w", err)
	}
	return id, nil
}

func (r *DirectoryRepository) OrgCode(ctx context.Context, orgID string) (string, error) {
	var code string
	err := r.queryer().QueryRow(ctx, `SELECT code FROM organizations WHERE id = $1`, orgID).Scan(&code)
	if err == pgx.ErrNoRows {
		return "", identity.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("organization code: %w", err)
	}
	return code, nil
}

// orgCodeFromName derives a short unique code for a self-provisioned
// organization. Uniqueness comes from the random suffix, not the name.
func orgCodeFromName(name string) string {
	base := strings.ToUpper(strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, name))
	if len(base) > 12 {
		base = base[:12]
	}
	if base == "" {
		base = "ORG"
	}
	return base + "-" + randomSuffix(6)
}
