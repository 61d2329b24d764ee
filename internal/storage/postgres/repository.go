package postgres

import (
	"context"
	"fmt"

	"github.com/eventleads/server/internal/domain/identity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// queryer is the subset of pgx shared by a pool and a transaction; every
// repository dispatches through it so the same code runs inside and
// outside WithTx.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository aggregates the lifecycle engine's persistence surfaces over a
// single pgx pool.
type Repository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *Repository) Credentials() *CredentialRepository {
	return &CredentialRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Directory() *DirectoryRepository {
	return &DirectoryRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Tokens() *TokenRepository {
	return &TokenRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Invitations() *InvitationRepository {
	return &InvitationRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Audit() *AuditRepository {
	return &AuditRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Settings() *SettingsRepository {
	return &SettingsRepository{pool: r.pool, tx: r.tx}
}

// WithTx runs fn against a repository bound to a single transaction,
// committing on nil and rolling back on error. Nested calls reuse the
// outer transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, *Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	wrapped := &Repository{pool: r.pool, tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// InTx exposes WithTx through the lifecycle's store bundle, so a token
// consume and the state change it authorizes commit together.
func (r *Repository) InTx(ctx context.Context, fn func(context.Context, identity.Stores) error) error {
	return r.WithTx(ctx, func(ctx context.Context, txRepo *Repository) error {
		return fn(ctx, identity.Stores{
			Credentials: txRepo.Credentials(),
			Tokens:      txRepo.Tokens(),
			Invitations: txRepo.Invitations(),
		})
	})
}
