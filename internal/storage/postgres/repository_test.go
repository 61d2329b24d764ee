package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/eventleads/server/internal/audit"
	"github.com/eventleads/server/internal/domain/identity"
	"github.com/eventleads/server/internal/domain/token"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestWithTxCommit(t *testing.T) {
	ctx := context.Background()
	pool, seed := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(ctx context.Context, tx *Repository) error {
		_, err := tx.Credentials().Create(ctx, identity.CreateCredentialParams{
			Email:  "tx@example.com",
			OrgID:  seed.DefaultOrgID,
			RoleID: seed.UserRoleID,
		})
		return err
	})
	require.NoError(t, err)

	found, err := repo.Credentials().FindByEmail(ctx, "tx@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
}

func TestWithTxRollback(t *testing.T) {
	ctx := context.Background()
	pool, seed := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	boom := fmt.Errorf("abort")
	err = repo.WithTx(ctx, func(ctx context.Context, tx *Repository) error {
		if _, err := tx.Credentials().Create(ctx, identity.CreateCredentialParams{
			Email:  "rollback@example.com",
			OrgID:  seed.DefaultOrgID,
			RoleID: seed.UserRoleID,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	found, err := repo.Credentials().FindByEmail(ctx, "rollback@example.com")
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestInTxRollbackKeepsTokenUnconsumed(t *testing.T) {
	ctx := context.Background()
	pool, seed := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	cred, err := repo.Credentials().Create(ctx, identity.CreateCredentialParams{
		Email:  "intx@example.com",
		OrgID:  seed.DefaultOrgID,
		RoleID: seed.UserRoleID,
	})
	require.NoError(t, err)
	issued, err := repo.Tokens().Issue(ctx, cred.ID, token.KindVerification, time.Hour)
	require.NoError(t, err)

	boom := fmt.Errorf("abort")
	err = repo.InTx(ctx, func(ctx context.Context, st identity.Stores) error {
		outcome, _, err := st.Tokens.Consume(ctx, issued.Value, token.KindVerification)
		require.NoError(t, err)
		require.Equal(t, token.OutcomeConsumed, outcome)
		return boom
	})
	require.ErrorIs(t, err, boom)

	// the consume rolled back with the rest of the transaction
	outcome, _, err := repo.Tokens().Consume(ctx, issued.Value, token.KindVerification)
	require.NoError(t, err)
	require.Equal(t, token.OutcomeConsumed, outcome)
}

func TestAuditInsert(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	entry := audit.Entry{
		ID:         ulid.Make().String(),
		Type:       audit.EventLoginSuccess,
		Outcome:    audit.OutcomeSuccess,
		Email:      "alice@example.com",
		RequestID:  "req-42",
		IP:         "203.0.113.9",
		UserAgent:  "test",
		OccurredAt: time.Now(),
	}
	require.NoError(t, repo.Audit().Insert(ctx, entry))

	var eventType, email string
	err = pool.QueryRow(ctx,
		`SELECT event_type, email FROM auth_events WHERE id = $1`, entry.ID,
	).Scan(&eventType, &email)
	require.NoError(t, err)
	require.Equal(t, "login_success", eventType)
	require.Equal(t, "alice@example.com", email)
}

func TestSettingsGetAndSet(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	store := repo.Settings()

	value, err := store.Get(ctx, "invite_daily_limit")
	require.NoError(t, err)
	require.Nil(t, value)

	require.NoError(t, store.Set(ctx, "invite_daily_limit", "25"))
	value, err = store.Get(ctx, "invite_daily_limit")
	require.NoError(t, err)
	require.NotNil(t, value)
	require.Equal(t, "25", *value)

	require.NoError(t, store.Set(ctx, "invite_daily_limit", "30"))
	value, err = store.Get(ctx, "invite_daily_limit")
	require.NoError(t, err)
	require.Equal(t, "30", *value)
}
