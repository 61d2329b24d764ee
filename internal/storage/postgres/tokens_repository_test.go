package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eventleads/server/internal/domain/identity"
	"github.com/eventleads/server/internal/domain/token"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, ctx context.Context, repo *Repository, seed baseline, email string) string {
	t.Helper()
	created, err := repo.Credentials().Create(ctx, identity.CreateCredentialParams{
		Email:  email,
		OrgID:  seed.DefaultOrgID,
		RoleID: seed.UserRoleID,
	})
	require.NoError(t, err)
	return created.ID
}

func TestTokenIssueAndLookup(t *testing.T) {
	ctx := context.Background()
	pool, seed := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	userID := seedUser(t, ctx, repo, seed, "alice@example.com")
	tokens := repo.Tokens()

	issued, err := tokens.Issue(ctx, userID, token.KindVerification, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, issued.Value)
	require.Nil(t, issued.ConsumedAt)
	require.WithinDuration(t, time.Now().Add(time.Hour), issued.ExpiresAt, 5*time.Second)

	found, err := tokens.Lookup(ctx, issued.Value, token.KindVerification)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, userID, found.SubjectID)

	// kind is part of the key
	wrong, err := tokens.Lookup(ctx, issued.Value, token.KindReset)
	require.NoError(t, err)
	require.Nil(t, wrong)
}

func TestTokenConsumeOutcomes(t *testing.T) {
	ctx := context.Background()
	pool, seed := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	userID := seedUser(t, ctx, repo, seed, "alice@example.com")
	tokens := repo.Tokens()

	outcome, tok, err := tokens.Consume(ctx, "no-such-token", token.KindVerification)
	require.NoError(t, err)
	require.Equal(t, token.OutcomeNotFound, outcome)
	require.Nil(t, tok)

	issued, err := tokens.Issue(ctx, userID, token.KindVerification, time.Hour)
	require.NoError(t, err)

	outcome, tok, err = tokens.Consume(ctx, issued.Value, token.KindVerification)
	require.NoError(t, err)
	require.Equal(t, token.OutcomeConsumed, outcome)
	require.NotNil(t, tok.ConsumedAt)

	// immediate repeat lands inside the grace window
	outcome, _, err = tokens.Consume(ctx, issued.Value, token.KindVerification)
	require.NoError(t, err)
	require.Equal(t, token.OutcomeAlreadyConsumedRecently, outcome)

	// age the consumption past the grace window
	_, err = pool.Exec(ctx,
		`UPDATE auth_tokens SET consumed_at = now() - interval '3 seconds' WHERE token = $1`, issued.Value)
	require.NoError(t, err)

	outcome, _, err = tokens.Consume(ctx, issued.Value, token.KindVerification)
	require.NoError(t, err)
	require.Equal(t, token.OutcomeAlreadyConsumedStale, outcome)
}

func TestTokenConsumeExpired(t *testing.T) {
	ctx := context.Background()
	pool, seed := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	userID := seedUser(t, ctx, repo, seed, "alice@example.com")
	tokens := repo.Tokens()

	issued, err := tokens.Issue(ctx, userID, token.KindReset, -time.Minute)
	require.NoError(t, err)

	outcome, tok, err := tokens.Consume(ctx, issued.Value, token.KindReset)
	require.NoError(t, err)
	require.Equal(t, token.OutcomeExpired, outcome)
	require.NotNil(t, tok)
	require.Nil(t, tok.ConsumedAt)
}

func TestTokenConsumeConcurrency(t *testing.T) {
	ctx := context.Background()
	pool, seed := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	userID := seedUser(t, ctx, repo, seed, "alice@example.com")
	tokens := repo.Tokens()

	issued, err := tokens.Issue(ctx, userID, token.KindVerification, time.Hour)
	require.NoError(t, err)

	const workers = 8
	outcomes := make([]token.ConsumeOutcome, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _, errs[i] = tokens.Consume(ctx, issued.Value, token.KindVerification)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	winners := 0
	for _, o := range outcomes {
		switch o {
		case token.OutcomeConsumed:
			winners++
		case token.OutcomeAlreadyConsumedRecently:
		default:
			t.Fatalf("unexpected outcome %v", o)
		}
	}
	require.Equal(t, 1, winners, "exactly one consume attempt must win")
}

func TestTokenHistory(t *testing.T) {
	ctx := context.Background()
	pool, seed := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	userID := seedUser(t, ctx, repo, seed, "alice@example.com")
	otherID := seedUser(t, ctx, repo, seed, "bob@example.com")
	tokens := repo.Tokens()

	last, err := tokens.LastIssuedAt(ctx, userID, token.KindVerification)
	require.NoError(t, err)
	require.Nil(t, last)

	for i := 0; i < 3; i++ {
		_, err := tokens.Issue(ctx, userID, token.KindVerification, time.Hour)
		require.NoError(t, err)
	}
	_, err = tokens.Issue(ctx, userID, token.KindReset, time.Hour)
	require.NoError(t, err)
	_, err = tokens.Issue(ctx, otherID, token.KindVerification, time.Hour)
	require.NoError(t, err)

	count, err := tokens.CountSince(ctx, userID, token.KindVerification, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Equal(t, 3, count)

	count, err = tokens.CountSince(ctx, userID, token.KindVerification, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 0, count)

	last, err = tokens.LastIssuedAt(ctx, userID, token.KindVerification)
	require.NoError(t, err)
	require.NotNil(t, last)
	require.WithinDuration(t, time.Now(), *last, 5*time.Second)
}
