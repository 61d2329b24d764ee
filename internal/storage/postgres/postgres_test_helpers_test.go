package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	sharedOnce      sync.Once
	sharedInitErr   error
	sharedContainer *postgres.PostgresContainer
	sharedPool      *pgxpool.Pool
	sharedDBURL     string
)

const sharedContainerName = "eventleads-storage-db"

// baseline holds the seed rows every test starts from.
type baseline struct {
	DefaultOrgID string
	UserRoleID   string
	AdminRoleID  string
}

func TestMain(m *testing.M) {
	code := m.Run()
	if sharedPool != nil {
		sharedPool.Close()
	}
	os.Exit(code)
}

// setupPostgres hands back a pool against a truncated, re-seeded database.
// Tests are skipped entirely when no container runtime is available.
func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, baseline) {
	t.Helper()

	initShared(t)
	resetDatabase(t, sharedPool)
	return sharedPool, seedBaseline(t, ctx, sharedPool)
}

func initShared(t *testing.T) {
	t.Helper()
	sharedOnce.Do(func() {
		// testcontainers panics (rather than returning an error) when no
		// container runtime is present; convert that into sharedInitErr so
		// the documented skip path below still triggers.
		defer func() {
			if r := recover(); r != nil {
				sharedInitErr = fmt.Errorf("container runtime unavailable: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		// Disable ryuk (resource reaper) to prevent premature container cleanup
		_ = os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

		container, err := postgres.Run(
			ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("eventleads"),
			postgres.WithUsername("eventleads"),
			postgres.WithPassword("eventleads_dev"),
			testcontainers.WithReuseByName(sharedContainerName),
		)
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedContainer = container

		dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedDBURL = dbURL

		migrationsPath := filepath.Join(projectRoot(), DefaultMigrationsPath)
		if err := migrateWithRetry(dbURL, migrationsPath, 10*time.Second); err != nil {
			sharedInitErr = err
			return
		}

		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedPool = pool
	})

	if sharedInitErr != nil {
		t.Skipf("postgres container unavailable: %v", sharedInitErr)
	}
}

func resetDatabase(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	require.NotNil(t, pool)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, `
SELECT tablename
  FROM pg_tables
 WHERE schemaname = 'public'
   AND tablename <> 'schema_migrations'
 ORDER BY tablename;
`)
	require.NoError(t, err)
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		if name == "" {
			continue
		}
		safe := strings.ReplaceAll(name, "\"", "\"\"")
		tables = append(tables, "\"public\".\""+safe+"\"")
	}
	require.NoError(t, rows.Err())

	if len(tables) == 0 {
		return
	}

	truncateSQL := "TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE;"
	_, err = pool.Exec(ctx, truncateSQL)
	require.NoError(t, err)
}

func seedBaseline(t *testing.T, ctx context.Context, pool *pgxpool.Pool) baseline {
	t.Helper()

	var b baseline
	err := pool.QueryRow(ctx,
		`INSERT INTO organizations (code, name) VALUES ('DEFAULT', 'Default Organization') RETURNING id`,
	).Scan(&b.DefaultOrgID)
	require.NoError(t, err)

	err = pool.QueryRow(ctx, `INSERT INTO roles (name) VALUES ('User') RETURNING id`).Scan(&b.UserRoleID)
	require.NoError(t, err)
	err = pool.QueryRow(ctx, `INSERT INTO roles (name) VALUES ('Admin') RETURNING id`).Scan(&b.AdminRoleID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO roles (name) VALUES ('SystemAdmin')`)
	require.NoError(t, err)

	return b
}

func projectRoot() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
}

func migrateWithRetry(databaseURL string, migrationsPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := MigrateUp(databaseURL, migrationsPath); err != nil {
			if time.Now().After(deadline) {
				return err
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}
		return nil
	}
}
