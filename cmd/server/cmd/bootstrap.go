package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/eventleads/server/internal/auth"
	"github.com/eventleads/server/internal/config"
	"github.com/eventleads/server/internal/domain/identity"
	"github.com/eventleads/server/internal/storage/postgres"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var bootstrapAdminCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create the initial admin account",
	Long: `Create a verified admin account from the ADMIN_EMAIL and
ADMIN_PASSWORD environment variables. Does nothing when an account with
that email already exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logger := config.NewLogger(cfg.Logging)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer pool.Close()

		repo, err := postgres.NewRepository(pool)
		if err != nil {
			return fmt.Errorf("repository init failed: %w", err)
		}
		return bootstrapAdmin(ctx, repo, cfg, logger)
	},
}

// bootstrapAdmin creates a verified admin credential in the default
// organization when the ADMIN_* env vars are set and no account with that
// email exists yet.
func bootstrapAdmin(ctx context.Context, repo *postgres.Repository, cfg config.Config, logger zerolog.Logger) error {
	bootstrap := cfg.AdminBootstrap
	if bootstrap.Email == "" || bootstrap.Password == "" {
		logger.Debug().Msg("admin bootstrap env vars not set; skipping")
		return nil
	}

	email := identity.NormalizeEmail(bootstrap.Email)
	creds := repo.Credentials()

	existing, err := creds.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check admin account: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := auth.HashPassword(bootstrap.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	dir := repo.Directory()
	roleID, err := dir.RoleIDByName(ctx, "SystemAdmin")
	if err != nil {
		return fmt.Errorf("resolve admin role: %w", err)
	}
	orgID, err := dir.DefaultOrgID(ctx)
	if err != nil {
		return fmt.Errorf("resolve default organization: %w", err)
	}

	_, err = creds.Create(ctx, identity.CreateCredentialParams{
		Email:        email,
		PasswordHash: hash,
		Verified:     true,
		OrgID:        orgID,
		RoleID:       roleID,
		FirstName:    "Admin",
		LastName:     "User",
	})
	if err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}

	// Redact email in production to avoid PII leaks
	if cfg.Environment == "production" {
		logger.Info().Msg("bootstrapped admin account")
	} else {
		logger.Info().Str("email", email).Msg("bootstrapped admin account")
	}
	return nil
}
