package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventleads/server/internal/api"
	"github.com/eventleads/server/internal/audit"
	"github.com/eventleads/server/internal/auth"
	"github.com/eventleads/server/internal/config"
	"github.com/eventleads/server/internal/domain/identity"
	"github.com/eventleads/server/internal/email"
	"github.com/eventleads/server/internal/metrics"
	"github.com/eventleads/server/internal/settings"
	"github.com/eventleads/server/internal/storage/postgres"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the identity HTTP server",
	Long: `Start the identity HTTP server and begin accepting requests.

The server will:
- Load configuration from environment variables
- Apply pending database migrations
- Bootstrap an admin account if ADMIN_* env vars are set
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Msg("starting identity server")

	metrics.Init(Version, GitCommit)

	if err := postgres.MigrateUp(cfg.Database.URL, postgres.DefaultMigrationsPath); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	logger.Info().Msg("database migrations applied")

	poolCtx, poolCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.NewPool(poolCtx, cfg.Database)
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository init failed: %w", err)
	}

	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := bootstrapAdmin(bootstrapCtx, repo, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}
	bootstrapCancel()

	lifecycle, jwtManager, err := buildLifecycle(repo, cfg, logger)
	if err != nil {
		return err
	}

	dbCollector := metrics.NewDBCollector(pool)
	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	go dbCollector.Start(collectorCtx, 15*time.Second)
	defer collectorCancel()
	defer dbCollector.Stop()

	router := api.NewRouter(cfg, logger, api.Deps{
		Pool:       pool,
		Lifecycle:  lifecycle,
		JWTManager: jwtManager,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	return gracefulShutdown(server, logger)
}

// buildLifecycle assembles the identity service and its collaborators from
// the repository and config.
func buildLifecycle(repo *postgres.Repository, cfg config.Config, logger zerolog.Logger) (*identity.Service, *auth.JWTManager, error) {
	mailer, err := email.NewService(cfg.Email, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("email service init failed: %w", err)
	}

	tunables := settings.NewService(repo.Settings(), cfg.Lifecycle.SettingsCacheTTL, logger)
	auditor := audit.NewRecorder(repo.Audit(), logger)
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.SessionExpiry, cfg.Auth.Issuer)

	lifecycle := identity.NewService(
		repo.Credentials(),
		repo.Directory(),
		repo.Tokens(),
		repo.Invitations(),
		repo,
		auditor,
		mailer,
		jwtManager,
		tunables,
		identity.Config{
			VerificationTokenTTL: cfg.Lifecycle.VerificationTokenTTL,
			ResetTokenTTL:        cfg.Lifecycle.ResetTokenTTL,
			ResendCooldown:       cfg.Lifecycle.ResendCooldown,
			ResendDailyCap:       cfg.Lifecycle.ResendDailyCap,
			ResetCooldown:        cfg.Lifecycle.ResetCooldown,
			ResetDailyCap:        cfg.Lifecycle.ResetDailyCap,
			FrontendURL:          cfg.Server.FrontendURL,
		},
		logger,
	)
	return lifecycle, jwtManager, nil
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
