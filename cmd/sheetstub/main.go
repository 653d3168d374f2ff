// Command sheetstub serves the spreadsheet endpoint protocol from PostgreSQL
// so the desk can run without the hosted sheet.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	httpAdapter "github.com/lorrc/repair-desk/internal/adapters/primary/http"
	mw "github.com/lorrc/repair-desk/internal/adapters/primary/http/middleware"
	"github.com/lorrc/repair-desk/internal/adapters/secondary/postgres"
	"github.com/lorrc/repair-desk/internal/config"
	"github.com/lorrc/repair-desk/internal/infrastructure/logging"
)

var skipMigrations bool

var rootCmd = &cobra.Command{
	Use:          "sheetstub",
	Short:        "Local stand-in for the repair spreadsheet endpoint",
	SilenceUsage: true,
	RunE:         runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations at start-up")
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadSheetStub()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.ServiceName = "repair-sheetstub"
	logCfg.Environment = cfg.App.Environment
	logger := logging.NewLogger(logCfg)
	return cfg, logger, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if err := postgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsURL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied", "source", cfg.Database.MigrationsURL)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !skipMigrations {
		if err := postgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	logger.Info("database connection established")

	repo := postgres.NewSheetRepository(pool, postgres.NewTransactionManager(pool))
	sheetHandler := httpAdapter.NewSheetHandler(repo, httpAdapter.NewErrorHandler(logger), logger)
	healthHandler := httpAdapter.NewHealthHandler(map[string]httpAdapter.HealthChecker{
		"database": pool,
	}, cfg.App.Version)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))

	healthHandler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())
	sheetHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("sheet stub listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("sheet stub stopped")
	return nil
}
