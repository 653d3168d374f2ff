package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpAdapter "github.com/lorrc/repair-desk/internal/adapters/primary/http"
	mw "github.com/lorrc/repair-desk/internal/adapters/primary/http/middleware"
	"github.com/lorrc/repair-desk/internal/adapters/primary/websocket"
	"github.com/lorrc/repair-desk/internal/adapters/secondary/memory"
	"github.com/lorrc/repair-desk/internal/adapters/secondary/redis"
	"github.com/lorrc/repair-desk/internal/adapters/secondary/sheets"
	"github.com/lorrc/repair-desk/internal/adapters/secondary/xlsx"
	"github.com/lorrc/repair-desk/internal/config"
	"github.com/lorrc/repair-desk/internal/core/ports"
	"github.com/lorrc/repair-desk/internal/core/services"
	"github.com/lorrc/repair-desk/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Key-Value Backend
	kv, closeKV, err := openKeyValueStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize cache backend", "error", err)
		os.Exit(1)
	}
	defer closeKV()

	// 4. Initialize Remote Store & Real-time Components
	remote := sheets.NewClient(sheets.Config{
		EndpointURL: cfg.Remote.URL,
		Timeout:     cfg.Remote.Timeout,
	}, logger)

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	// 5. Initialize Rate Limiter
	var rateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = mw.NewRateLimiter(ctx, mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
	}

	// 6. Dependency Injection (Wiring the Hexagon)
	exporter := xlsx.NewExporter()

	policies := services.DefaultMutationPolicies()
	if cfg.Desk.StrictCreate {
		policies.Create = services.MutationPolicy{RollbackOnFailure: true, AlertOnFailure: true}
	}

	workspaces := services.NewWorkspaceManager(services.WorkspaceDeps{
		Remote:    remote,
		KV:        kv,
		Publisher: hub,
		Exporter:  exporter,
		Logger:    logger,
	}, services.ManagerConfig{
		Workspace: services.WorkspaceConfig{
			CacheKey:          cfg.Cache.Key,
			FilterKey:         cfg.Cache.FilterKey,
			CacheDuration:     cfg.Cache.Duration,
			FilterSwitchDelay: cfg.Desk.FilterSwitchDelay,
			SlowLoadAfter:     cfg.Desk.SlowLoadAfter,
			TechnicianName:    cfg.Desk.TechnicianName,
			Policies:          policies,
			Location:          cfg.Desk.Location(),
		},
		IdleTTL:         cfg.Desk.WorkspaceIdleTTL,
		CleanupInterval: cfg.Desk.WorkspaceCleanupEvery,
	})

	errorHandler := httpAdapter.NewErrorHandler(logger)
	deskHandler := httpAdapter.NewDeskHandler(workspaces, exporter, errorHandler, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, workspaces, httpAdapter.WebSocketConfig{
		AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		AllowAnyOrigin:  cfg.IsDevelopment() && len(cfg.WebSocket.AllowedOrigins) == 0,
	}, logger)
	healthHandler := httpAdapter.NewHealthHandler(map[string]httpAdapter.HealthChecker{
		"remote_store": remote,
		"cache":        kv,
	}, cfg.App.Version)

	// 7. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	if len(cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check and metrics endpoints (outside /api/v1 for standard probe paths)
	healthHandler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.ClientID(mw.ClientCookieConfig{
			Name:   cfg.Desk.ClientCookieName,
			MaxAge: cfg.Desk.ClientCookieMaxAge,
			Secure: cfg.IsProduction(),
		}))
		if rateLimiter != nil {
			r.Use(rateLimiter.Middleware)
		}

		r.Get("/ws", wsHandler.ServeHTTP)
		deskHandler.RegisterRoutes(r)
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Let background writes reach the remote store before exiting.
	workspaces.Shutdown()
	stop()

	logger.Info("server shutdown complete")
}

func openKeyValueStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.KeyValueStore, func(), error) {
	if cfg.Cache.Backend == "redis" {
		store, err := redis.Connect(ctx, redis.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("redis cache connected", "addr", cfg.Redis.Addr)
		return store, func() { _ = store.Close() }, nil
	}

	store := memory.NewStore()
	store.StartPurging(ctx, time.Minute)
	logger.Info("using in-memory cache")
	return store, func() {}, nil
}
