package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lattice-saas/lattice/internal/app"
	"github.com/lattice-saas/lattice/internal/audit"
	"github.com/lattice-saas/lattice/internal/auth"
	"github.com/lattice-saas/lattice/internal/authz"
	"github.com/lattice-saas/lattice/internal/catalog"
	"github.com/lattice-saas/lattice/internal/observability"
	"github.com/lattice-saas/lattice/internal/plans"
	"github.com/lattice-saas/lattice/internal/platform/cache"
	"github.com/lattice-saas/lattice/internal/platform/db"
	"github.com/lattice-saas/lattice/internal/shared"
	"github.com/lattice-saas/lattice/internal/tenants"
	"github.com/lattice-saas/lattice/internal/users"
	"github.com/lattice-saas/lattice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "lattice_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	var decisionCache authz.DecisionCache
	switch cfg.AuthzCacheBackend {
	case "redis":
		decisionCache = authz.NewRedisCache(redisClient)
	case "memory":
		mem := authz.NewMemoryCache()
		mem.StartSweeper(ctx, time.Minute)
		decisionCache = mem
	}

	catalogRepo := catalog.NewRepository(dbpool)
	loader := catalog.NewLoader(catalogRepo)
	if err := loader.Reload(ctx); err != nil {
		logger.Error("load permission catalog", slog.Any("error", err))
		os.Exit(1)
	}

	auditRepo := audit.NewRepository(dbpool)
	recorder := authz.NewRecorder(audit.NewSink(auditRepo), cfg.AuthzAuditQueue, logger)
	recorder.Start(ctx)
	defer recorder.Close()

	engine := authz.NewEngine(authz.EngineConfig{
		Catalog:     loader,
		Cache:       decisionCache,
		Recorder:    recorder,
		Logger:      logger,
		Metrics:     metrics,
		TTL:         cfg.AuthzCacheTTL,
		NegativeTTL: cfg.AuthzCacheNegativeTTL,
	})

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	guard := authz.Middleware{
		Engine:    engine,
		Extractor: authz.NewExtractor(authRepo),
		Logger:    logger,
	}

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect job queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	catalogService := catalog.NewService(catalogRepo, loader, decisionCache, jobClient, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService, guard)

	tenantsService := tenants.NewService(tenants.NewRepository(dbpool), decisionCache, logger)
	tenantsHandler := tenants.NewHandler(logger, tenantsService, guard)

	plansService := plans.NewService(plans.NewRepository(dbpool))
	plansHandler := plans.NewHandler(logger, plansService, guard)

	usersService := users.NewService(users.NewRepository(dbpool), decisionCache, jobClient, logger)
	usersHandler := users.NewHandler(logger, usersService, guard)

	auditService := audit.NewService(auditRepo, logger)
	auditHandler := audit.NewHandler(logger, auditService, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		TenantsHandler: tenantsHandler,
		PlansHandler:   plansHandler,
		UsersHandler:   usersHandler,
		CatalogHandler: catalogHandler,
		AuditHandler:   auditHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
