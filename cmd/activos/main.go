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

	"github.com/hibiken/asynq"

	"github.com/activos-fijos/activos/internal/activos"
	"github.com/activos-fijos/activos/internal/analytics"
	analytichttp "github.com/activos-fijos/activos/internal/analytics/http"
	"github.com/activos-fijos/activos/internal/app"
	"github.com/activos-fijos/activos/internal/audit"
	audithttp "github.com/activos-fijos/activos/internal/audit/http"
	"github.com/activos-fijos/activos/internal/auth"
	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/contables"
	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/entregas"
	"github.com/activos-fijos/activos/internal/gateway"
	"github.com/activos-fijos/activos/internal/observability"
	"github.com/activos-fijos/activos/internal/platform/cache"
	"github.com/activos-fijos/activos/internal/roles"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/internal/users"
	"github.com/activos-fijos/activos/internal/view"
	"github.com/activos-fijos/activos/jobs"
)

// dashboardRefresher drops the cached summary and queues a warmup so the
// next visitor does not pay for the backend round trip.
type dashboardRefresher struct {
	*analytics.Service
	jobs   *jobs.Client
	logger *slog.Logger
}

func (d dashboardRefresher) Invalidate(ctx context.Context) {
	d.Service.Invalidate(ctx)
	if d.jobs == nil {
		return
	}
	if _, err := d.jobs.EnqueueDashboardWarmup(ctx, "invalidate"); err != nil {
		d.logger.Warn("enqueue dashboard warmup", slog.Any("error", err))
	}
}

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

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, shared.SessionConfig{
		CookieName:  "activos_session",
		TTL:         cfg.SessionTTL,
		RememberTTL: cfg.RememberTTL,
		Secure:      cfg.IsProduction(),
	})
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngineWithOptions(view.Options{Currency: cfg.Currency})
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	store := credentials.NewRedisStore(redisClient, cfg.SessionTTL, cfg.RememberTTL)

	publicClient := backend.NewClient(backend.Config{BaseURL: cfg.BackendURL, Timeout: cfg.BackendTimeout, Logger: logger, Metrics: metrics})
	var authService *auth.Service
	transport := gateway.New(gateway.Config{
		Store: store,
		Refresher: gateway.RefresherFunc(func(ctx context.Context, refreshToken string) (credentials.Credentials, error) {
			return authService.Refresh(ctx, refreshToken)
		}),
		Logger:         logger,
		Metrics:        gateway.NewMetrics(metrics.Registerer()),
		RefreshTimeout: cfg.RefreshTimeout,
	})
	api := backend.NewClient(backend.Config{BaseURL: cfg.BackendURL, Transport: transport, Timeout: cfg.BackendTimeout, Logger: logger, Metrics: metrics})
	authService = auth.NewService(publicClient, api, store, logger)

	authMiddleware := &auth.Middleware{Logger: logger, Tokens: transport, Store: store, Templates: templates, CSRF: csrfManager}
	authHandler := auth.NewHandler(logger, authService, store, templates, sessionManager, csrfManager)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	dashboard := dashboardRefresher{
		Service: analytics.NewService(api, analytics.NewCache(redisClient, cfg.DashboardCacheTTL), logger),
		jobs:    jobsClient,
		logger:  logger,
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		AuthMiddleware:   authMiddleware,
		AnalyticsHandler: analytichttp.NewHandler(logger, dashboard, templates, csrfManager, authMiddleware),
		ActivosHandler:   activos.NewHandler(logger, activos.NewService(api, dashboard), templates, csrfManager, authMiddleware),
		EntregasHandler:  entregas.NewHandler(logger, entregas.NewService(api, dashboard), templates, csrfManager, authMiddleware),
		ContablesHandler: contables.NewHandler(logger, api, templates, csrfManager, authMiddleware),
		RolesHandler:     roles.NewHandler(logger, roles.NewService(api), templates, csrfManager, authMiddleware),
		UsersHandler:     users.NewHandler(logger, users.NewService(api), templates, csrfManager, authMiddleware),
		AuditHandler:     audithttp.NewHandler(logger, audit.NewService(api), templates, csrfManager, authMiddleware),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		AccessLog:        !cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.BackendURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
