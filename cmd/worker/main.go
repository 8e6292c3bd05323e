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
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/activos-fijos/activos/internal/analytics"
	"github.com/activos-fijos/activos/internal/app"
	"github.com/activos-fijos/activos/internal/auth"
	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/gateway"
	jobmetrics "github.com/activos-fijos/activos/internal/jobs"
	"github.com/activos-fijos/activos/internal/platform/cache"
	"github.com/activos-fijos/activos/jobs"
)

type workerConfig struct {
	Email    string `envconfig:"WORKER_EMAIL" required:"true"`
	Password string `envconfig:"WORKER_PASSWORD" required:"true"`

	BackendURL     string        `envconfig:"BACKEND_URL" default:"http://127.0.0.1:3000/api"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`
	RefreshTimeout time.Duration `envconfig:"REFRESH_TIMEOUT" default:"10s"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	WarmupCron        string        `envconfig:"WARMUP_CRON" default:"*/10 * * * *"`
	DashboardCacheTTL time.Duration `envconfig:"DASHBOARD_CACHE_TTL" default:"5m"`
	MetricsAddr       string        `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
	LogFormat         string        `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg workerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(&app.Config{LogFormat: cfg.LogFormat, LogLevel: cfg.LogLevel})

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

	// The worker runs as one service account under credentials.DefaultKey.
	store := credentials.NewMemoryStore()
	publicClient := backend.NewClient(backend.Config{BaseURL: cfg.BackendURL, Timeout: cfg.BackendTimeout, Logger: logger})
	var authService *auth.Service
	transport := newGateway(cfg, store, gateway.RefresherFunc(func(ctx context.Context, refreshToken string) (credentials.Credentials, error) {
		return authService.Refresh(ctx, refreshToken)
	}), logger, prometheus.DefaultRegisterer)
	api := backend.NewClient(backend.Config{BaseURL: cfg.BackendURL, Transport: transport, Timeout: cfg.BackendTimeout, Logger: logger})
	authService = auth.NewService(publicClient, api, store, logger)

	user, err := authService.Login(ctx, credentials.DefaultKey, cfg.Email, cfg.Password, true)
	if err != nil {
		logger.Error("worker login", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker signed in", slog.Int64("user_id", user.ID))
	defer func() {
		logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := authService.Logout(logoutCtx, credentials.DefaultKey); err != nil {
			logger.Warn("worker logout", slog.Any("error", err))
		}
	}()

	analyticsService := analytics.NewService(api, analytics.NewCache(redisClient, cfg.DashboardCacheTTL), logger)
	warmer := &jobs.ReauthWarmer{
		Warmer: analyticsService,
		SignIn: signInAgain(store, authService.Login, cfg.Email, cfg.Password),
		Logger: logger,
	}
	warmupJob := jobs.NewDashboardWarmupJob(warmer, logger, jobmetrics.NewMetrics(nil))

	warmupTask, err := jobs.NewDashboardWarmupTask("schedule")
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDashboardWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WarmupCron, Task: warmupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// newGateway builds the worker transport with its collectors on reg.
func newGateway(cfg workerConfig, store credentials.Store, refresher gateway.Refresher, logger *slog.Logger, reg prometheus.Registerer) *gateway.Transport {
	return gateway.New(gateway.Config{
		Store:          store,
		Refresher:      refresher,
		Logger:         logger,
		Metrics:        gateway.NewMetrics(reg),
		RefreshTimeout: cfg.RefreshTimeout,
	})
}

type loginFunc func(ctx context.Context, key, email, password string, remember bool) (credentials.User, error)

// signInAgain drops the service account credentials and opens a new
// remembered session under credentials.DefaultKey.
func signInAgain(store credentials.Store, login loginFunc, email, password string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := store.Clear(ctx, credentials.DefaultKey); err != nil {
			return err
		}
		_, err := login(ctx, credentials.DefaultKey, email, password, true)
		return err
	}
}
