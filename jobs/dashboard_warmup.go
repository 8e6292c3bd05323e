package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/gateway"
	jobmetrics "github.com/activos-fijos/activos/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const warmupTimeout = 20 * time.Second

// Warmer reloads the dashboard summary into the cache.
type Warmer interface {
	Warm(ctx context.Context) (backend.Dashboard, error)
}

// ReauthWarmer signs the service account in again when its session can no
// longer be refreshed, then retries the warmup once.
type ReauthWarmer struct {
	Warmer Warmer
	// SignIn drops the stale credentials and opens a new session.
	SignIn func(ctx context.Context) error
	Logger *slog.Logger
}

// Warm implements Warmer.
func (w *ReauthWarmer) Warm(ctx context.Context) (backend.Dashboard, error) {
	dash, err := w.Warmer.Warm(ctx)
	if w.SignIn == nil || !sessionLost(err) {
		return dash, err
	}
	logger := loggerOrDefault(w.Logger)
	logger.Warn("worker session lost, signing in again", slog.Any("error", err))
	if signErr := w.SignIn(ctx); signErr != nil {
		return backend.Dashboard{}, fmt.Errorf("dashboard warmup: sign in again: %w", errors.Join(signErr, err))
	}
	return w.Warmer.Warm(ctx)
}

func sessionLost(err error) bool {
	return errors.Is(err, gateway.ErrRefreshFailed) ||
		errors.Is(err, gateway.ErrUnauthenticated) ||
		errors.Is(err, backend.ErrUnauthorized)
}

// DashboardWarmupJob keeps the dashboard cache populated.
type DashboardWarmupJob struct {
	Warmer  Warmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDashboardWarmupJob wires dependencies for the warmup handler.
func NewDashboardWarmupJob(warmer Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	return &DashboardWarmupJob{
		Warmer:  warmer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes dashboard warmup tasks.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Warmer == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	var payload DashboardWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("dashboard warmup: decode payload: %w", asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskDashboardWarmup)
	logger := j.logger().With(slog.String("reason", payload.Reason))

	started := j.now()
	warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	dash, err := j.Warmer.Warm(warmCtx)
	if err != nil {
		logger.Error("dashboard warmup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics().MarkWarmed(j.now())
	logger.Info("dashboard warmed",
		slog.Int("total_activos", dash.TotalActivos),
		slog.Duration("duration", j.now().Sub(started)),
	)
	return tracker.End(nil)
}

func (j *DashboardWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskDashboardWarmup))
}

func (j *DashboardWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DashboardWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
