package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/activos-fijos/activos/jobs"
)

// Enqueuer submits dashboard warmups.
type Enqueuer interface {
	EnqueueDashboardWarmup(ctx context.Context, reason string) (*asynq.TaskInfo, error)
}

// QueueInspector reads queue state.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// JobsCLI wraps manual management helpers for the warmup queue.
type JobsCLI struct {
	client    Enqueuer
	inspector QueueInspector
}

// NewJobsCLI initialises the helpers.
func NewJobsCLI(client Enqueuer, inspector QueueInspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskDashboardWarmup, "warmup":
		return c.client.EnqueueDashboardWarmup(ctx, "manual")
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed"`
}

// InspectQueue reports the metrics of the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = int(info.Pending)
		stats.Active = int(info.Active)
		stats.Scheduled = int(info.Scheduled)
		stats.Retry = int(info.Retry)
		stats.Failed = int(info.Failed)
	}
	return stats, nil
}

// WarmupCommand enqueues a dashboard warmup.
func (c *JobsCLI) WarmupCommand(ctx context.Context, out Output) int {
	out = out.defaults()
	info, err := c.Trigger(ctx, jobs.TaskDashboardWarmup)
	if err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "warmup: %v\n", err)
		return ExitError
	}
	if info == nil {
		_, _ = fmt.Fprintln(out.Stdout, "Ya hay una actualización del panel en cola.")
		return ExitOK
	}
	_, _ = fmt.Fprintf(out.Stdout, "Actualización del panel encolada (%s).\n", info.ID)
	return ExitOK
}

// StatsCommand prints the default queue state.
func (c *JobsCLI) StatsCommand(out Output) int {
	out = out.defaults()
	stats, err := c.InspectQueue()
	if err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "jobs: %v\n", err)
		return ExitError
	}
	if out.JSONOutput {
		return encode(out, stats)
	}
	_, _ = fmt.Fprintf(out.Stdout, "cola %s: %d pendientes, %d activas, %d programadas, %d reintentos, %d fallidas\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
	return ExitOK
}
