package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lattice-saas/lattice/internal/audit"
	jobmetrics "github.com/lattice-saas/lattice/internal/jobs"
)

const (
	// TaskAuditRetention prunes decision audit entries past the retention window.
	TaskAuditRetention = "audit:retention"
)

// AuditRetentionPayload carries an optional retention override.
type AuditRetentionPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewAuditRetentionTask constructs an Asynq task for audit pruning.
func NewAuditRetentionTask() (*asynq.Task, error) {
	body, err := json.Marshal(AuditRetentionPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, body, asynq.Queue(QueueDefault)), nil
}

// AuditRetentionJob prunes the decision trail on a schedule.
type AuditRetentionJob struct {
	Service   *audit.Service
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewAuditRetentionJob initialises the retention handler.
func NewAuditRetentionJob(service *audit.Service, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRetentionJob {
	return &AuditRetentionJob{Service: service, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle executes the retention pass.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := j.Retention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	tracker := j.Metrics.Track(TaskAuditRetention)
	removed, err := j.Service.Purge(ctx, retention)
	if err = tracker.End(err); err != nil {
		j.Logger.Error("audit retention", slog.Any("error", err))
		return err
	}
	j.Logger.Info("audit retention completed",
		slog.Int64("removed", removed),
		slog.Duration("retention", retention))
	return nil
}
