package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/lattice-saas/lattice/internal/jobs"
)

const (
	// TaskCatalogRefresh reloads the permission catalog snapshot from storage.
	TaskCatalogRefresh = "catalog:refresh"
)

// CatalogRefreshPayload carries scheduling metadata.
type CatalogRefreshPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewCatalogRefreshTask constructs an Asynq task for a catalog reload.
func NewCatalogRefreshTask(reason string) (*asynq.Task, error) {
	body, err := json.Marshal(CatalogRefreshPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogRefresh, body, asynq.Queue(QueueDefault)), nil
}

// CatalogReloader refreshes the in-memory catalog snapshot.
type CatalogReloader interface {
	Reload(ctx context.Context) error
}

// DecisionFlusher drops every cached permission decision.
type DecisionFlusher interface {
	InvalidateAll(ctx context.Context) error
}

// CatalogRefreshJob keeps long-running processes aligned with catalog
// changes made elsewhere. After a reload all cached decisions are stale,
// so the cache is flushed wholesale.
type CatalogRefreshJob struct {
	Loader  CatalogReloader
	Cache   DecisionFlusher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCatalogRefreshJob initialises the refresh handler.
func NewCatalogRefreshJob(loader CatalogReloader, cache DecisionFlusher, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogRefreshJob {
	return &CatalogRefreshJob{Loader: loader, Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle executes the reload.
func (j *CatalogRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Loader == nil {
		return errors.New("catalog refresh: handler not configured")
	}
	var payload CatalogRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskCatalogRefresh)
	err := j.Loader.Reload(ctx)
	if err == nil && j.Cache != nil {
		err = j.Cache.InvalidateAll(ctx)
	}
	if err = tracker.End(err); err != nil {
		j.Logger.Error("catalog refresh", slog.Any("error", err))
		return err
	}
	j.Logger.Info("catalog refreshed", slog.String("reason", payload.Reason))
	return nil
}
