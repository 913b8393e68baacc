package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-mdm/meridian-mdm/internal/jobs"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention prunes audit_logs past the retention window.
	TaskAuditRetention = "audit:retention"
	// TaskPermissionRefresh bumps the global permission version so every
	// session re-fetches its authorization state.
	TaskPermissionRefresh = "authz:refresh"
)

// AuditRetentionPayload carries the retention window for one purge run.
type AuditRetentionPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditRetentionTask constructs an Asynq task.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// NewPermissionRefreshTask constructs an Asynq task with no payload.
func NewPermissionRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskPermissionRefresh, nil)
}

// NewAuditRetentionHandler builds the handler for TaskAuditRetention.
func NewAuditRetentionHandler(logger *slog.Logger, audit *shared.AuditLogger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("audit_retention")
		var payload AuditRetentionPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if payload.RetentionHours <= 0 {
			return tracker.End(asynq.SkipRetry)
		}
		cutoff := time.Now().Add(-time.Duration(payload.RetentionHours) * time.Hour)
		removed, err := audit.PurgeBefore(ctx, cutoff)
		if err != nil {
			return tracker.End(err)
		}
		metrics.AddPurgedAuditRows(removed)
		if logger != nil {
			logger.Info("audit retention purge",
				slog.Int64("removed", removed),
				slog.Time("cutoff", cutoff))
		}
		return tracker.End(nil)
	}
}

// Refresher bumps the global permission version.
type Refresher interface {
	PermissionsChanged(ctx context.Context) error
}

// NewPermissionRefreshHandler builds the handler for TaskPermissionRefresh.
func NewPermissionRefreshHandler(logger *slog.Logger, refresher Refresher, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("permission_refresh")
		if err := refresher.PermissionsChanged(ctx); err != nil {
			return tracker.End(err)
		}
		if logger != nil {
			logger.Info("permission refresh broadcast", slog.String("job", "permission_refresh"))
		}
		return tracker.End(nil)
	}
}
