package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

// Broadcaster enqueues the global permission refresh task.
type Broadcaster interface {
	EnqueuePermissionRefresh(ctx context.Context) (*asynq.TaskInfo, error)
}

// UserRefresher bumps a single user's permission version.
type UserRefresher interface {
	UserPermissionsChanged(ctx context.Context, userID int64) error
}

// QueueRefresher satisfies the domain refresher ports. A global invalidation
// goes through the queue, where the worker performs the version bump with
// retries; per-user bumps stay synchronous on the serving path because they
// must take effect before the mutating request returns.
type QueueRefresher struct {
	broadcaster Broadcaster
	users       UserRefresher
}

// NewQueueRefresher builds a refresher delegating global invalidation to the
// queue and per-user invalidation to the version store.
func NewQueueRefresher(broadcaster Broadcaster, users UserRefresher) *QueueRefresher {
	return &QueueRefresher{broadcaster: broadcaster, users: users}
}

// PermissionsChanged enqueues the refresh broadcast.
func (q *QueueRefresher) PermissionsChanged(ctx context.Context) error {
	_, err := q.broadcaster.EnqueuePermissionRefresh(ctx)
	return err
}

// UserPermissionsChanged bumps one user's version immediately.
func (q *QueueRefresher) UserPermissionsChanged(ctx context.Context, userID int64) error {
	return q.users.UserPermissionsChanged(ctx, userID)
}
