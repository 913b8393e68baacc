package jobs

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBroadcaster struct {
	enqueued int
}

func (s *stubBroadcaster) EnqueuePermissionRefresh(ctx context.Context) (*asynq.TaskInfo, error) {
	s.enqueued++
	return &asynq.TaskInfo{Type: TaskPermissionRefresh, Queue: QueueDefault}, nil
}

type stubUserRefresher struct {
	users []int64
}

func (s *stubUserRefresher) UserPermissionsChanged(ctx context.Context, userID int64) error {
	s.users = append(s.users, userID)
	return nil
}

func TestQueueRefresherEnqueuesGlobalBroadcast(t *testing.T) {
	broadcaster := &stubBroadcaster{}
	users := &stubUserRefresher{}
	refresher := NewQueueRefresher(broadcaster, users)

	require.NoError(t, refresher.PermissionsChanged(context.Background()))

	assert.Equal(t, 1, broadcaster.enqueued)
	assert.Empty(t, users.users)
}

func TestQueueRefresherBumpsUserSynchronously(t *testing.T) {
	broadcaster := &stubBroadcaster{}
	users := &stubUserRefresher{}
	refresher := NewQueueRefresher(broadcaster, users)

	require.NoError(t, refresher.UserPermissionsChanged(context.Background(), 42))

	assert.Equal(t, []int64{42}, users.users)
	assert.Zero(t, broadcaster.enqueued)
}
