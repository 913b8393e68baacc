package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// VersionStore tracks permission versions in Redis. Any role, group, or
// permission mutation bumps the global counter; role assignment bumps one
// user's counter. A token stamped with an older pair is stale.
type VersionStore struct {
	client *redis.Client
}

// NewVersionStore builds a VersionStore.
func NewVersionStore(client *redis.Client) *VersionStore {
	return &VersionStore{client: client}
}

const globalVersionKey = "authz:version:global"

func userVersionKey(userID int64) string {
	return fmt.Sprintf("authz:version:user:%d", userID)
}

// Current returns the combined version stamp for one user.
func (s *VersionStore) Current(ctx context.Context, userID int64) (string, error) {
	global, err := s.getCounter(ctx, globalVersionKey)
	if err != nil {
		return "", err
	}
	user, err := s.getCounter(ctx, userVersionKey(userID))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d", global, user), nil
}

// PermissionsChanged bumps the global counter, staling every issued token.
func (s *VersionStore) PermissionsChanged(ctx context.Context) error {
	return s.client.Incr(ctx, globalVersionKey).Err()
}

// UserPermissionsChanged bumps one user's counter, staling only that user's
// tokens.
func (s *VersionStore) UserPermissionsChanged(ctx context.Context, userID int64) error {
	return s.client.Incr(ctx, userVersionKey(userID)).Err()
}

func (s *VersionStore) getCounter(ctx context.Context, key string) (int64, error) {
	value, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read version %s: %w", key, err)
	}
	return value, nil
}
