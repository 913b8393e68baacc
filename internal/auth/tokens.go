package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
)

// TokenRecord is what a bearer token resolves to. Version is the permission
// version stamped at issue time; a mismatch against the live version means
// the client's cached authorization state is stale.
type TokenRecord struct {
	UserID  int64
	Version string
}

// TokenStore keeps opaque bearer tokens in Redis with a sliding TTL.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore builds a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

func tokenKey(token string) string {
	return "auth:token:" + token
}

// Issue mints a token for the user, stamped with the given permission
// version.
func (s *TokenStore) Issue(ctx context.Context, userID int64, version string) (string, error) {
	token := uuid.NewString()
	key := tokenKey(token)
	if err := s.client.HSet(ctx, key, "user_id", userID, "version", version).Err(); err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Lookup resolves a token and slides its TTL forward.
func (s *TokenStore) Lookup(ctx context.Context, token string) (TokenRecord, error) {
	values, err := s.client.HGetAll(ctx, tokenKey(token)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return TokenRecord{}, fmt.Errorf("lookup token: %w", err)
	}
	if len(values) == 0 {
		return TokenRecord{}, httpx.ErrUnauthorized
	}
	userID, err := strconv.ParseInt(values["user_id"], 10, 64)
	if err != nil {
		return TokenRecord{}, httpx.ErrUnauthorized
	}
	_ = s.client.Expire(ctx, tokenKey(token), s.ttl).Err()
	return TokenRecord{UserID: userID, Version: values["version"]}, nil
}

// Restamp overwrites the version on an existing token after a client
// refreshed its permissions.
func (s *TokenStore) Restamp(ctx context.Context, token, version string) error {
	key := tokenKey(token)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("restamp token: %w", err)
	}
	if exists == 0 {
		return httpx.ErrUnauthorized
	}
	return s.client.HSet(ctx, key, "version", version).Err()
}

// Revoke deletes a token. Revoking an unknown token is not an error.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, tokenKey(token)).Err()
}
