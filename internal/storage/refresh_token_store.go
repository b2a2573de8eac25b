package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when a refresh token is unknown or expired.
var ErrTokenNotFound = errors.New("refresh token not found")

// RefreshTokenStore keeps refresh tokens in Redis with a TTL. The token
// value maps to the owning user ID; logout and rotation delete the key.
type RefreshTokenStore struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewRefreshTokenStore creates a new refresh token store
func NewRefreshTokenStore(redis *RedisCache, ttl time.Duration) *RefreshTokenStore {
	return &RefreshTokenStore{redis: redis, ttl: ttl}
}

func refreshKey(token string) string {
	return "refresh:" + token
}

// Issue creates and stores a new refresh token for the user
func (s *RefreshTokenStore) Issue(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := s.redis.Client().Set(ctx, refreshKey(token), userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return token, nil
}

// Redeem validates a refresh token and rotates it: the old token is
// deleted and a new one issued for the same user.
func (s *RefreshTokenStore) Redeem(ctx context.Context, token string) (userID, newToken string, err error) {
	userID, err = s.redis.Client().Get(ctx, refreshKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", ErrTokenNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if err := s.redis.Client().Del(ctx, refreshKey(token)).Err(); err != nil {
		return "", "", fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	newToken, err = s.Issue(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return userID, newToken, nil
}

// Revoke deletes a refresh token (logout)
func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) error {
	if err := s.redis.Client().Del(ctx, refreshKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}
