package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokenStore_IssueAndRedeem(t *testing.T) {
	rc, _ := setupTestRedis(t)
	store := NewRefreshTokenStore(rc, time.Hour)
	ctx := context.Background()

	token, err := store.Issue(ctx, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, newToken, err := store.Redeem(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.NotEqual(t, token, newToken)

	// Old token is rotated out.
	_, _, err = store.Redeem(ctx, token)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// New token still works.
	userID, _, err = store.Redeem(ctx, newToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestRefreshTokenStore_Expiry(t *testing.T) {
	rc, mr := setupTestRedis(t)
	store := NewRefreshTokenStore(rc, time.Hour)
	ctx := context.Background()

	token, err := store.Issue(ctx, "user-2")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, _, err = store.Redeem(ctx, token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRefreshTokenStore_Revoke(t *testing.T) {
	rc, _ := setupTestRedis(t)
	store := NewRefreshTokenStore(rc, time.Hour)
	ctx := context.Background()

	token, err := store.Issue(ctx, "user-3")
	require.NoError(t, err)

	require.NoError(t, store.Revoke(ctx, token))

	_, _, err = store.Redeem(ctx, token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
