package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aksjeradar/internal/access"
	"github.com/aksjeradar/internal/auth"
	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/storage"
	"github.com/aksjeradar/internal/types"
)

func assertServiceErr(t *testing.T, err error, code string) {
	t.Helper()
	var svcErr *types.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, code, svcErr.Code)
}

// Remaining UserStore methods for the stub shared with the billing tests.

func (s *stubUserStore) Create(ctx context.Context, user *models.User) error {
	for _, existing := range s.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return storage.ErrDuplicate
		}
	}
	user.ID = fmt.Sprintf("user-%d", len(s.users)+1)
	s.users[user.ID] = user
	return nil
}

func (s *stubUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *stubUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *stubUserStore) UpdateSettings(ctx context.Context, userID string, settings *models.UserSettings) error {
	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.Settings = settings
	return nil
}

type stubRefreshTokens struct {
	tokens map[string]string
	nextID int
}

func newStubRefreshTokens() *stubRefreshTokens {
	return &stubRefreshTokens{tokens: make(map[string]string)}
}

func (s *stubRefreshTokens) Issue(ctx context.Context, userID string) (string, error) {
	s.nextID++
	token := fmt.Sprintf("refresh-%d", s.nextID)
	s.tokens[token] = userID
	return token, nil
}

func (s *stubRefreshTokens) Redeem(ctx context.Context, token string) (string, string, error) {
	userID, ok := s.tokens[token]
	if !ok {
		return "", "", storage.ErrTokenNotFound
	}
	delete(s.tokens, token)
	newToken, _ := s.Issue(ctx, userID)
	return userID, newToken, nil
}

func (s *stubRefreshTokens) Revoke(ctx context.Context, token string) error {
	delete(s.tokens, token)
	return nil
}

type userFixture struct {
	svc     *UserService
	users   *stubUserStore
	subs    *stubSubscriptionStore
	refresh *stubRefreshTokens
}

func setupUserService(t *testing.T, exemptEmails ...string) *userFixture {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret-at-least-32-bytes-long!!", time.Hour)
	require.NoError(t, err)

	f := &userFixture{
		users:   newStubUserStore(),
		subs:    newStubSubscriptionStore(),
		refresh: newStubRefreshTokens(),
	}
	f.svc = NewUserService(
		f.users,
		f.subs,
		tokens,
		f.refresh,
		access.NewChecker(exemptEmails),
		nil,
		nil,
		bcrypt.MinCost,
		zap.NewNop(),
	)
	return f
}

func TestRegisterAndLogin(t *testing.T) {
	f := setupUserService(t)
	ctx := context.Background()

	result, err := f.svc.Register(ctx, "kari", "kari@example.no", "hemmelig123")
	require.NoError(t, err)
	assert.Equal(t, types.TierDemo, result.Tier)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)

	byEmail, err := f.svc.Login(ctx, "kari@example.no", "hemmelig123")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, byEmail.User.ID)

	byUsername, err := f.svc.Login(ctx, "kari", "hemmelig123")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, byUsername.User.ID)
}

func TestRegisterValidation(t *testing.T) {
	f := setupUserService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "ab", "kari@example.no", "hemmelig123")
	assertServiceErr(t, err, types.ErrCodeInvalidInput)

	_, err = f.svc.Register(ctx, "kari", "not-an-email", "hemmelig123")
	assertServiceErr(t, err, types.ErrCodeInvalidInput)

	_, err = f.svc.Register(ctx, "kari", "kari@example.no", "kort")
	assertServiceErr(t, err, types.ErrCodeInvalidInput)
}

func TestRegisterDuplicate(t *testing.T) {
	f := setupUserService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "kari", "kari@example.no", "hemmelig123")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "kari", "annen@example.no", "hemmelig123")
	assertServiceErr(t, err, types.ErrCodeConflict)
}

func TestLoginWrongPassword(t *testing.T) {
	f := setupUserService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "kari", "kari@example.no", "hemmelig123")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "kari@example.no", "feilpassord")
	assertServiceErr(t, err, types.ErrCodeUnauthorized)

	// Unknown identifier yields the same error as a wrong password.
	_, err = f.svc.Login(ctx, "ukjent@example.no", "hemmelig123")
	assertServiceErr(t, err, types.ErrCodeUnauthorized)
}

func TestRefreshRotatesToken(t *testing.T) {
	f := setupUserService(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, "kari", "kari@example.no", "hemmelig123")
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(ctx, registered.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, registered.RefreshToken, refreshed.RefreshToken)

	// The redeemed token is gone.
	_, err = f.svc.Refresh(ctx, registered.RefreshToken)
	assertServiceErr(t, err, types.ErrCodeUnauthorized)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := setupUserService(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, "kari", "kari@example.no", "hemmelig123")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, registered.RefreshToken))

	_, err = f.svc.Refresh(ctx, registered.RefreshToken)
	assertServiceErr(t, err, types.ErrCodeUnauthorized)
}

func TestExemptEmailGetsExemptTier(t *testing.T) {
	f := setupUserService(t, "admin@aksjeradar.no")
	ctx := context.Background()

	result, err := f.svc.Register(ctx, "admin", "admin@aksjeradar.no", "hemmelig123")
	require.NoError(t, err)
	assert.Equal(t, types.TierExempt, result.Tier)
}

func TestActiveSubscriptionGrantsPremiumTier(t *testing.T) {
	f := setupUserService(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, "kari", "kari@example.no", "hemmelig123")
	require.NoError(t, err)

	f.subs.subs[registered.User.ID] = &models.Subscription{
		UserID:           registered.User.ID,
		Status:           types.SubscriptionActive,
		CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour),
	}

	tier, err := f.svc.ResolveTier(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TierPremium, tier)
}

func TestGetProfile(t *testing.T) {
	f := setupUserService(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, "kari", "kari@example.no", "hemmelig123")
	require.NoError(t, err)

	profile, err := f.svc.GetProfile(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "kari", profile.User.Username)
	assert.Equal(t, types.TierDemo, profile.Tier)
	assert.Nil(t, profile.Subscription)

	_, err = f.svc.GetProfile(ctx, "missing")
	assertServiceErr(t, err, types.ErrCodeNotFound)
}

func TestUpdateSettingsValidatesLanguage(t *testing.T) {
	f := setupUserService(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, "kari", "kari@example.no", "hemmelig123")
	require.NoError(t, err)

	err = f.svc.UpdateSettings(ctx, registered.User.ID, &models.UserSettings{Language: "sv"})
	assertServiceErr(t, err, types.ErrCodeInvalidInput)

	require.NoError(t, f.svc.UpdateSettings(ctx, registered.User.ID, &models.UserSettings{Language: "en"}))
}

func TestResolveTierUnknownUser(t *testing.T) {
	f := setupUserService(t)

	tier, err := f.svc.ResolveTier(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, types.TierNone, tier)
}
