package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aksjeradar/internal/access"
	"github.com/aksjeradar/internal/auth"
	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/storage"
	"github.com/aksjeradar/internal/types"
)

// UserStore is the user persistence surface the user service needs.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateSettings(ctx context.Context, userID string, settings *models.UserSettings) error
	UpdateTier(ctx context.Context, userID string, tier types.AccessTier) error
}

// SubscriptionReader looks up a user's subscription.
type SubscriptionReader interface {
	GetByUserID(ctx context.Context, userID string) (*models.Subscription, error)
}

// RefreshTokens is the refresh token store surface.
type RefreshTokens interface {
	Issue(ctx context.Context, userID string) (string, error)
	Redeem(ctx context.Context, token string) (userID, newToken string, err error)
	Revoke(ctx context.Context, token string) error
}

// StatRecorder records a user activity stat for achievements.
type StatRecorder interface {
	RecordStat(ctx context.Context, userID, stat string)
}

// WelcomeMailer sends the registration email.
type WelcomeMailer interface {
	SendWelcome(to, username string) error
}

// UserService handles registration, login and profile management.
type UserService struct {
	users      UserStore
	subs       SubscriptionReader
	tokens     *auth.TokenManager
	refresh    RefreshTokens
	checker    *access.Checker
	stats      StatRecorder
	mailer     WelcomeMailer
	logger     *zap.Logger
	bcryptCost int
}

// AuthResult carries the outcome of a successful authentication.
type AuthResult struct {
	User         *models.User     `json:"user"`
	Tier         types.AccessTier `json:"tier"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
}

// Profile is the authenticated user's own view of their account.
type Profile struct {
	User         *models.User         `json:"user"`
	Tier         types.AccessTier     `json:"tier"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// NewUserService creates a user service. stats and mailer may be nil.
func NewUserService(
	users UserStore,
	subs SubscriptionReader,
	tokens *auth.TokenManager,
	refresh RefreshTokens,
	checker *access.Checker,
	stats StatRecorder,
	mailer WelcomeMailer,
	bcryptCost int,
	logger *zap.Logger,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:      users,
		subs:       subs,
		tokens:     tokens,
		refresh:    refresh,
		checker:    checker,
		stats:      stats,
		mailer:     mailer,
		bcryptCost: bcryptCost,
		logger:     logger.Named("user"),
	}
}

// Register creates an account and signs the user in.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if len(username) < 3 || len(username) > 50 {
		return nil, invalidInput("username must be 3-50 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalidInput("invalid email address")
	}
	if len(password) < 8 {
		return nil, invalidInput("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, internal("failed to create account")
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Tier:         types.TierDemo,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, conflict("username or email already in use")
		}
		return nil, err
	}

	if s.mailer != nil && user.WantsEmail() {
		if err := s.mailer.SendWelcome(user.Email, user.Username); err != nil {
			// Registration already succeeded; a failed welcome email is
			// logged and dropped.
			s.logger.Warn("failed to send welcome email", zap.String("userId", user.ID), zap.Error(err))
		}
	}

	return s.issueTokens(ctx, user)
}

// Login authenticates with username or email plus password.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, invalidInput("identifier and password are required")
	}

	var user *models.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Same error for unknown user and wrong password.
			return nil, unauthorized("invalid credentials")
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, unauthorized("invalid credentials")
	}

	if s.stats != nil {
		s.stats.RecordStat(ctx, user.ID, models.StatLogins)
	}

	return s.issueTokens(ctx, user)
}

// Refresh exchanges a refresh token for a new token pair.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	userID, newToken, err := s.refresh.Redeem(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, unauthorized("invalid or expired refresh token")
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tier := s.resolveTier(ctx, user)
	accessToken, err := s.tokens.Issue(user.ID, string(tier))
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         user,
		Tier:         tier,
		AccessToken:  accessToken,
		RefreshToken: newToken,
	}, nil
}

// Logout revokes a refresh token.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	return s.refresh.Revoke(ctx, refreshToken)
}

// GetProfile returns the user's account, effective tier, and
// subscription if any.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapStorageErr(err, "user not found", "")
	}

	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	return &Profile{
		User:         user,
		Tier:         s.checker.ResolveTier(user, sub, time.Now()),
		Subscription: sub,
	}, nil
}

// UpdateSettings replaces the user's settings.
func (s *UserService) UpdateSettings(ctx context.Context, userID string, settings *models.UserSettings) error {
	if settings == nil {
		return invalidInput("settings are required")
	}
	if settings.Language != "" && settings.Language != "nb" && settings.Language != "en" {
		return invalidInput("language must be nb or en")
	}
	if err := s.users.UpdateSettings(ctx, userID, settings); err != nil {
		return mapStorageErr(err, "user not found", "")
	}
	return nil
}

// ResolveTier computes the user's effective tier right now.
func (s *UserService) ResolveTier(ctx context.Context, userID string) (types.AccessTier, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.TierNone, nil
		}
		return types.TierNone, err
	}
	return s.resolveTier(ctx, user), nil
}

func (s *UserService) resolveTier(ctx context.Context, user *models.User) types.AccessTier {
	sub, err := s.subs.GetByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("failed to load subscription for tier resolution",
			zap.String("userId", user.ID), zap.Error(err))
	}
	return s.checker.ResolveTier(user, sub, time.Now())
}

func (s *UserService) issueTokens(ctx context.Context, user *models.User) (*AuthResult, error) {
	tier := s.resolveTier(ctx, user)

	accessToken, err := s.tokens.Issue(user.ID, string(tier))
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.refresh.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         user,
		Tier:         tier,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
