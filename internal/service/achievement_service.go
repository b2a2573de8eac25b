package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aksjeradar/internal/cache"
	"github.com/aksjeradar/internal/i18n"
	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/types"
)

// AchievementStore is the achievement persistence surface.
type AchievementStore interface {
	ListCatalog(ctx context.Context) ([]*models.Achievement, error)
	ListUnlocked(ctx context.Context, userID string) ([]*models.UserAchievement, error)
	Unlock(ctx context.Context, userID, achievementID string) (bool, error)
	GetStats(ctx context.Context, userID string) (*models.UserStats, error)
	IncrementStat(ctx context.Context, userID, stat string) (*models.UserStats, error)
	AddPoints(ctx context.Context, userID string, points int) error
}

// AchievementService tracks activity stats and unlocks achievements
// when counters cross catalog thresholds.
type AchievementService struct {
	achievements AchievementStore
	notifier     Notifier
	memCache     *cache.Cache
	logger       *zap.Logger
}

// AchievementView pairs a catalog entry with its unlock state.
type AchievementView struct {
	Achievement *models.Achievement `json:"achievement"`
	Unlocked    bool                `json:"unlocked"`
	UnlockedAt  *time.Time          `json:"unlockedAt,omitempty"`
	Progress    int64               `json:"progress"`
}

const catalogCacheKey = "achievements:catalog"

// NewAchievementService creates an achievement service.
func NewAchievementService(achievements AchievementStore, notifier Notifier, memCache *cache.Cache, logger *zap.Logger) *AchievementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AchievementService{
		achievements: achievements,
		notifier:     notifier,
		memCache:     memCache,
		logger:       logger.Named("achievement"),
	}
}

// RecordStat bumps an activity counter and unlocks any achievements
// whose threshold the new value reached. Failures are logged, never
// surfaced: gamification must not break the triggering operation.
func (s *AchievementService) RecordStat(ctx context.Context, userID, stat string) {
	stats, err := s.achievements.IncrementStat(ctx, userID, stat)
	if err != nil {
		s.logger.Error("failed to increment stat",
			zap.String("userId", userID), zap.String("stat", stat), zap.Error(err))
		return
	}

	catalog, err := s.catalog(ctx)
	if err != nil {
		s.logger.Error("failed to load achievement catalog", zap.Error(err))
		return
	}

	for _, a := range catalog {
		if a.Stat != stat || stats.Counter(stat) < a.Threshold {
			continue
		}
		s.unlock(ctx, userID, a)
	}
}

// unlock records an unlock once; the unique constraint makes repeat
// threshold crossings no-ops.
func (s *AchievementService) unlock(ctx context.Context, userID string, a *models.Achievement) {
	fresh, err := s.achievements.Unlock(ctx, userID, a.ID)
	if err != nil {
		s.logger.Error("failed to unlock achievement",
			zap.String("userId", userID), zap.String("code", a.Code), zap.Error(err))
		return
	}
	if !fresh {
		return
	}

	s.logger.Info("achievement unlocked",
		zap.String("userId", userID), zap.String("code", a.Code), zap.Int("points", a.Points))

	if err := s.achievements.AddPoints(ctx, userID, a.Points); err != nil {
		s.logger.Error("failed to add achievement points", zap.String("userId", userID), zap.Error(err))
	}

	if s.notifier != nil {
		body := fmt.Sprintf(i18n.T(i18n.LangNorwegian, i18n.MsgAchievementUnlock), a.Name)
		if err := s.notifier.Notify(ctx, userID, types.NotificationAchievement, a.Name, body); err != nil {
			s.logger.Error("failed to create achievement notification", zap.String("userId", userID), zap.Error(err))
		}
	}
}

// List returns the full catalog annotated with the user's unlock
// state and progress.
func (s *AchievementService) List(ctx context.Context, userID string) ([]*AchievementView, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	unlocked, err := s.achievements.ListUnlocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlockedAt := make(map[string]time.Time, len(unlocked))
	for _, ua := range unlocked {
		unlockedAt[ua.AchievementID] = ua.UnlockedAt
	}

	stats, err := s.achievements.GetStats(ctx, userID)
	if err != nil {
		// No stats row yet means no activity.
		stats = &models.UserStats{UserID: userID}
	}

	out := make([]*AchievementView, 0, len(catalog))
	for _, a := range catalog {
		view := &AchievementView{
			Achievement: a,
			Progress:    stats.Counter(a.Stat),
		}
		if at, ok := unlockedAt[a.ID]; ok {
			view.Unlocked = true
			t := at
			view.UnlockedAt = &t
		}
		out = append(out, view)
	}
	return out, nil
}

// Stats returns the user's activity counters and points.
func (s *AchievementService) Stats(ctx context.Context, userID string) (*models.UserStats, error) {
	stats, err := s.achievements.GetStats(ctx, userID)
	if err != nil {
		return &models.UserStats{UserID: userID}, nil
	}
	return stats, nil
}

// catalog loads the achievement catalog through the in-process cache.
// The catalog only changes with migrations.
func (s *AchievementService) catalog(ctx context.Context) ([]*models.Achievement, error) {
	if cached, ok := s.memCache.Get(catalogCacheKey); ok {
		return cached.([]*models.Achievement), nil
	}
	catalog, err := s.achievements.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}
	s.memCache.Set(catalogCacheKey, catalog, time.Hour)
	return catalog, nil
}
