package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/storage"
	"github.com/aksjeradar/internal/types"
)

type stubAlertStore struct {
	alerts map[string]*models.PriceAlert
	nextID int
}

func newStubAlertStore() *stubAlertStore {
	return &stubAlertStore{alerts: make(map[string]*models.PriceAlert)}
}

func (s *stubAlertStore) Create(ctx context.Context, a *models.PriceAlert) error {
	s.nextID++
	a.ID = fmt.Sprintf("alert-%d", s.nextID)
	copied := *a
	s.alerts[a.ID] = &copied
	return nil
}

func (s *stubAlertStore) GetByID(ctx context.Context, alertID, userID string) (*models.PriceAlert, error) {
	a, ok := s.alerts[alertID]
	if !ok || a.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return a, nil
}

func (s *stubAlertStore) ListByUser(ctx context.Context, userID string) ([]*models.PriceAlert, error) {
	var out []*models.PriceAlert
	for _, a := range s.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAlertStore) ListArmed(ctx context.Context) ([]*models.PriceAlert, error) {
	var out []*models.PriceAlert
	for _, a := range s.alerts {
		if !a.Triggered {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAlertStore) MarkTriggered(ctx context.Context, alertID string, at time.Time) (bool, error) {
	a, ok := s.alerts[alertID]
	if !ok || a.Triggered {
		return false, nil
	}
	a.Triggered = true
	a.TriggeredAt = &at
	return true, nil
}

func (s *stubAlertStore) Rearm(ctx context.Context, alertID, userID string) error {
	a, ok := s.alerts[alertID]
	if !ok || a.UserID != userID {
		return storage.ErrNotFound
	}
	a.Triggered = false
	a.TriggeredAt = nil
	return nil
}

func (s *stubAlertStore) Delete(ctx context.Context, alertID, userID string) error {
	a, ok := s.alerts[alertID]
	if !ok || a.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.alerts, alertID)
	return nil
}

type stubAlertMailer struct {
	sent []string
}

func (m *stubAlertMailer) SendAlertTriggered(to, username, symbol string, condition types.AlertCondition, threshold, price float64) error {
	m.sent = append(m.sent, symbol)
	return nil
}

type alertFixture struct {
	svc      *AlertService
	alerts   *stubAlertStore
	quotes   *stubQuoteReader
	notifier *stubNotifier
	mailer   *stubAlertMailer
	users    *stubUserStore
}

func setupAlerts(t *testing.T, users ...*models.User) *alertFixture {
	t.Helper()
	f := &alertFixture{
		alerts:   newStubAlertStore(),
		quotes:   &stubQuoteReader{quotes: make(map[string]*types.Quote)},
		notifier: &stubNotifier{},
		mailer:   &stubAlertMailer{},
		users:    newStubUserStore(users...),
	}
	f.svc = NewAlertService(f.alerts, f.users, f.quotes, f.notifier, f.mailer, nil, zap.NewNop())
	return f
}

func TestCreateAlertValidation(t *testing.T) {
	f := setupAlerts(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "user-1", "", types.AlertAbove, 100)
	assertServiceErr(t, err, types.ErrCodeInvalidInput)

	_, err = f.svc.Create(ctx, "user-1", "EQNR.OL", "crosses", 100)
	assertServiceErr(t, err, types.ErrCodeInvalidInput)

	_, err = f.svc.Create(ctx, "user-1", "EQNR.OL", types.AlertAbove, 0)
	assertServiceErr(t, err, types.ErrCodeInvalidInput)
}

func TestCreateAlertLimit(t *testing.T) {
	f := setupAlerts(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := f.svc.Create(ctx, "user-1", fmt.Sprintf("SYM%d.OL", i), types.AlertAbove, 100)
		require.NoError(t, err)
	}

	_, err := f.svc.Create(ctx, "user-1", "EQNR.OL", types.AlertAbove, 100)
	assertServiceErr(t, err, types.ErrCodeConflict)
}

func TestEvaluateAllTriggersOnLivePrice(t *testing.T) {
	user := &models.User{ID: "user-1", Username: "kari", Email: "kari@example.no"}
	f := setupAlerts(t, user)
	ctx := context.Background()

	alert, err := f.svc.Create(ctx, "user-1", "EQNR.OL", types.AlertAbove, 300)
	require.NoError(t, err)

	f.quotes.quotes["EQNR.OL"] = liveQuote("EQNR.OL", 312.50, 1.2)

	fired, err := f.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.True(t, f.alerts.alerts[alert.ID].Triggered)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, types.NotificationAlert, f.notifier.sent[0].kind)
	assert.Equal(t, "EQNR.OL", f.notifier.sent[0].title)
	assert.Contains(t, f.notifier.sent[0].body, "over")
	assert.Equal(t, []string{"EQNR.OL"}, f.mailer.sent)
}

func TestEvaluateAllSkipsSyntheticPrices(t *testing.T) {
	user := &models.User{ID: "user-1", Username: "kari", Email: "kari@example.no"}
	f := setupAlerts(t, user)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "user-1", "EQNR.OL", types.AlertAbove, 100)
	require.NoError(t, err)

	f.quotes.quotes["EQNR.OL"] = &types.Quote{
		Symbol: "EQNR.OL", Price: 150, Currency: "NOK",
		Source: types.SourceSynthetic, Timestamp: time.Now(),
	}

	fired, err := f.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired, "synthetic prices must never trigger alerts")
	assert.Empty(t, f.notifier.sent)
}

func TestEvaluateAllFiresOnce(t *testing.T) {
	user := &models.User{ID: "user-1", Username: "kari", Email: "kari@example.no"}
	f := setupAlerts(t, user)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "user-1", "EQNR.OL", types.AlertAbove, 300)
	require.NoError(t, err)
	f.quotes.quotes["EQNR.OL"] = liveQuote("EQNR.OL", 312.50, 1.2)

	fired, err := f.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	fired, err = f.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired, "a triggered alert stays quiet until re-armed")
	assert.Len(t, f.notifier.sent, 1)
}

func TestEvaluateAllBelowCondition(t *testing.T) {
	user := &models.User{ID: "user-1", Username: "kari", Email: "kari@example.no"}
	f := setupAlerts(t, user)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "user-1", "DNB.OL", types.AlertBelow, 230)
	require.NoError(t, err)
	f.quotes.quotes["DNB.OL"] = liveQuote("DNB.OL", 228.00, -1.4)

	fired, err := f.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0].body, "under")
}

func TestEvaluateAllEnglishNotification(t *testing.T) {
	user := &models.User{
		ID: "user-1", Username: "kari", Email: "kari@example.no",
		Settings: &models.UserSettings{Language: "en"},
	}
	f := setupAlerts(t, user)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "user-1", "EQNR.OL", types.AlertAbove, 300)
	require.NoError(t, err)
	f.quotes.quotes["EQNR.OL"] = liveQuote("EQNR.OL", 312.50, 1.2)

	_, err = f.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0].body, "above")
}

func TestRearmAllowsRefiring(t *testing.T) {
	user := &models.User{ID: "user-1", Username: "kari", Email: "kari@example.no"}
	f := setupAlerts(t, user)
	ctx := context.Background()

	alert, err := f.svc.Create(ctx, "user-1", "EQNR.OL", types.AlertAbove, 300)
	require.NoError(t, err)
	f.quotes.quotes["EQNR.OL"] = liveQuote("EQNR.OL", 312.50, 1.2)

	_, err = f.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	require.NoError(t, f.svc.Rearm(ctx, alert.ID, "user-1"))

	fired, err := f.svc.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestDeleteAlertChecksOwnership(t *testing.T) {
	f := setupAlerts(t)
	ctx := context.Background()

	alert, err := f.svc.Create(ctx, "user-1", "EQNR.OL", types.AlertAbove, 300)
	require.NoError(t, err)

	err = f.svc.Delete(ctx, alert.ID, "user-2")
	assertServiceErr(t, err, types.ErrCodeNotFound)

	require.NoError(t, f.svc.Delete(ctx, alert.ID, "user-1"))
}
