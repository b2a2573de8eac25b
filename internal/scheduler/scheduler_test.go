package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/types"
)

type fakeSweeper struct {
	expired int64
	err     error
	calls   int
}

func (f *fakeSweeper) ExpireLapsed(ctx context.Context) (int64, error) {
	f.calls++
	return f.expired, f.err
}

type fakeRecipients struct {
	users []*models.User
}

func (f *fakeRecipients) ListDigestRecipients(ctx context.Context) ([]*models.User, error) {
	return f.users, nil
}

type fakeDigestQuotes struct{}

func (f *fakeDigestQuotes) GetQuotes(ctx context.Context, symbols []string, tier types.AccessTier) ([]*types.Quote, error) {
	quotes := make([]*types.Quote, 0, len(symbols))
	for _, s := range symbols {
		quotes = append(quotes, &types.Quote{Symbol: s, Price: 100, Source: types.SourceLive})
	}
	return quotes, nil
}

type fakeMailer struct {
	sentTo []string
	err    error
}

func (f *fakeMailer) SendDailyDigest(to, username string, quotes []*types.Quote) error {
	if f.err != nil {
		return f.err
	}
	f.sentTo = append(f.sentTo, to)
	return nil
}

type fakeNews struct {
	calls int
}

func (f *fakeNews) Refresh(ctx context.Context) error {
	f.calls++
	return nil
}

func TestRunExpireSweep(t *testing.T) {
	sweeper := &fakeSweeper{expired: 3}
	s := New(&Config{Billing: sweeper, Logger: zap.NewNop()})

	s.runExpireSweep(context.Background())
	assert.Equal(t, 1, sweeper.calls)
}

func TestRunDailyDigest(t *testing.T) {
	mailer := &fakeMailer{}
	s := New(&Config{
		Recipients: &fakeRecipients{users: []*models.User{
			{ID: "user-1", Username: "kari", Email: "kari@example.no"},
			{ID: "user-2", Username: "ola", Email: "ola@example.no"},
		}},
		Market:  &fakeDigestQuotes{},
		Mailer:  mailer,
		Symbols: []string{"EQNR.OL", "DNB.OL"},
		Logger:  zap.NewNop(),
	})

	s.runDailyDigest(context.Background())
	assert.Equal(t, []string{"kari@example.no", "ola@example.no"}, mailer.sentTo)
}

func TestRunDailyDigestNoRecipients(t *testing.T) {
	mailer := &fakeMailer{}
	s := New(&Config{
		Recipients: &fakeRecipients{},
		Market:     &fakeDigestQuotes{},
		Mailer:     mailer,
		Logger:     zap.NewNop(),
	})

	s.runDailyDigest(context.Background())
	assert.Empty(t, mailer.sentTo)
}

func TestRunDailyDigestMailFailureContinues(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	s := New(&Config{
		Recipients: &fakeRecipients{users: []*models.User{
			{ID: "user-1", Username: "kari", Email: "kari@example.no"},
		}},
		Market:  &fakeDigestQuotes{},
		Mailer:  mailer,
		Symbols: []string{"EQNR.OL"},
		Logger:  zap.NewNop(),
	})

	// Must not panic or abort; errors are logged per recipient.
	s.runDailyDigest(context.Background())
	assert.Empty(t, mailer.sentTo)
}

func TestStartRegistersJobs(t *testing.T) {
	s := New(&Config{
		Billing:    &fakeSweeper{},
		Recipients: &fakeRecipients{},
		Market:     &fakeDigestQuotes{},
		Mailer:     &fakeMailer{},
		News:       &fakeNews{},
		Symbols:    []string{"EQNR.OL"},
		Logger:     zap.NewNop(),
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 3)
}

func TestStartSkipsDisabledJobs(t *testing.T) {
	s := New(&Config{Billing: &fakeSweeper{}, Logger: zap.NewNop()})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 1)
}
