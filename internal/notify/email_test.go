package notify

import (
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/aksjeradar/internal/config"
	"github.com/aksjeradar/internal/types"
	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureSender(t *testing.T) (*EmailSender, *[]*email.Email) {
	t.Helper()

	var sent []*email.Email
	s := NewEmailSender(config.SMTPConfig{
		Host:   "smtp.example.com",
		Port:   "587",
		Sender: "Aksjeradar <ikke-svar@aksjeradar.no>",
	}, nil)
	s.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		sent = append(sent, e)
		return nil
	}
	return s, &sent
}

func TestEmailSender_SendWelcome(t *testing.T) {
	s, sent := captureSender(t)

	require.NoError(t, s.SendWelcome("kari@example.com", "kari"))
	require.Len(t, *sent, 1)

	e := (*sent)[0]
	assert.Equal(t, []string{"kari@example.com"}, e.To)
	assert.Equal(t, "Aksjeradar <ikke-svar@aksjeradar.no>", e.From)
	assert.Equal(t, "Velkommen til Aksjeradar", e.Subject)
	assert.Contains(t, string(e.Text), "Hei kari")
}

func TestEmailSender_SendAlertTriggered(t *testing.T) {
	s, sent := captureSender(t)

	require.NoError(t, s.SendAlertTriggered("ola@example.com", "ola", "EQNR.OL", types.AlertAbove, 300, 312.45))
	require.Len(t, *sent, 1)

	e := (*sent)[0]
	assert.Equal(t, "Kursvarsel utløst: EQNR.OL", e.Subject)
	assert.Contains(t, string(e.Text), "312.45")
	assert.Contains(t, string(e.Text), "over")

	require.NoError(t, s.SendAlertTriggered("ola@example.com", "ola", "DNB.OL", types.AlertBelow, 220, 218.5))
	assert.Contains(t, string((*sent)[1].Text), "under")
}

func TestEmailSender_SendDailyDigest_MarksSynthetic(t *testing.T) {
	s, sent := captureSender(t)

	quotes := []*types.Quote{
		{Symbol: "EQNR.OL", Price: 312.45, ChangePercent: 0.69, Source: types.SourceLive},
		{Symbol: "DNB.OL", Price: 150, Source: types.SourceSynthetic},
	}
	require.NoError(t, s.SendDailyDigest("kari@example.com", "kari", quotes))

	body := string((*sent)[0].Text)
	assert.Contains(t, body, "EQNR.OL")
	assert.Contains(t, body, "(estimat)")
}

func TestEmailSender_SendSubscriptionReceipt(t *testing.T) {
	s, sent := captureSender(t)

	end := time.Date(2026, 9, 25, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SendSubscriptionReceipt("kari@example.com", "kari", "Månedlig", "199", end))

	body := string((*sent)[0].Text)
	assert.Contains(t, body, "199 NOK")
	assert.Contains(t, body, "25.09.2026")
}

func TestEmailSender_DeliveryError(t *testing.T) {
	s := NewEmailSender(config.SMTPConfig{Host: "smtp.example.com", Port: "587", Sender: "a@b.no"}, nil)
	s.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		return errors.New("connection refused")
	}

	err := s.SendWelcome("kari@example.com", "kari")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send email")
}
