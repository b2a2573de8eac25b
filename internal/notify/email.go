// Package notify sends outbound email to users. Bodies are written in
// Norwegian; in-app notifications are handled by the notification
// service, this package only covers SMTP delivery.
package notify

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	"github.com/aksjeradar/internal/config"
	"github.com/aksjeradar/internal/types"
)

// EmailSender delivers emails over SMTP.
type EmailSender struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewEmailSender creates an email sender.
func NewEmailSender(cfg config.SMTPConfig, logger *zap.Logger) *EmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailSender{
		cfg:    cfg,
		logger: logger.Named("email"),
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (s *EmailSender) deliver(e *email.Email) error {
	e.From = s.cfg.Sender

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := s.send(e, addr, auth); err != nil {
		s.logger.Error("failed to send email",
			zap.Strings("to", e.To),
			zap.String("subject", e.Subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", zap.Strings("to", e.To), zap.String("subject", e.Subject))
	return nil
}

// SendWelcome sends the registration welcome email.
func (s *EmailSender) SendWelcome(to, username string) error {
	e := email.NewEmail()
	e.To = []string{to}
	e.Subject = "Velkommen til Aksjeradar"

	body := fmt.Sprintf(
		"Hei %s,\n\n"+
			"Velkommen til Aksjeradar! Kontoen din er opprettet.\n\n"+
			"Med demo-tilgang kan du utforske kurser fra Oslo Børs med et begrenset antall "+
			"oppslag per dag. Oppgrader til et abonnement for full tilgang til porteføljer, "+
			"kursvarsler og sanntidsdata.\n\n"+
			"Vennlig hilsen,\nAksjeradar",
		username,
	)
	e.Text = []byte(body)

	return s.deliver(e)
}

// SendAlertTriggered notifies the user that a price alert fired.
func (s *EmailSender) SendAlertTriggered(to, username, symbol string, condition types.AlertCondition, threshold, price float64) error {
	e := email.NewEmail()
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Kursvarsel utløst: %s", symbol)

	direction := "over"
	if condition == types.AlertBelow {
		direction = "under"
	}

	body := fmt.Sprintf(
		"Hei %s,\n\n"+
			"Kursvarselet ditt for %s er utløst.\n"+
			"Kursen er nå %.2f NOK, %s terskelen din på %.2f NOK.\n\n"+
			"Varselet er nå deaktivert. Du kan reaktivere det på varselsiden.\n\n"+
			"Vennlig hilsen,\nAksjeradar",
		username, symbol, price, direction, threshold,
	)
	e.Text = []byte(body)

	return s.deliver(e)
}

// SendSubscriptionReceipt confirms a successful payment.
func (s *EmailSender) SendSubscriptionReceipt(to, username, planName string, amountNOK string, periodEnd time.Time) error {
	e := email.NewEmail()
	e.To = []string{to}
	e.Subject = "Kvittering for abonnement"

	body := fmt.Sprintf(
		"Hei %s,\n\n"+
			"Takk for betalingen! Vi har mottatt %s NOK for abonnementet «%s».\n"+
			"Abonnementet er aktivt til %s.\n\n"+
			"Vennlig hilsen,\nAksjeradar",
		username, amountNOK, planName, periodEnd.Format("02.01.2006"),
	)
	e.Text = []byte(body)

	return s.deliver(e)
}

// SendPaymentFailed warns the user about a failed renewal.
func (s *EmailSender) SendPaymentFailed(to, username string, periodEnd time.Time) error {
	e := email.NewEmail()
	e.To = []string{to}
	e.Subject = "Betaling feilet"

	body := fmt.Sprintf(
		"Hei %s,\n\n"+
			"Vi klarte ikke å fornye abonnementet ditt. Du beholder tilgangen til %s "+
			"mens vi prøver på nytt.\n"+
			"Oppdater betalingsinformasjonen din for å unngå at abonnementet avsluttes.\n\n"+
			"Vennlig hilsen,\nAksjeradar",
		username, periodEnd.Format("02.01.2006"),
	)
	e.Text = []byte(body)

	return s.deliver(e)
}

// SendDailyDigest sends the opt-in daily market summary.
func (s *EmailSender) SendDailyDigest(to, username string, quotes []*types.Quote) error {
	e := email.NewEmail()
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Markedsoppsummering %s", time.Now().Format("02.01.2006"))

	body := fmt.Sprintf("Hei %s,\n\nDagens kurser fra Oslo Børs:\n\n", username)
	for _, q := range quotes {
		marker := ""
		if q.Source == types.SourceSynthetic {
			marker = " (estimat)"
		}
		body += fmt.Sprintf("  %-10s %8.2f NOK  %+.2f%%%s\n", q.Symbol, q.Price, q.ChangePercent, marker)
	}
	body += "\nVennlig hilsen,\nAksjeradar"
	e.Text = []byte(body)

	return s.deliver(e)
}
