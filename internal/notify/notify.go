// Package notify delivers prospect activity notifications to the sales
// team.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/eprofos/backoffice/internal/config"
	"github.com/eprofos/backoffice/internal/crm"
)

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(context.Context, *crm.Prospect, string) error { return nil }

// SMTP sends one mail per prospect event to the configured recipients.
type SMTP struct {
	cfg  config.MailConfig
	send func(m *gomail.Message) error
}

// NewSMTP creates an SMTP notifier from mail configuration.
func NewSMTP(cfg config.MailConfig) *SMTP {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTP{cfg: cfg, send: func(m *gomail.Message) error { return d.DialAndSend(m) }}
}

// FromConfig returns an SMTP notifier when mail is configured, Nop
// otherwise.
func FromConfig(cfg config.MailConfig) crm.Notifier {
	if !cfg.Enabled() {
		return Nop{}
	}
	return NewSMTP(cfg)
}

// Notify mails a short activity summary for the prospect.
func (s *SMTP) Notify(ctx context.Context, p *crm.Prospect, event string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.To...)
	m.SetHeader("Subject", subject(p, event))
	m.SetBody("text/plain", body(p, event))

	if err := s.send(m); err != nil {
		return eris.Wrapf(err, "notify: send mail for prospect %s", p.ID)
	}

	zap.L().Debug("notify: mail sent",
		zap.String("prospect_id", p.ID),
		zap.String("event", event),
	)
	return nil
}

func subject(p *crm.Prospect, event string) string {
	if event == "new_prospect" {
		return fmt.Sprintf("Nouveau prospect: %s %s", p.FirstName, p.LastName)
	}
	return fmt.Sprintf("Activité prospect: %s %s", p.FirstName, p.LastName)
}

func body(p *crm.Prospect, event string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Événement: %s\n", event)
	fmt.Fprintf(&b, "Nom: %s %s\n", p.FirstName, p.LastName)
	fmt.Fprintf(&b, "Email: %s\n", p.Email)
	if p.Phone != "" {
		fmt.Fprintf(&b, "Téléphone: %s\n", p.Phone)
	}
	if p.Company != "" {
		fmt.Fprintf(&b, "Société: %s\n", p.Company)
	}
	fmt.Fprintf(&b, "Statut: %s\n", p.Status)
	fmt.Fprintf(&b, "Source: %s\n", p.Source)
	return b.String()
}
