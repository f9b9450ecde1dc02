package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/anhpnguyen/edupay-backend/pkg/config"
	"github.com/anhpnguyen/edupay-backend/pkg/logger"
)

// Mailer delivers a single message. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type smtpMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer builds a Mailer backed by a plain-auth SMTP relay.
func NewSMTPMailer(cfg config.SMTPConfig) Mailer {
	return &smtpMailer{cfg: cfg}
}

func (m *smtpMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n",
		m.cfg.From, to, subject,
	)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(headers+htmlBody)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

type logMailer struct {
	logg *logger.Logger
}

// NewLogMailer returns a Mailer that only logs. Used when SMTP is disabled.
func NewLogMailer(logg *logger.Logger) Mailer {
	return &logMailer{logg: logg}
}

func (m *logMailer) Send(ctx context.Context, to, subject, _ string) error {
	if m.logg != nil {
		logCtx := m.logg.WithFields(ctx, map[string]any{
			"to":      to,
			"subject": subject,
		})
		m.logg.Info(logCtx, "notify.mail.skipped")
	}
	return nil
}
