// Package mailer provides best-effort email delivery via SMTP.
package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/opendatahq/issues-backend/internal/config"
)

// Mailer sends a single plain-text message. Delivery is best effort;
// callers must treat errors as non-fatal.
type Mailer interface {
	Send(to, subject, body string) error
}

type SMTPMailer struct {
	host     string
	port     string
	from     string
	fromName string
	auth     smtp.Auth
}

func NewSMTP(cfg *config.Config) *SMTPMailer {
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		fromName: cfg.SMTPFromName,
		auth:     auth,
	}
}

func (m *SMTPMailer) IsConfigured() bool {
	return m.host != "" && m.port != "" && m.from != ""
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	if !m.IsConfigured() {
		return fmt.Errorf("mailer not configured")
	}

	from := m.from
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.from)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		to,
		from,
		subject,
		body,
	))

	return smtp.SendMail(m.host+":"+m.port, m.auth, m.from, []string{to}, msg)
}
