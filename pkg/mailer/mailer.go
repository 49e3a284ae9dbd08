// Package mailer sends plain-text mail for integration event handlers.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admin-portal/pkg/configuration"
)

type Mail struct {
	To      []string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// New picks the driver configured by MAIL_DRIVER.
func New(opts configuration.MailOptions, logger *logrus.Logger) Mailer {
	if opts.Driver == "smtp" {
		return &SMTPMailer{opts: opts}
	}
	return &LogMailer{logger: logger}
}

// LogMailer writes mail to the log instead of sending it.
type LogMailer struct {
	logger *logrus.Logger
}

func (l *LogMailer) Send(_ context.Context, m Mail) error {
	l.logger.WithFields(logrus.Fields{
		"to":      strings.Join(m.To, ","),
		"subject": m.Subject,
	}).Info(m.Body)
	return nil
}

type SMTPMailer struct {
	opts configuration.MailOptions
}

func (s *SMTPMailer) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(m.To) == 0 {
		return fmt.Errorf("mailer: no recipients")
	}
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	var auth smtp.Auth
	if s.opts.Username != "" {
		auth = smtp.PlainAuth("", s.opts.Username, s.opts.Password, s.opts.Host)
	}
	return smtp.SendMail(addr, auth, s.opts.From, m.To, Compose(s.opts.From, m))
}

// Compose renders an RFC 5322 message.
func Compose(from string, m Mail) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(m.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
