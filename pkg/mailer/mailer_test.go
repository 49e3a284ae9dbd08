package mailer_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/pkg/configuration"
	"github.com/iota-uz/admin-portal/pkg/mailer"
)

func TestCompose(t *testing.T) {
	msg := string(mailer.Compose("no-reply@example.com", mailer.Mail{
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Reset\r\nBcc: evil@example.com",
		Body:    "line1\nline2",
	}))
	require.Contains(t, msg, "To: a@example.com, b@example.com\r\n")
	require.Contains(t, msg, "Subject: Reset  Bcc: evil@example.com\r\n")
	require.Contains(t, msg, "line1\r\nline2")
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	m := mailer.New(configuration.MailOptions{Driver: "log"}, logger)
	require.NoError(t, m.Send(context.Background(), mailer.Mail{To: []string{"a@example.com"}, Subject: "Hi", Body: "code 123456"}))
	require.Contains(t, buf.String(), "code 123456")
}
