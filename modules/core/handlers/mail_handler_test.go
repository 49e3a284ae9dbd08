package handlers_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/iota-uz/admin-portal/modules/core/handlers"
	"github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mailer"
	"github.com/iota-uz/admin-portal/pkg/outbox"
)

type recordingMailer struct {
	sent []mailer.Mail
}

func (m *recordingMailer) Send(_ context.Context, mail mailer.Mail) error {
	m.sent = append(m.sent, mail)
	return nil
}

func newBundle(t *testing.T) *i18n.Bundle {
	t.Helper()
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	_, err := bundle.ParseMessageFileBytes([]byte(`
[Mail.Welcome]
Subject = "Welcome"
Body = "Hi {{.FirstName}}, sign in at {{.URL}}"

[Mail.PasswordReset]
Subject = "Reset"
Body = "Hi {{.FirstName}}, open {{.URL}}"
`), "en.toml")
	require.NoError(t, err)
	return bundle
}

func publish(t *testing.T, bus eventbus.EventBus, topic string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	meta := &outbox.Meta{Topic: topic, EventID: uuid.New()}
	require.NoError(t, bus.PublishE(context.Background(), meta, json.RawMessage(raw)))
}

func TestMailHandler(t *testing.T) {
	m := &recordingMailer{}
	bus := eventbus.NewEventPublisher(logrus.New())
	handlers.NewMailHandler(newBundle(t), m, "https://portal.test/").Subscribe(bus)

	publish(t, bus, outbox.TopicUserCreated, services.UserCreatedPayload{
		Email: "ada@example.com", FirstName: "Ada", Language: "en",
	})
	publish(t, bus, outbox.TopicPasswordResetRequested, services.PasswordResetPayload{
		Email: "ada@example.com", FirstName: "Ada", Token: "tok", ExpiresAt: time.Now().Add(time.Hour),
	})
	publish(t, bus, outbox.TopicTenantProvisioned, map[string]string{"name": "ignored"})

	require.Len(t, m.sent, 2)
	require.Equal(t, "Welcome", m.sent[0].Subject)
	require.Equal(t, "Hi Ada, sign in at https://portal.test/login", m.sent[0].Body)
	require.Equal(t, []string{"ada@example.com"}, m.sent[1].To)
	require.Equal(t, "Hi Ada, open https://portal.test/reset-password?token=tok", m.sent[1].Body)
}
