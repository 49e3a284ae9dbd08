// Package handlers reacts to relayed integration events of the core module.
package handlers

import (
	"context"
	"strings"

	"github.com/iota-uz/go-i18n/v2/i18n"

	"github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/mailer"
	"github.com/iota-uz/admin-portal/pkg/outbox"
)

type MailHandler struct {
	bundle *i18n.Bundle
	mailer mailer.Mailer
	origin string
}

func NewMailHandler(bundle *i18n.Bundle, m mailer.Mailer, origin string) *MailHandler {
	return &MailHandler{bundle: bundle, mailer: m, origin: strings.TrimSuffix(origin, "/")}
}

// Subscribe attaches the handler to the bus the outbox relay publishes on.
func (h *MailHandler) Subscribe(bus eventbus.EventBus) {
	bus.Subscribe(outbox.On(outbox.TopicUserCreated, h.onUserCreated))
	bus.Subscribe(outbox.On(outbox.TopicPasswordResetRequested, h.onPasswordResetRequested))
}

func RegisterMailHandlers(app application.Application, origin string) {
	NewMailHandler(app.Bundle(), app.Mailer(), origin).Subscribe(app.EventPublisher())
}

func (h *MailHandler) localized(ctx context.Context, lang string) context.Context {
	if lang == "" {
		lang = "en"
	}
	return intl.WithLocalizer(ctx, i18n.NewLocalizer(h.bundle, lang, "en"))
}

func (h *MailHandler) onUserCreated(ctx context.Context, meta *outbox.Meta, p services.UserCreatedPayload) error {
	ctx = h.localized(ctx, p.Language)
	data := map[string]any{"FirstName": p.FirstName, "URL": h.origin + "/login"}
	composables.UseLogger(ctx).WithField("event-id", meta.EventID.String()).Debug("sending welcome mail")
	return h.mailer.Send(ctx, mailer.Mail{
		To:      []string{p.Email},
		Subject: intl.T(ctx, "Mail.Welcome.Subject"),
		Body:    intl.T(ctx, "Mail.Welcome.Body", data),
	})
}

func (h *MailHandler) onPasswordResetRequested(ctx context.Context, _ *outbox.Meta, p services.PasswordResetPayload) error {
	ctx = h.localized(ctx, p.Language)
	data := map[string]any{
		"FirstName": p.FirstName,
		"URL":       h.origin + "/reset-password?token=" + p.Token,
		"ExpiresAt": p.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"),
	}
	return h.mailer.Send(ctx, mailer.Mail{
		To:      []string{p.Email},
		Subject: intl.T(ctx, "Mail.PasswordReset.Subject"),
		Body:    intl.T(ctx, "Mail.PasswordReset.Body", data),
	})
}
