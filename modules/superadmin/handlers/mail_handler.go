// Package handlers mails the first administrator of a provisioned tenant.
package handlers

import (
	"context"
	"net/url"

	"github.com/iota-uz/go-i18n/v2/i18n"

	"github.com/iota-uz/admin-portal/modules/superadmin/services"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/mailer"
	"github.com/iota-uz/admin-portal/pkg/outbox"
)

type MailHandler struct {
	bundle *i18n.Bundle
	mailer mailer.Mailer
	scheme string
	port   string
}

// NewMailHandler builds sign-in links on the tenant domain with the scheme
// and port of origin.
func NewMailHandler(bundle *i18n.Bundle, m mailer.Mailer, origin string) *MailHandler {
	h := &MailHandler{bundle: bundle, mailer: m, scheme: "https"}
	if u, err := url.Parse(origin); err == nil && u.Scheme != "" {
		h.scheme, h.port = u.Scheme, u.Port()
	}
	return h
}

func (h *MailHandler) Subscribe(bus eventbus.EventBus) {
	bus.Subscribe(outbox.On(outbox.TopicTenantProvisioned, h.onTenantProvisioned))
}

func (h *MailHandler) loginURL(domain string) string {
	host := domain
	if h.port != "" {
		host += ":" + h.port
	}
	return (&url.URL{Scheme: h.scheme, Host: host, Path: "/login"}).String()
}

func (h *MailHandler) onTenantProvisioned(ctx context.Context, meta *outbox.Meta, p services.TenantProvisionedPayload) error {
	lang := p.Language
	if lang == "" {
		lang = "en"
	}
	ctx = intl.WithLocalizer(ctx, i18n.NewLocalizer(h.bundle, lang, "en"))
	data := map[string]any{
		"FirstName": p.AdminFirstName,
		"Tenant":    p.Name,
		"URL":       h.loginURL(p.Domain),
	}
	composables.UseLogger(ctx).WithField("event-id", meta.EventID.String()).Debug("sending tenant provisioned mail")
	return h.mailer.Send(ctx, mailer.Mail{
		To:      []string{p.AdminEmail},
		Subject: intl.T(ctx, "Mail.TenantProvisioned.Subject", data),
		Body:    intl.T(ctx, "Mail.TenantProvisioned.Body", data),
	})
}
