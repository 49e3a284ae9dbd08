// Package handlers delivers notifications over the websocket hub and by mail.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/iota-uz/go-i18n/v2/i18n"

	"github.com/iota-uz/admin-portal/modules/notifications/domain/aggregates/notification"
	"github.com/iota-uz/admin-portal/modules/notifications/services"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/mailer"
	"github.com/iota-uz/admin-portal/pkg/outbox"
)

const (
	MessageCreated       = "notification.created"
	MessageUnreadChanged = "notification.unread_changed"
)

// Pusher is the part of the websocket hub used for live delivery.
type Pusher interface {
	SendToUser(userID uuid.UUID, msg []byte)
}

// Message is the websocket frame sent to recipients.
type Message struct {
	Type         string             `json:"type"`
	Notification *notification.Item `json:"notification,omitempty"`
}

type NotificationHandler struct {
	hub    Pusher
	bundle *i18n.Bundle
	mailer mailer.Mailer
	origin string
}

func NewNotificationHandler(hub Pusher, bundle *i18n.Bundle, m mailer.Mailer, origin string) *NotificationHandler {
	return &NotificationHandler{hub: hub, bundle: bundle, mailer: m, origin: strings.TrimSuffix(origin, "/")}
}

func (h *NotificationHandler) Subscribe(bus eventbus.EventBus) {
	bus.Subscribe(h.onCreated)
	bus.Subscribe(h.onUnreadChanged)
	bus.Subscribe(outbox.On(outbox.TopicNotificationCreated, h.onCreatedMail))
}

func (h *NotificationHandler) onCreated(ctx context.Context, e *notification.CreatedEvent) {
	msg, err := json.Marshal(Message{
		Type: MessageCreated,
		Notification: &notification.Item{
			ID:        e.Result.ID,
			Subject:   e.Result.Subject,
			Body:      e.Result.Body,
			Kind:      e.Result.Kind,
			CreatedAt: e.Result.CreatedAt,
		},
	})
	if err != nil {
		composables.UseLogger(ctx).WithError(err).Error("failed to encode notification message")
		return
	}
	for _, id := range e.Result.Recipients {
		h.hub.SendToUser(id, msg)
	}
}

func (h *NotificationHandler) onUnreadChanged(_ context.Context, e *notification.UnreadChangedEvent) {
	msg, _ := json.Marshal(Message{Type: MessageUnreadChanged})
	h.hub.SendToUser(e.UserID, msg)
}

// onCreatedMail sends a copy to every recipient. A failed address fails the
// delivery so the relay retries the whole event.
func (h *NotificationHandler) onCreatedMail(ctx context.Context, _ *outbox.Meta, p services.CreatedPayload) error {
	var errs []error
	for _, c := range p.Recipients {
		lang := c.Language
		if lang == "" {
			lang = "en"
		}
		lctx := intl.WithLocalizer(ctx, i18n.NewLocalizer(h.bundle, lang, "en"))
		data := map[string]any{
			"FirstName": c.FirstName,
			"Subject":   p.Subject,
			"Body":      p.Body,
			"URL":       h.origin + "/notifications",
		}
		if err := h.mailer.Send(lctx, mailer.Mail{
			To:      []string{c.Email},
			Subject: intl.T(lctx, "Mail.Notification.Subject", data),
			Body:    intl.T(lctx, "Mail.Notification.Body", data),
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
