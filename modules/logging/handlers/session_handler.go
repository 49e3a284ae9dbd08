package handlers

import (
	"context"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
)

type AuthLogWriter interface {
	RecordSignIn(ctx context.Context, event *session.CreatedEvent) error
	RecordFailure(ctx context.Context, event *user.SignInFailedEvent) error
}

// SessionEventsHandler turns sign-in events into authentication log rows.
type SessionEventsHandler struct {
	writer AuthLogWriter
}

func NewSessionEventsHandler(writer AuthLogWriter) *SessionEventsHandler {
	return &SessionEventsHandler{writer: writer}
}

func (h *SessionEventsHandler) Subscribe(bus eventbus.EventBus) {
	bus.Subscribe(h.onSessionCreated)
	bus.Subscribe(h.onSignInFailed)
}

func (h *SessionEventsHandler) onSessionCreated(ctx context.Context, event *session.CreatedEvent) {
	ctx = composables.WithTenantID(ctx, event.Result.TenantID)
	if err := h.writer.RecordSignIn(ctx, event); err != nil {
		composables.UseLogger(ctx).WithError(err).
			WithField("user_id", event.Result.UserID).
			Warn("failed to persist authentication log")
	}
}

func (h *SessionEventsHandler) onSignInFailed(ctx context.Context, event *user.SignInFailedEvent) {
	ctx = composables.WithTenantID(ctx, event.Snapshot.TenantID)
	if err := h.writer.RecordFailure(ctx, event); err != nil {
		composables.UseLogger(ctx).WithError(err).
			WithField("user_id", event.Snapshot.ID).
			Warn("failed to persist failed sign-in")
	}
}
