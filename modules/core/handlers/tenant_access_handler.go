package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
)

type SessionRevoker interface {
	RevokeTenant(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
}

// TenantAccessHandler signs everyone out of a tenant once it is deactivated.
type TenantAccessHandler struct {
	sessions SessionRevoker
	hub      Disconnector
}

// NewTenantAccessHandler accepts a nil hub when websockets are disabled.
func NewTenantAccessHandler(sessions SessionRevoker, hub Disconnector) *TenantAccessHandler {
	return &TenantAccessHandler{sessions: sessions, hub: hub}
}

func (h *TenantAccessHandler) Subscribe(bus eventbus.EventBus) {
	bus.Subscribe(h.onUpdated)
}

func (h *TenantAccessHandler) onUpdated(ctx context.Context, e *tenant.UpdatedEvent) {
	if !e.Before.IsActive || e.Result.IsActive {
		return
	}
	logger := composables.UseLogger(ctx).WithField("tenant-id", e.Result.ID.String())
	var users []uuid.UUID
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		var err error
		users, err = h.sessions.RevokeTenant(txCtx, e.Result.ID)
		return err
	})
	if err != nil {
		logger.WithError(err).Error("failed to revoke sessions of deactivated tenant")
		return
	}
	if h.hub != nil {
		for _, id := range users {
			h.hub.DisconnectUser(id)
		}
	}
	logger.WithField("users", len(users)).Info("signed out deactivated tenant")
}
