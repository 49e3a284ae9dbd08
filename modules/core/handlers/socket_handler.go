package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
)

// Disconnector closes the live sockets of a user.
type Disconnector interface {
	DisconnectUser(userID uuid.UUID)
}

// SocketHandler drops websocket connections of users that lose access.
type SocketHandler struct {
	hub Disconnector
}

func NewSocketHandler(hub Disconnector) *SocketHandler {
	return &SocketHandler{hub: hub}
}

func (h *SocketHandler) Subscribe(bus eventbus.EventBus) {
	bus.Subscribe(h.onUpdated)
	bus.Subscribe(h.onDeleted)
}

func (h *SocketHandler) onUpdated(_ context.Context, e *user.UpdatedEvent) {
	lostAccess := (e.Before.IsActive && !e.Result.IsActive) || (!e.Before.IsLocked && e.Result.IsLocked)
	if lostAccess {
		h.hub.DisconnectUser(e.Result.ID)
	}
}

func (h *SocketHandler) onDeleted(_ context.Context, e *user.DeletedEvent) {
	h.hub.DisconnectUser(e.Result.ID)
}
