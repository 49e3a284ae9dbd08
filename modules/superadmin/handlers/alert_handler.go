package handlers

import (
	"context"
	"encoding/json"

	"github.com/iota-uz/admin-portal/modules/superadmin/domain/aggregates/alert"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
)

// MessageAlertsChanged tells open dashboards to reload the alert banner.
const MessageAlertsChanged = "alerts.changed"

// Broadcaster pushes a frame to every signed-in connection.
type Broadcaster interface {
	Broadcast(msg []byte)
}

type AlertHandler struct {
	hub Broadcaster
	msg []byte
}

func NewAlertHandler(hub Broadcaster) *AlertHandler {
	msg, _ := json.Marshal(map[string]string{"type": MessageAlertsChanged})
	return &AlertHandler{hub: hub, msg: msg}
}

func (h *AlertHandler) Subscribe(bus eventbus.EventBus) {
	bus.Subscribe(func(context.Context, *alert.CreatedEvent) { h.hub.Broadcast(h.msg) })
	bus.Subscribe(func(context.Context, *alert.UpdatedEvent) { h.hub.Broadcast(h.msg) })
	bus.Subscribe(func(context.Context, *alert.DeletedEvent) { h.hub.Broadcast(h.msg) })
}
