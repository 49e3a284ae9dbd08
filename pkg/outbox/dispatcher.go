package outbox

import (
	"context"
	"encoding/json"

	"github.com/iota-uz/admin-portal/pkg/eventbus"
)

// BusDispatcher hands relayed messages to an event bus. PublishE surfaces
// handler errors and panics so the relay can retry.
type BusDispatcher struct {
	bus eventbus.EventBus
}

func NewBusDispatcher(bus eventbus.EventBus) *BusDispatcher {
	return &BusDispatcher{bus: bus}
}

func (d *BusDispatcher) Dispatch(ctx context.Context, msg DispatchedMessage) error {
	meta := msg.Meta
	return d.bus.PublishE(ctx, &meta, msg.Payload)
}

// HandlerFunc receives the decoded payload of one topic.
type HandlerFunc[T any] func(ctx context.Context, meta *Meta, payload T) error

// On adapts fn to the bus subscriber signature, ignoring other topics.
func On[T any](topic string, fn HandlerFunc[T]) func(context.Context, *Meta, json.RawMessage) error {
	return func(ctx context.Context, meta *Meta, raw json.RawMessage) error {
		if meta.Topic != topic {
			return nil
		}
		var payload T
		if err := json.Unmarshal(raw, &payload); err != nil {
			return err
		}
		return fn(ctx, meta, payload)
	}
}
