package outbox

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/composables"
)

const insertMessageQuery = `
	INSERT INTO outbox (tenant_id, topic, payload, event_id, available_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (event_id) DO NOTHING`

// Enqueue stores an integration event in the transaction carried by ctx,
// so it is only relayed if the surrounding command commits.
func Enqueue(ctx context.Context, topic string, payload any) error {
	if topic == "" {
		return invalidConfig("topic is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "outbox: marshal payload")
	}
	msg := Message{Topic: topic, EventID: uuid.New(), Payload: body}
	if tenantID, err := composables.UseTenantID(ctx); err == nil {
		msg.TenantID = tenantID
	}
	return EnqueueMessage(ctx, msg)
}

func EnqueueMessage(ctx context.Context, msg Message) error {
	if msg.EventID == uuid.Nil {
		return invalidConfig("event_id is required")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	var tenantID *uuid.UUID
	if msg.TenantID != uuid.Nil {
		tenantID = &msg.TenantID
	}
	if _, err := tx.Exec(ctx, insertMessageQuery, tenantID, msg.Topic, msg.Payload, msg.EventID); err != nil {
		return errors.Wrap(err, "outbox enqueue")
	}
	metricsSingleton().enqueueTotal.WithLabelValues(msg.Topic).Inc()
	return nil
}
