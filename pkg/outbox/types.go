// Package outbox implements the transactional outbox for integration events:
// messages are written in the command transaction and relayed afterwards.
package outbox

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

const (
	TopicUserCreated            = "user.created"
	TopicTenantProvisioned      = "tenant.provisioned"
	TopicPasswordResetRequested = "password_reset.requested"
	TopicNotificationCreated    = "notification.created"
)

// Message is the unit stored in the outbox table.
type Message struct {
	TenantID uuid.UUID
	Topic    string
	EventID  uuid.UUID
	Payload  json.RawMessage
}

// Meta is the dispatch metadata handed to subscribers.
type Meta struct {
	TenantID uuid.UUID
	Topic    string
	EventID  uuid.UUID
	Sequence int64
	Attempts int
}

type DispatchedMessage struct {
	Meta    Meta
	Payload json.RawMessage
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg DispatchedMessage) error
}
