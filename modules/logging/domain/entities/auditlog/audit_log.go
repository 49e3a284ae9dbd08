package auditlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog is the stored outcome of one command. TenantID and UserID are nil
// for commands issued outside a tenant, such as CLI provisioning.
type AuditLog struct {
	ID        uuid.UUID
	TenantID  *uuid.UUID
	UserID    *uuid.UUID
	Request   string
	EntityID  string
	Succeeded bool
	ErrorCode string
	Changes   json.RawMessage
	Payload   json.RawMessage
	IP        string
	CreatedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
