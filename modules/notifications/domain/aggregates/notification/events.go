package notification

import "github.com/google/uuid"

type CreatedEvent struct {
	TenantID uuid.UUID
	Result   Snapshot
}

// UnreadChangedEvent is raised when a user reads or dismisses notifications.
type UnreadChangedEvent struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
}
