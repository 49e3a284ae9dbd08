package services

import (
	"time"

	"github.com/google/uuid"
)

// GetActiveAlerts is answered by the module that owns system alerts. The
// dashboard hides the panel when no handler is registered.
type GetActiveAlerts struct{}

type ActiveAlert struct {
	ID         uuid.UUID  `json:"id"`
	Message    string     `json:"message"`
	Severity   string     `json:"severity"`
	ActiveFrom time.Time  `json:"activeFrom"`
	ActiveTo   *time.Time `json:"activeTo,omitempty"`
}

// GetUnreadNotificationCount counts unread notifications of the signed-in user.
type GetUnreadNotificationCount struct{}
