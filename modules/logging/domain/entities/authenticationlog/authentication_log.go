package authenticationlog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuthenticationLog is one sign-in attempt. UserID is nil when the attempt
// did not resolve to a known account.
type AuthenticationLog struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	UserID    *uuid.UUID
	Email     string
	Method    string
	Succeeded bool
	IP        string
	UserAgent string
	CreatedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, log *AuthenticationLog) error
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
