package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

var ErrSessionNotFound = serrors.NewError(serrors.Unauthenticated, "session not found", "Errors.Unauthenticated")

// Revoked names a deleted session and its owner.
type Revoked struct {
	Token  string
	UserID uuid.UUID
}

type Repository interface {
	GetByToken(ctx context.Context, token string) (*Session, error)
	Create(ctx context.Context, s *Session) error
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	// DeleteByTenant removes every session of a tenant.
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) ([]Revoked, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
