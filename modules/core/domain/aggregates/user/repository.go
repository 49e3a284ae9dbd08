package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

var ErrUserNotFound = serrors.NewError(serrors.UserNotFound, "user not found", "Errors.UserNotFound")

// Repository reads and writes users of the tenant carried by ctx.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	EmailExists(ctx context.Context, email string, exclude uuid.UUID) (bool, error)
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, roleID uuid.UUID) (int64, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) (User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
