package role

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

var ErrRoleNotFound = serrors.NewError(serrors.RoleNotFound, "role not found", "Errors.RoleNotFound")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Role, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Role, error)
	GetAll(ctx context.Context) ([]Role, error)
	NameExists(ctx context.Context, name string, exclude uuid.UUID) (bool, error)
	Create(ctx context.Context, r Role) (Role, error)
	Update(ctx context.Context, r Role) (Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
