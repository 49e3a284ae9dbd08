package tenant

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

var ErrTenantNotFound = serrors.NewError(serrors.TenantNotFound, "tenant not found", "Errors.TenantNotFound")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetByDomain(ctx context.Context, domain string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
	DomainExists(ctx context.Context, domain string, exclude uuid.UUID) (bool, error)
	Create(ctx context.Context, t *Tenant) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) (*Tenant, error)
}
