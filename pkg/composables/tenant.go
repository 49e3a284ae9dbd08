package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/constants"
)

var ErrNoTenantID = errors.New("tenant id not found in context")

func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.TenantIDKey, tenantID)
}

func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(constants.TenantIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoTenantID
	}
	return id, nil
}

var ErrNoTenant = errors.New("tenant not found in context")

// WithTenant stores the request tenant and its id.
func WithTenant(ctx context.Context, t *tenant.Tenant) context.Context {
	ctx = context.WithValue(ctx, constants.TenantKey, t)
	return WithTenantID(ctx, t.ID())
}

func UseTenant(ctx context.Context) (*tenant.Tenant, error) {
	t, ok := ctx.Value(constants.TenantKey).(*tenant.Tenant)
	if !ok || t == nil {
		return nil, ErrNoTenant
	}
	return t, nil
}
