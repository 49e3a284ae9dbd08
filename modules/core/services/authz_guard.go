package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/composables"
)

// Authorizer is the part of *authz.Service the services depend on.
type Authorizer interface {
	Authorize(ctx context.Context, tenantID uuid.UUID, req authz.Request) error
	Invalidate(tenantID uuid.UUID)
}

// authorizeResource lets calls without a signed-in user through; those are
// seeders, CLI commands and event handlers. Superadmins bypass tenant checks.
func authorizeResource(ctx context.Context, az Authorizer, resource role.Resource) error {
	currentUser, err := composables.UseUser(ctx)
	if err != nil || currentUser == nil {
		return nil
	}
	if currentUser.IsSuperadmin() {
		return nil
	}
	tenantID := currentUser.TenantID()
	return az.Authorize(ctx, tenantID, authz.NewRequest(tenantID, currentUser.ID(), string(resource)))
}
