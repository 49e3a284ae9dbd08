package authz_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type staticSource struct {
	grants  map[uuid.UUID][]authz.RoleGrant
	members map[uuid.UUID][]authz.Membership
	calls   int
}

func (s *staticSource) TenantPolicy(_ context.Context, tenantID uuid.UUID) ([]authz.RoleGrant, []authz.Membership, error) {
	s.calls++
	return s.grants[tenantID], s.members[tenantID], nil
}

func TestService_Authorize(t *testing.T) {
	tenantA, tenantB := uuid.New(), uuid.New()
	admin, viewer := uuid.New(), uuid.New()
	adminRole, viewerRole := uuid.New(), uuid.New()

	src := &staticSource{
		grants: map[uuid.UUID][]authz.RoleGrant{
			tenantA: {
				{RoleID: adminRole, Resources: []string{"users.read", "users.write", "roles.read"}},
				{RoleID: viewerRole, Resources: []string{"users.read"}},
			},
		},
		members: map[uuid.UUID][]authz.Membership{
			tenantA: {{UserID: admin, RoleID: adminRole}, {UserID: viewer, RoleID: viewerRole}},
		},
	}
	svc, err := authz.NewService(authz.Config{Mode: authz.ModeEnforce, Source: src})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, tenantA, authz.NewRequest(tenantA, admin, "users.write")))
	require.NoError(t, svc.Authorize(ctx, tenantA, authz.NewRequest(tenantA, viewer, "users.read")))

	err = svc.Authorize(ctx, tenantA, authz.NewRequest(tenantA, viewer, "users.write"))
	require.Equal(t, serrors.Forbidden, serrors.CodeOf(err))

	// Same user id has no grants in another tenant.
	err = svc.Authorize(ctx, tenantB, authz.NewRequest(tenantB, admin, "users.read"))
	require.Equal(t, serrors.Forbidden, serrors.CodeOf(err))

	res, err := svc.Resources(ctx, tenantA, viewer, []string{"users.read", "roles.read"})
	require.NoError(t, err)
	require.Equal(t, []string{"users.read"}, res)
	require.Equal(t, 2, src.calls)
}

func TestService_Invalidate(t *testing.T) {
	tenant, user, role := uuid.New(), uuid.New(), uuid.New()
	src := &staticSource{
		grants:  map[uuid.UUID][]authz.RoleGrant{tenant: {{RoleID: role, Resources: []string{"roles.write"}}}},
		members: map[uuid.UUID][]authz.Membership{tenant: {{UserID: user, RoleID: role}}},
	}
	svc, err := authz.NewService(authz.Config{Source: src})
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := svc.Check(ctx, tenant, authz.NewRequest(tenant, user, "roles.write"))
	require.NoError(t, err)
	require.True(t, ok)

	src.members[tenant] = nil
	svc.Invalidate(tenant)

	ok, err = svc.Check(ctx, tenant, authz.NewRequest(tenant, user, "roles.write"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 2, src.calls)
}

func TestService_ShadowAndDisabled(t *testing.T) {
	tenant := uuid.New()
	for _, mode := range []authz.Mode{authz.ModeShadow, authz.ModeDisabled} {
		svc, err := authz.NewService(authz.Config{Mode: mode, Source: &staticSource{}})
		require.NoError(t, err)
		require.NoError(t, svc.Authorize(context.Background(), tenant, authz.NewRequest(tenant, uuid.New(), "audit.read")))
	}
}

func TestSplitResource(t *testing.T) {
	obj, act := authz.SplitResource("notifications.write")
	require.Equal(t, "notifications", obj)
	require.Equal(t, "write", act)
	obj, act = authz.SplitResource("tenant")
	require.Equal(t, "tenant", obj)
	require.Equal(t, "*", act)
}
