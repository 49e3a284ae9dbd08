package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

func TestProvisioner(t *testing.T) {
	t.Parallel()

	params := ProvisionParams{
		Name:           "Globex",
		Domain:         "Globex.test",
		AdminEmail:     "Owner@Globex.test",
		AdminFirstName: "Hank",
		AdminLastName:  "Scorpio",
		AdminPassword:  "long-enough-password",
	}

	t.Run("creates tenant role and admin", func(t *testing.T) {
		tenants, roles, users := newFakeTenantRepo(), newFakeRoleRepo(), newFakeUserRepo()
		p := NewProvisioner(tenants, roles, users)
		ctx := composables.WithTx(context.Background(), &fakeTx{})

		res, err := p.Provision(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, "globex.test", res.Tenant.Domain())
		assert.ElementsMatch(t, tenant.AllFeatures, res.Tenant.Features())
		assert.Equal(t, AdministratorsRole, res.Role.Name())
		assert.ElementsMatch(t, role.AllResources, res.Role.Resources())
		assert.Equal(t, "owner@globex.test", res.Admin.Email())
		assert.Equal(t, res.Tenant.ID(), res.Admin.TenantID())
		assert.Equal(t, user.TypeUser, res.Admin.Type())
		assert.Contains(t, res.Admin.RoleIDs(), res.Role.ID())
		assert.True(t, res.Admin.CheckPassword("long-enough-password"))
	})

	t.Run("rejects taken domain", func(t *testing.T) {
		existing := tenant.New("Other", tenant.WithDomain("globex.test"))
		p := NewProvisioner(newFakeTenantRepo(existing), newFakeRoleRepo(), newFakeUserRepo())
		_, err := p.Provision(composables.WithTx(context.Background(), &fakeTx{}), params)
		require.ErrorIs(t, err, ErrDomainTaken)
		assert.Equal(t, serrors.Conflict, serrors.CodeOf(err))
	})

	t.Run("rejects weak password", func(t *testing.T) {
		weak := params
		weak.AdminPassword = "short"
		p := NewProvisioner(newFakeTenantRepo(), newFakeRoleRepo(), newFakeUserRepo())
		_, err := p.Provision(composables.WithTx(context.Background(), &fakeTx{}), weak)
		require.Error(t, err)
		assert.Equal(t, serrors.Validation, serrors.CodeOf(err))
	})
}
