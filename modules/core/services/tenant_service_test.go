package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

func TestTenantService(t *testing.T) {
	t.Parallel()

	t.Run("domain lookups are cached and invalidated on save", func(t *testing.T) {
		tn := tenant.New("Acme", tenant.WithDomain("acme.test"))
		repo := newFakeTenantRepo(tn)
		svc := NewTenantService(repo, newTestCache(t), &fakeAuthorizer{}, newTestBus())
		ctx := testContext(&fakeTx{}, tn.ID())

		got, err := svc.GetByDomain(ctx, "ACME.test:3200")
		require.NoError(t, err)
		assert.Equal(t, tn.ID(), got.ID())
		_, err = svc.GetByDomain(ctx, "acme.test")
		require.NoError(t, err)
		assert.Equal(t, 1, repo.reads)

		change, err := svc.Update(ctx, UpdateTenant{Name: "Acme Corp"})
		require.NoError(t, err)
		assert.Equal(t, "Acme", change.Before.Name)
		assert.Equal(t, "Acme Corp", change.After.Name)

		got, err = svc.GetByDomain(ctx, "acme.test")
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", got.Name())
	})

	t.Run("features", func(t *testing.T) {
		tn := tenant.New("Acme", tenant.WithDomain("acme.test"))
		svc := NewTenantService(newFakeTenantRepo(tn), newTestCache(t), &fakeAuthorizer{}, newTestBus())
		ctx := testContext(&fakeTx{}, tn.ID())

		_, err := svc.SetFeatures(ctx, SetTenantFeatures{Features: []tenant.Feature{"teleport"}})
		assert.Equal(t, serrors.Validation, serrors.CodeOf(err))

		change, err := svc.SetFeatures(ctx, SetTenantFeatures{Features: []tenant.Feature{tenant.FeatureAudit}})
		require.NoError(t, err)
		assert.Equal(t, []tenant.Feature{tenant.FeatureAudit}, change.After.Features)
		assert.Empty(t, change.Before.Features)
	})

	t.Run("unknown domain", func(t *testing.T) {
		svc := NewTenantService(newFakeTenantRepo(), newTestCache(t), &fakeAuthorizer{}, newTestBus())
		_, err := svc.GetByDomain(testContext(&fakeTx{}, tenant.New("x").ID()), "nowhere.test")
		require.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})
}
