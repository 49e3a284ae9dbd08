package controllers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/modules/core/presentation/controllers"
	"github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type grantSource struct {
	grants  []authz.RoleGrant
	members []authz.Membership
}

func (s *grantSource) TenantPolicy(context.Context, uuid.UUID) ([]authz.RoleGrant, []authz.Membership, error) {
	return s.grants, s.members, nil
}

type tenantFixture struct {
	tenant  *tenant.Tenant
	writer  user.User
	reader  user.User
	updates []services.UpdateTenant
	ctrl    application.Controller
}

func (f *tenantFixture) as(u user.User) http.Handler {
	return newRouter(f.ctrl, signedIn(u, f.tenant))
}

func newTenantFixture(t *testing.T) *tenantFixture {
	t.Helper()
	f := &tenantFixture{tenant: tenant.New("Acme", tenant.WithDomain("acme.test"))}
	f.writer = tenantUser(f.tenant)
	f.reader = user.New("rob@acme.test", "Rob", "Reader", user.WithID(uuid.New()), user.WithTenantID(f.tenant.ID()))

	admins, viewers := uuid.New(), uuid.New()
	svc, err := authz.NewService(authz.Config{Source: &grantSource{
		grants: []authz.RoleGrant{
			{RoleID: admins, Resources: []string{string(role.ResourceTenantRead), string(role.ResourceTenantWrite)}},
			{RoleID: viewers, Resources: []string{string(role.ResourceTenantRead)}},
		},
		members: []authz.Membership{
			{UserID: f.writer.ID(), RoleID: admins},
			{UserID: f.reader.ID(), RoleID: viewers},
		},
	}})
	require.NoError(t, err)

	m := mediator.New(mediator.Validation(mediator.NewStructValidator()))
	mediator.Register(m, func(context.Context, services.GetCurrentTenant) (*tenant.Tenant, error) {
		return f.tenant, nil
	})
	mediator.Register(m, func(_ context.Context, cmd services.UpdateTenant) (services.TenantChange, error) {
		f.updates = append(f.updates, cmd)
		before := f.tenant.Snapshot()
		f.tenant.SetName(cmd.Name)
		return services.TenantChange{ID: f.tenant.ID().String(), Before: before, After: f.tenant.Snapshot()}, nil
	})

	app := application.New(&application.ApplicationOptions{Bundle: application.LoadBundle(), Mediator: m})
	app.RegisterServices(svc)
	f.ctrl = controllers.NewTenantController(app)
	return f
}

func TestTenantController_APIPatch(t *testing.T) {
	cases := []struct {
		name    string
		patch   string
		status  int
		wantErr string
		applied []string
		final   string
	}{
		{name: "rename", patch: `{"name":"Acme Labs"}`, status: http.StatusOK, applied: []string{"Acme Labs"}, final: "Acme Labs"},
		{name: "empty patch keeps fields", patch: `{}`, status: http.StatusOK, applied: []string{"Acme"}, final: "Acme"},
		{name: "null removes the name", patch: `{"name":null}`, status: http.StatusBadRequest, wantErr: "Name", final: "Acme"},
		{name: "unknown field", patch: `{"domain":"evil.test"}`, status: http.StatusBadRequest, wantErr: "body", final: "Acme"},
		{name: "read-only field", patch: `{"name":"Acme","isActive":false}`, status: http.StatusBadRequest, wantErr: "body", final: "Acme"},
		{name: "malformed patch", patch: `{"name":`, status: http.StatusBadRequest, wantErr: "body", final: "Acme"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newTenantFixture(t)

			req := httptest.NewRequest(http.MethodPatch, "/api/tenant", strings.NewReader(tc.patch))
			req.Header.Set("Content-Type", "application/merge-patch+json")
			rr := do(f.as(f.writer), req)

			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			env := decodeEnvelope(t, rr)
			if tc.wantErr != "" {
				require.False(t, env.IsSuccess)
				assert.Equal(t, string(serrors.Validation), env.Error.Code)
				assert.Contains(t, env.Error.Fields, tc.wantErr)
			} else {
				require.True(t, env.IsSuccess)
				data, ok := env.Data.(map[string]any)
				require.True(t, ok)
				assert.Equal(t, tc.final, data["name"])
				assert.Equal(t, "acme.test", data["domain"])
			}
			applied := make([]string, 0, len(f.updates))
			for _, u := range f.updates {
				applied = append(applied, u.Name)
			}
			assert.Equal(t, tc.applied, nilIfEmpty(applied))
			assert.Equal(t, tc.final, f.tenant.Name())
		})
	}
}

func TestTenantController_APIPatchNeedsWrite(t *testing.T) {
	f := newTenantFixture(t)
	r := f.as(f.reader)

	rr := do(r, httptest.NewRequest(http.MethodGet, "/api/tenant", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(r, httptest.NewRequest(http.MethodPatch, "/api/tenant", strings.NewReader(`{"name":"Mine"}`)))
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, string(serrors.Forbidden), decodeEnvelope(t, rr).Error.Code)
	assert.Empty(t, f.updates)
	assert.Equal(t, "Acme", f.tenant.Name())
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
