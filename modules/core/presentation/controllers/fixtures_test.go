package controllers_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/composables"
)

func newApp() application.Application {
	return application.New(&application.ApplicationOptions{Bundle: application.LoadBundle()})
}

// signedIn puts u and its tenant on every request, the way the session
// middleware does after a successful Authorize.
func signedIn(u user.User, t *tenant.Tenant) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := composables.WithUser(r.Context(), u)
			if t != nil {
				ctx = composables.WithTenantID(ctx, t.ID())
				ctx = composables.WithTenant(ctx, t)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRouter(c application.Controller, mw ...mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(mw...)
	c.Register(r)
	return r
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func tenantUser(t *tenant.Tenant) user.User {
	return user.New("ann@acme.test", "Ann", "Member", user.WithID(uuid.New()), user.WithTenantID(t.ID()))
}

func superadmin() user.User {
	return user.New("root@portal.test", "Root", "Admin", user.WithID(uuid.New()), user.WithType(user.TypeSuperadmin))
}

type allowAll struct{}

func (allowAll) Authorize(context.Context, uuid.UUID, authz.Request) error { return nil }
