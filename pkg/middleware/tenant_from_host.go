package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/routing"
)

// TenantResolver looks a tenant up by request host.
type TenantResolver interface {
	GetByDomain(ctx context.Context, domain string) (*tenant.Tenant, error)
}

// RequireTenantFromHost binds the tenant owning the request host. Unknown
// hosts get 404; ops endpoints and assets are served without a tenant.
func RequireTenantFromHost(resolver TenantResolver) mux.MiddlewareFunc {
	classifier := routing.NewClassifier(routing.DefaultRules())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch classifier.ClassifyPath(r.URL.Path) {
			case routing.RouteClassOps, routing.RouteClassAsset:
				next.ServeHTTP(w, r)
				return
			}
			host := normalizeHost(r.Host)
			if host == "" {
				http.NotFound(w, r)
				return
			}

			t, err := resolver.GetByDomain(r.Context(), host)
			if err != nil {
				logger := composables.UseLogger(r.Context())
				logger.WithField("host", host).WithField("path", r.URL.Path).WithError(err).Warn("tenant not found for host")
				http.NotFound(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(composables.WithTenant(r.Context(), t)))
		})
	}
}

func normalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = strings.ToLower(raw)
	if h, _, err := net.SplitHostPort(raw); err == nil {
		return strings.ToLower(strings.TrimSpace(h))
	}
	return raw
}
