package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/types"
)

// ResourceLister narrows candidates to the resources a user holds.
type ResourceLister interface {
	Resources(ctx context.Context, tenantID, userID uuid.UUID, candidates []string) ([]string, error)
}

// WithPageContext must run after ProvideLocalizer and Authorize.
func WithPageContext(lister ResourceLister, candidates []string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				ctx := r.Context()
				localizer, found := intl.UseLocalizer(ctx)
				if !found {
					panic(intl.ErrNoLocalizer)
				}
				pageCtx := &types.PageContext{
					URL:       r.URL,
					Localizer: localizer,
					Locale:    intl.UseLocale(ctx),
				}
				if u, err := composables.UseUser(ctx); err == nil {
					pageCtx.Superadmin = u.IsSuperadmin()
					pageCtx.Resources = map[string]bool{}
					if !u.IsSuperadmin() {
						granted, err := lister.Resources(ctx, u.TenantID(), u.ID(), candidates)
						if err != nil {
							composables.UseLogger(ctx).WithError(err).Warn("failed to resolve page resources")
						}
						for _, res := range granted {
							pageCtx.Resources[res] = true
						}
					}
				}
				next.ServeHTTP(w, r.WithContext(composables.WithPageCtx(ctx, pageCtx)))
			},
		)
	}
}
