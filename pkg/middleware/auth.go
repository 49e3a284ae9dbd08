package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
	"github.com/iota-uz/admin-portal/pkg/routing"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

// SessionAuthorizer resolves session tokens.
type SessionAuthorizer interface {
	Authorize(ctx context.Context, token string) (*session.Session, user.User, error)
}

// ResourceChecker evaluates role resources of a user.
type ResourceChecker interface {
	Authorize(ctx context.Context, tenantID uuid.UUID, req authz.Request) error
}

var (
	ErrNotAuthenticated = serrors.NewError(serrors.Unauthenticated, "sign in required", "Errors.Unauthenticated")
	ErrForbidden        = serrors.NewError(serrors.Forbidden, "you do not have access to this resource", "Errors.Forbidden")
)

// Authorize binds the session named by cookieKey. Unknown or expired tokens
// clear the cookie and continue anonymously.
func Authorize(auth SessionAuthorizer, cookieKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieKey)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, u, err := auth.Authorize(r.Context(), cookie.Value)
			if err != nil {
				if serrors.CodeOf(err) == serrors.Internal {
					composables.UseLogger(r.Context()).WithError(err).Error("failed to authorize session")
				}
				http.SetCookie(w, &http.Cookie{Name: cookieKey, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
				next.ServeHTTP(w, r)
				return
			}
			ctx := composables.WithSession(r.Context(), sess)
			ctx = composables.WithUser(ctx, u)
			if params, ok := composables.UseParams(ctx); ok {
				params.Authenticated = true
			}
			logger := composables.UseLogger(ctx).WithField("user-id", u.ID().String())
			ctx = composables.WithLogger(ctx, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, err error) {
	classifier := routing.NewClassifier(routing.DefaultRules())
	if classifier.WantsJSON(r.URL.Path) {
		_ = httpapi.WriteError(w, err)
		return
	}
	if serrors.CodeOf(err) == serrors.Unauthenticated {
		target := "/login"
		if r.Method == http.MethodGet && r.URL.Path != "/" {
			target += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}

// RedirectNotAuthenticated sends anonymous page requests to /login and
// answers anonymous API calls with 401.
func RedirectNotAuthenticated() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := composables.UseUser(r.Context()); err != nil {
				deny(w, r, ErrNotAuthenticated)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireResource rejects users whose roles do not grant resource.
// Superadmins are always let through.
func RequireResource(checker ResourceChecker, resource string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := composables.UseUser(r.Context())
			if err != nil {
				deny(w, r, ErrNotAuthenticated)
				return
			}
			if !u.IsSuperadmin() {
				req := authz.NewRequest(u.TenantID(), u.ID(), resource)
				if err := checker.Authorize(r.Context(), u.TenantID(), req); err != nil {
					deny(w, r, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireSuperadmin() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := composables.UseUser(r.Context())
			if err != nil {
				deny(w, r, ErrNotAuthenticated)
				return
			}
			if !u.IsSuperadmin() {
				deny(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
