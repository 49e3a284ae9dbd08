package components

import (
	"net/http"
	"strings"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/types"
)

// View is the data every page template receives. Data holds the
// page-specific props.
type View struct {
	Page   *types.PageContext
	Title  string
	User   user.User
	Tenant *tenant.Tenant
	Nav    []types.NavigationItem
	Flash  string
	Errors map[string]string
	Data   any
	// Bare pages (sign-in, password reset) render without the sidebar.
	Bare bool
}

// NewView collects the page context, the signed-in user and the sidebar
// entries the user may see.
func NewView(app application.Application, r *http.Request, title string, data any) *View {
	ctx := r.Context()
	v := &View{Title: title, Data: data, Errors: map[string]string{}}
	if pageCtx, err := composables.UsePageCtx(ctx); err == nil {
		v.Page = pageCtx
	} else {
		v.Page = &types.PageContext{URL: r.URL}
	}
	if t, err := composables.UseTenant(ctx); err == nil {
		v.Tenant = t
	}
	u, err := composables.UseUser(ctx)
	if err != nil || u == nil {
		v.Bare = true
		return v
	}
	v.User = u
	if v.Page.Localizer != nil {
		hasFeature := func(f string) bool {
			return v.Tenant != nil && v.Tenant.HasFeature(tenant.Feature(f))
		}
		v.Nav = types.FilterNavigation(app.NavItems(v.Page.Localizer), u.IsSuperadmin(), v.Page.Can, hasFeature)
	}
	return v
}

func (v *View) T(key string, args ...map[string]interface{}) string {
	return v.Page.TSafe(key, args...)
}

// Active reports whether href is the current page or one of its parents.
func (v *View) Active(href string) bool {
	if v.Page == nil || v.Page.URL == nil {
		return false
	}
	path := v.Page.URL.Path
	if href == "/" {
		return path == "/"
	}
	return path == href || strings.HasPrefix(path, href+"/")
}

func (v *View) Error(field string) string {
	return v.Errors[field]
}

func (v *View) WithFlash(msg string) *View {
	v.Flash = msg
	return v
}

func (v *View) WithErrors(errs map[string]string) *View {
	if errs != nil {
		v.Errors = errs
	}
	return v
}
