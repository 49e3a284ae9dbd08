package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/components"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/modules/logging/presentation/templates"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/middleware"
	"github.com/iota-uz/admin-portal/pkg/odata"
)

const logsPerPage = 50

// Tab is one log listing on the /logs page.
type Tab struct {
	Key    string
	Href   string
	Set    string
	Search []string
}

var tabs = []Tab{
	{Key: "audit", Href: "/logs", Set: "auditlogs", Search: []string{"request", "user", "entityId"}},
	{Key: "auth", Href: "/logs/auth", Set: "authlogs", Search: []string{"email", "user", "ip"}},
}

type LogsPageProps struct {
	Tab   Tab
	Tabs  []Tab
	Query string
	Rows  []odata.Row
	Pager *components.Pager
}

type LogsController struct {
	app      application.Application
	authz    *authz.Service
	pages    *components.Renderer
	basePath string
}

func NewLogsController(app application.Application) application.Controller {
	return &LogsController{
		app:      app,
		authz:    app.Service(authz.Service{}).(*authz.Service),
		pages:    templates.Pages(),
		basePath: "/logs",
	}
}

func (c *LogsController) Key() string {
	return c.basePath
}

func (c *LogsController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(
		middleware.RedirectNotAuthenticated(),
		middleware.RequireResource(c.authz, string(role.ResourceAuditRead)),
	)
	router.HandleFunc("", c.list(tabs[0])).Methods(http.MethodGet)
	router.HandleFunc("/auth", c.list(tabs[1])).Methods(http.MethodGet)
}

// enabled reports whether the audit feature is on for the caller's tenant.
// Superadmins always see logs.
func enabled(r *http.Request) bool {
	if u, err := composables.UseUser(r.Context()); err == nil && u.IsSuperadmin() {
		return true
	}
	t, err := composables.UseTenant(r.Context())
	return err == nil && t.HasFeature(tenant.FeatureAudit)
}

func (c *LogsController) list(tab Tab) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		values := r.URL.Query()
		pager := components.NewPager(values, logsPerPage)
		props := &LogsPageProps{Tab: tab, Tabs: tabs, Query: values.Get("q"), Pager: pager}
		v := components.NewView(c.app, r, intl.T(ctx, "Logs.Title"), props)

		if !enabled(r) {
			v.Flash = intl.T(ctx, "Errors.AuditDisabled")
			c.pages.Render(w, r, "logs", v)
			return
		}

		set, _ := c.app.OData().Get(tab.Set)
		res, err := odata.Run(ctx, set, &odata.Options{
			Filter: odata.SearchFilter(values.Get("q"), tab.Search...),
			Top:    pager.PerPage,
			Skip:   pager.Offset(),
			Count:  true,
		})
		if err != nil {
			v.Flash = components.ErrorMessage(ctx, err)
		} else {
			props.Rows = res.Rows
			pager.SetTotal(*res.Count)
		}
		c.pages.Render(w, r, "logs", v)
	}
}
