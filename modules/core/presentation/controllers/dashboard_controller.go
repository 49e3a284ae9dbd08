package controllers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/components"
	"github.com/iota-uz/admin-portal/modules/core/presentation/templates"
	"github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/middleware"
)

type DashboardProps struct {
	Alerts     []services.ActiveAlert `json:"alerts"`
	ShowAlerts bool                   `json:"-"`
	Unread     int64                  `json:"unread"`
	ShowUnread bool                   `json:"-"`
}

type DashboardController struct {
	app   application.Application
	pages *components.Renderer
}

func NewDashboardController(app application.Application) application.Controller {
	return &DashboardController{app: app, pages: templates.Pages()}
}

func (c *DashboardController) Key() string {
	return "/"
}

func (c *DashboardController) Register(r *mux.Router) {
	r.Handle("/", middleware.RedirectNotAuthenticated()(http.HandlerFunc(c.Get))).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard", c.GetJSON).Methods(http.MethodGet)
}

// load collects the panels whose providers are registered. A panel failing
// to load is logged and hidden.
func (c *DashboardController) load(r *http.Request) *DashboardProps {
	ctx := r.Context()
	logger := composables.UseLogger(ctx)
	props := &DashboardProps{}

	alerts, err := mediator.Send[[]services.ActiveAlert](ctx, c.app.Mediator(), services.GetActiveAlerts{})
	switch {
	case err == nil:
		props.Alerts, props.ShowAlerts = alerts, true
	case !errors.Is(err, mediator.ErrNoHandler):
		logger.WithError(err).Warn("failed to load active alerts")
	}

	unread, err := mediator.Send[int64](ctx, c.app.Mediator(), services.GetUnreadNotificationCount{})
	switch {
	case err == nil:
		props.Unread, props.ShowUnread = unread, true
	case !errors.Is(err, mediator.ErrNoHandler):
		logger.WithError(err).Warn("failed to count unread notifications")
	}
	return props
}

func (c *DashboardController) Get(w http.ResponseWriter, r *http.Request) {
	v := components.NewView(c.app, r, intl.T(r.Context(), "Dashboard.Title"), c.load(r))
	c.pages.Render(w, r, "dashboard", v.WithFlash(useFlash(w, r)))
}

func (c *DashboardController) GetJSON(w http.ResponseWriter, r *http.Request) {
	if _, err := composables.UseUser(r.Context()); err != nil {
		respondError(w, r, middleware.ErrNotAuthenticated)
		return
	}
	respond(w, r, c.load(r), nil)
}
