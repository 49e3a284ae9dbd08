package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/components"
	coreservices "github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/modules/superadmin/domain/aggregates/alert"
	"github.com/iota-uz/admin-portal/modules/superadmin/presentation/templates"
	"github.com/iota-uz/admin-portal/modules/superadmin/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/middleware"
	"github.com/iota-uz/admin-portal/pkg/odata"
)

type AlertsPageProps struct {
	Rows []odata.Row
}

type AlertFormProps struct {
	ID         uuid.UUID
	Form       AlertDTO
	Severities []alert.Severity
	IsNew      bool
}

type AlertsController struct {
	app      application.Application
	pages    *components.Renderer
	basePath string
}

func NewAlertsController(app application.Application) application.Controller {
	return &AlertsController{
		app:      app,
		pages:    templates.Pages(),
		basePath: "/superadmin/alerts",
	}
}

func (c *AlertsController) Key() string {
	return c.basePath
}

func (c *AlertsController) Register(r *mux.Router) {
	pages := r.PathPrefix(c.basePath).Subrouter()
	pages.Use(middleware.RedirectNotAuthenticated(), middleware.RequireSuperadmin())
	pages.HandleFunc("", c.List).Methods(http.MethodGet)
	pages.HandleFunc("/new", c.GetNew).Methods(http.MethodGet)
	pages.HandleFunc("", c.Create).Methods(http.MethodPost)
	pages.HandleFunc("/{id:[0-9a-fA-F-]{36}}", c.GetEdit).Methods(http.MethodGet)
	pages.HandleFunc("/{id:[0-9a-fA-F-]{36}}", c.Update).Methods(http.MethodPost)
	pages.HandleFunc("/{id:[0-9a-fA-F-]{36}}/delete", c.PostDelete).Methods(http.MethodPost)

	admin := r.PathPrefix("/api/superadmin/alerts").Subrouter()
	admin.Use(middleware.RedirectNotAuthenticated(), middleware.RequireSuperadmin())
	admin.HandleFunc("", c.APICreate).Methods(http.MethodPost)
	admin.HandleFunc("/{id}", c.APIUpdate).Methods(http.MethodPut)
	admin.HandleFunc("/{id}", c.APIDelete).Methods(http.MethodDelete)

	active := r.PathPrefix("/api/alerts").Subrouter()
	active.Use(middleware.RedirectNotAuthenticated())
	active.HandleFunc("/active", c.APIActive).Methods(http.MethodGet)
}

func (c *AlertsController) send(r *http.Request, req any) (services.AlertChange, error) {
	return mediator.Send[services.AlertChange](r.Context(), c.app.Mediator(), req)
}

func (c *AlertsController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	set, _ := c.app.OData().Get("alerts")
	props := &AlertsPageProps{}
	v := components.NewView(c.app, r, intl.T(ctx, "Superadmin.Alerts.Title"), props)
	res, err := odata.Run(ctx, set, &odata.Options{Top: 500})
	if err != nil {
		v.Flash = components.ErrorMessage(ctx, err)
	} else {
		props.Rows = res.Rows
		v.Flash = components.Flash(w, r)
	}
	c.pages.Render(w, r, "alerts", v)
}

func (c *AlertsController) renderForm(w http.ResponseWriter, r *http.Request, props *AlertFormProps, flash string, fields map[string]string) {
	props.Severities = alert.AllSeverities
	title := "Superadmin.Alerts.Edit"
	if props.IsNew {
		title = "Superadmin.Alerts.New"
	}
	v := components.NewView(c.app, r, intl.T(r.Context(), title), props)
	if flash == "" {
		flash = components.Flash(w, r)
	}
	c.pages.Render(w, r, "alert_form", v.WithFlash(flash).WithErrors(fields))
}

func (c *AlertsController) GetNew(w http.ResponseWriter, r *http.Request) {
	c.renderForm(w, r, &AlertFormProps{Form: AlertDTO{Severity: string(alert.SeverityInfo)}, IsNew: true}, "", nil)
}

func (c *AlertsController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto, err := composables.UseForm(&AlertDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := c.send(r, dto.ToCreateCommand()); err != nil {
		msg, fields := components.FormState(ctx, err)
		c.renderForm(w, r, &AlertFormProps{Form: *dto, IsNew: true}, msg, fields)
		return
	}
	components.RedirectWithFlash(w, r, c.basePath, intl.T(ctx, "Superadmin.Alerts.Created"))
}

func (c *AlertsController) GetEdit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	var a *alert.SystemAlert
	if err == nil {
		a, err = mediator.Send[*alert.SystemAlert](r.Context(), c.app.Mediator(), services.GetSystemAlert{ID: id})
	}
	if err != nil {
		components.RedirectWithFlash(w, r, c.basePath, components.ErrorMessage(r.Context(), err))
		return
	}
	c.renderForm(w, r, &AlertFormProps{ID: a.ID(), Form: alertToDTO(a)}, "", nil)
}

func (c *AlertsController) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dto, err := composables.UseForm(&AlertDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := c.send(r, dto.ToUpdateCommand(id)); err != nil {
		msg, fields := components.FormState(ctx, err)
		c.renderForm(w, r, &AlertFormProps{ID: id, Form: *dto}, msg, fields)
		return
	}
	components.RedirectWithFlash(w, r, c.basePath, intl.T(ctx, "Common.Saved"))
}

func (c *AlertsController) PostDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err == nil {
		_, err = c.send(r, services.DeleteSystemAlert{ID: id})
	}
	msg := intl.T(ctx, "Superadmin.Alerts.Deleted")
	if err != nil {
		msg = components.ErrorMessage(ctx, err)
	}
	components.RedirectWithFlash(w, r, c.basePath, msg)
}

func (c *AlertsController) APIActive(w http.ResponseWriter, r *http.Request) {
	alerts, err := mediator.Send[[]coreservices.ActiveAlert](r.Context(), c.app.Mediator(), coreservices.GetActiveAlerts{})
	httpapi.Respond(w, r, alerts, err)
}

func (c *AlertsController) APICreate(w http.ResponseWriter, r *http.Request) {
	var dto AlertDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		httpapi.RespondError(w, r, err)
		return
	}
	change, err := c.send(r, dto.ToCreateCommand())
	if err != nil {
		httpapi.RespondError(w, r, err)
		return
	}
	httpapi.RespondCreated(w, r, change.After, nil)
}

func (c *AlertsController) APIUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpapi.RespondError(w, r, err)
		return
	}
	var dto AlertDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		httpapi.RespondError(w, r, err)
		return
	}
	change, err := c.send(r, dto.ToUpdateCommand(id))
	httpapi.Respond(w, r, change.After, err)
}

func (c *AlertsController) APIDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err == nil {
		_, err = c.send(r, services.DeleteSystemAlert{ID: id})
	}
	httpapi.Respond(w, r, nil, err)
}
