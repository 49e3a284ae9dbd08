package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/components"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	coreservices "github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/modules/superadmin/presentation/templates"
	"github.com/iota-uz/admin-portal/modules/superadmin/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/middleware"
	"github.com/iota-uz/admin-portal/pkg/odata"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

const tenantsPerPage = 25

var tenantSearchFields = []string{"name", "domain"}

type TenantsPageProps struct {
	Query string
	Rows  []odata.Row
	Pager *components.Pager
}

type ProvisionFormProps struct {
	Form      ProvisionDTO
	Features  []tenant.Feature
	Languages []string
}

type TenantFormProps struct {
	Tenant   *TenantView
	Features []tenant.Feature
}

type TenantsController struct {
	app      application.Application
	pages    *components.Renderer
	basePath string
}

func NewTenantsController(app application.Application) application.Controller {
	return &TenantsController{
		app:      app,
		pages:    templates.Pages(),
		basePath: "/superadmin/tenants",
	}
}

func (c *TenantsController) Key() string {
	return c.basePath
}

func (c *TenantsController) Register(r *mux.Router) {
	pages := r.PathPrefix(c.basePath).Subrouter()
	pages.Use(middleware.RedirectNotAuthenticated(), middleware.RequireSuperadmin())
	pages.HandleFunc("", c.List).Methods(http.MethodGet)
	pages.HandleFunc("/new", c.GetNew).Methods(http.MethodGet)
	pages.HandleFunc("", c.Create).Methods(http.MethodPost)
	pages.HandleFunc("/{id:[0-9a-fA-F-]{36}}", c.GetEdit).Methods(http.MethodGet)
	pages.HandleFunc("/{id:[0-9a-fA-F-]{36}}", c.Update).Methods(http.MethodPost)
	pages.HandleFunc("/{id:[0-9a-fA-F-]{36}}/features", c.PostFeatures).Methods(http.MethodPost)
	pages.HandleFunc("/{id:[0-9a-fA-F-]{36}}/activate", c.postActive(true)).Methods(http.MethodPost)
	pages.HandleFunc("/{id:[0-9a-fA-F-]{36}}/deactivate", c.postActive(false)).Methods(http.MethodPost)

	api := r.PathPrefix("/api/superadmin/tenants").Subrouter()
	api.Use(middleware.RedirectNotAuthenticated(), middleware.RequireSuperadmin())
	api.HandleFunc("", c.APIList).Methods(http.MethodGet)
	api.HandleFunc("", c.APICreate).Methods(http.MethodPost)
	api.HandleFunc("/{id}", c.APIGet).Methods(http.MethodGet)
	api.HandleFunc("/{id}", c.APIUpdate).Methods(http.MethodPatch)
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, serrors.FieldError("id", "must be a UUID")
	}
	return id, nil
}

func (c *TenantsController) send(r *http.Request, req any) (coreservices.TenantChange, error) {
	return mediator.Send[coreservices.TenantChange](r.Context(), c.app.Mediator(), req)
}

func (c *TenantsController) load(r *http.Request) (*tenant.Tenant, error) {
	id, err := parseID(r)
	if err != nil {
		return nil, err
	}
	return mediator.Send[*tenant.Tenant](r.Context(), c.app.Mediator(), services.GetTenant{ID: id})
}

func (c *TenantsController) query(r *http.Request) (*components.Pager, *odata.Result, error) {
	values := r.URL.Query()
	set, _ := c.app.OData().Get("tenants")
	pager := components.NewPager(values, tenantsPerPage)
	res, err := odata.Run(r.Context(), set, &odata.Options{
		Filter: odata.SearchFilter(values.Get("q"), tenantSearchFields...),
		Top:    pager.PerPage,
		Skip:   pager.Offset(),
		Count:  true,
	})
	if err != nil {
		return pager, nil, err
	}
	pager.SetTotal(*res.Count)
	return pager, res, nil
}

func (c *TenantsController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pager, res, err := c.query(r)
	props := &TenantsPageProps{Query: r.URL.Query().Get("q"), Pager: pager}
	v := components.NewView(c.app, r, intl.T(ctx, "Superadmin.Tenants.Title"), props)
	if err != nil {
		v.Flash = components.ErrorMessage(ctx, err)
	} else {
		props.Rows = res.Rows
		v.Flash = components.Flash(w, r)
	}
	c.pages.Render(w, r, "tenants", v)
}

func (c *TenantsController) renderNew(w http.ResponseWriter, r *http.Request, form ProvisionDTO, flash string, fields map[string]string) {
	props := &ProvisionFormProps{Form: form, Features: tenant.AllFeatures, Languages: c.app.GetSupportedLanguages()}
	v := components.NewView(c.app, r, intl.T(r.Context(), "Superadmin.Tenants.New"), props)
	c.pages.Render(w, r, "tenant_new", v.WithFlash(flash).WithErrors(fields))
}

func (c *TenantsController) GetNew(w http.ResponseWriter, r *http.Request) {
	c.renderNew(w, r, ProvisionDTO{Features: tenant.AllFeatures, AdminLanguage: "en"}, "", nil)
}

func (c *TenantsController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto, err := composables.UseForm(&ProvisionDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	change, err := c.send(r, dto.ToCommand())
	if err != nil {
		msg, fields := components.FormState(ctx, err)
		dto.AdminPassword = ""
		c.renderNew(w, r, *dto, msg, fields)
		return
	}
	components.RedirectWithFlash(w, r, c.basePath+"/"+change.ID, intl.T(ctx, "Superadmin.Tenants.Provisioned"))
}

func (c *TenantsController) renderEdit(w http.ResponseWriter, r *http.Request, view *TenantView, flash string, fields map[string]string) {
	props := &TenantFormProps{Tenant: view, Features: tenant.AllFeatures}
	v := components.NewView(c.app, r, view.Name, props)
	if flash == "" {
		flash = components.Flash(w, r)
	}
	c.pages.Render(w, r, "tenant_edit", v.WithFlash(flash).WithErrors(fields))
}

func (c *TenantsController) GetEdit(w http.ResponseWriter, r *http.Request) {
	t, err := c.load(r)
	if err != nil {
		components.RedirectWithFlash(w, r, c.basePath, components.ErrorMessage(r.Context(), err))
		return
	}
	c.renderEdit(w, r, tenantToView(t), "", nil)
}

func (c *TenantsController) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := c.load(r)
	if err != nil {
		components.RedirectWithFlash(w, r, c.basePath, components.ErrorMessage(ctx, err))
		return
	}
	dto, err := composables.UseForm(&TenantDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := c.send(r, services.UpdateTenant{ID: t.ID(), Name: dto.Name, Domain: dto.Domain}); err != nil {
		msg, fields := components.FormState(ctx, err)
		view := tenantToView(t)
		view.Name, view.Domain = dto.Name, dto.Domain
		c.renderEdit(w, r, view, msg, fields)
		return
	}
	components.RedirectWithFlash(w, r, c.basePath+"/"+t.ID().String(), intl.T(ctx, "Common.Saved"))
}

func (c *TenantsController) PostFeatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dto, err := composables.UseForm(&TenantDTO{}, r)
	if err == nil {
		_, err = c.send(r, services.SetTenantFeatures{ID: id, Features: dto.Features})
	}
	msg := intl.T(ctx, "Common.Saved")
	if err != nil {
		msg = components.ErrorMessage(ctx, err)
	}
	components.RedirectWithFlash(w, r, c.basePath+"/"+id.String(), msg)
}

func (c *TenantsController) postActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := parseID(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		msg := intl.T(ctx, "Common.Saved")
		if _, err := c.send(r, services.SetTenantActive{ID: id, Active: active}); err != nil {
			msg = components.ErrorMessage(ctx, err)
		}
		components.RedirectWithFlash(w, r, c.basePath+"/"+id.String(), msg)
	}
}

func (c *TenantsController) APIList(w http.ResponseWriter, r *http.Request) {
	_, res, err := c.query(r)
	if err != nil {
		httpapi.RespondError(w, r, err)
		return
	}
	httpapi.Respond(w, r, odata.NewListing(res), nil)
}

func (c *TenantsController) APIGet(w http.ResponseWriter, r *http.Request) {
	t, err := c.load(r)
	if err != nil {
		httpapi.RespondError(w, r, err)
		return
	}
	httpapi.Respond(w, r, t.Snapshot(), nil)
}

func (c *TenantsController) APICreate(w http.ResponseWriter, r *http.Request) {
	var dto ProvisionDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		httpapi.RespondError(w, r, err)
		return
	}
	change, err := c.send(r, dto.ToCommand())
	if err != nil {
		httpapi.RespondError(w, r, err)
		return
	}
	httpapi.RespondCreated(w, r, change.After, nil)
}

// APIUpdate applies the fields present in the body; each runs as its own
// command.
func (c *TenantsController) APIUpdate(w http.ResponseWriter, r *http.Request) {
	t, err := c.load(r)
	if err != nil {
		httpapi.RespondError(w, r, err)
		return
	}
	var dto TenantDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		httpapi.RespondError(w, r, err)
		return
	}
	change := coreservices.TenantChange{ID: t.ID().String(), After: t.Snapshot()}
	if dto.Name != "" || dto.Domain != "" {
		cmd := services.UpdateTenant{ID: t.ID(), Name: t.Name(), Domain: t.Domain()}
		if dto.Name != "" {
			cmd.Name = dto.Name
		}
		if dto.Domain != "" {
			cmd.Domain = dto.Domain
		}
		if change, err = c.send(r, cmd); err != nil {
			httpapi.RespondError(w, r, err)
			return
		}
	}
	if dto.Features != nil {
		if change, err = c.send(r, services.SetTenantFeatures{ID: t.ID(), Features: dto.Features}); err != nil {
			httpapi.RespondError(w, r, err)
			return
		}
	}
	if dto.IsActive != nil {
		if change, err = c.send(r, services.SetTenantActive{ID: t.ID(), Active: *dto.IsActive}); err != nil {
			httpapi.RespondError(w, r, err)
			return
		}
	}
	httpapi.Respond(w, r, change.After, nil)
}
