package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/components"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/modules/core/presentation/controllers/dtos"
	"github.com/iota-uz/admin-portal/modules/core/presentation/templates"
	"github.com/iota-uz/admin-portal/modules/core/presentation/viewmodels"
	"github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/middleware"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

const maxPatchBytes = 16 << 10

type TenantPageProps struct {
	Tenant   *viewmodels.Tenant
	Features []string
}

type TenantController struct {
	app   application.Application
	authz *authz.Service
	pages *components.Renderer
}

func NewTenantController(app application.Application) application.Controller {
	return &TenantController{
		app:   app,
		authz: app.Service(authz.Service{}).(*authz.Service),
		pages: templates.Pages(),
	}
}

func (c *TenantController) Key() string {
	return "/tenant"
}

func (c *TenantController) Register(r *mux.Router) {
	read := middleware.RequireResource(c.authz, string(role.ResourceTenantRead))
	write := middleware.RequireResource(c.authz, string(role.ResourceTenantWrite))

	pages := r.PathPrefix("/tenant").Subrouter()
	pages.Use(middleware.RedirectNotAuthenticated())
	pages.Handle("", read(http.HandlerFunc(c.Get))).Methods(http.MethodGet)
	pages.Handle("", write(http.HandlerFunc(c.Post))).Methods(http.MethodPost)
	pages.Handle("/features", write(http.HandlerFunc(c.PostFeatures))).Methods(http.MethodPost)

	api := r.PathPrefix("/api/tenant").Subrouter()
	api.Use(middleware.RedirectNotAuthenticated())
	api.Handle("", read(http.HandlerFunc(c.APIGet))).Methods(http.MethodGet)
	api.Handle("", write(http.HandlerFunc(c.APIPatch))).Methods(http.MethodPatch)
	api.Handle("/features", write(http.HandlerFunc(c.APISetFeatures))).Methods(http.MethodPut)
}

func (c *TenantController) current(r *http.Request) (*viewmodels.Tenant, error) {
	t, err := mediator.Send[*tenant.Tenant](r.Context(), c.app.Mediator(), services.GetCurrentTenant{})
	if err != nil {
		return nil, err
	}
	return viewmodels.TenantToViewModel(t), nil
}

func (c *TenantController) render(w http.ResponseWriter, r *http.Request, vm *viewmodels.Tenant, flash string, fields map[string]string) {
	features := make([]string, 0, len(tenant.AllFeatures))
	for _, f := range tenant.AllFeatures {
		features = append(features, string(f))
	}
	props := &TenantPageProps{Tenant: vm, Features: features}
	v := components.NewView(c.app, r, intl.T(r.Context(), "Tenant.Title"), props)
	if flash == "" {
		flash = useFlash(w, r)
	}
	c.pages.Render(w, r, "tenant", v.WithFlash(flash).WithErrors(fields))
}

func (c *TenantController) Get(w http.ResponseWriter, r *http.Request) {
	vm, err := c.current(r)
	if err != nil {
		http.Error(w, errorMessage(r.Context(), err), serrors.CodeOf(err).HTTPStatus())
		return
	}
	c.render(w, r, vm, "", nil)
}

func (c *TenantController) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto, err := composables.UseForm(&dtos.TenantDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := mediator.Send[services.TenantChange](ctx, c.app.Mediator(), services.UpdateTenant{Name: dto.Name}); err != nil {
		vm, cerr := c.current(r)
		if cerr != nil {
			http.Error(w, errorMessage(ctx, cerr), http.StatusInternalServerError)
			return
		}
		vm.Name = dto.Name
		msg, fields := formState(ctx, err)
		c.render(w, r, vm, msg, fields)
		return
	}
	redirectWithFlash(w, r, "/tenant", intl.T(ctx, "Common.Saved"))
}

func (c *TenantController) PostFeatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto, err := composables.UseForm(&dtos.FeaturesDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := mediator.Send[services.TenantChange](ctx, c.app.Mediator(), dto.ToCommand()); err != nil {
		redirectWithFlash(w, r, "/tenant", errorMessage(ctx, err))
		return
	}
	redirectWithFlash(w, r, "/tenant", intl.T(ctx, "Common.Saved"))
}

func (c *TenantController) APIGet(w http.ResponseWriter, r *http.Request) {
	vm, err := c.current(r)
	respond(w, r, vm, err)
}

// APIPatch applies an RFC 7396 merge patch to the editable tenant fields.
func (c *TenantController) APIPatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vm, err := c.current(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	patch, err := io.ReadAll(io.LimitReader(r.Body, maxPatchBytes))
	if err != nil {
		respondError(w, r, serrors.FieldError("body", err.Error()))
		return
	}
	doc, err := json.Marshal(dtos.TenantDTO{Name: vm.Name})
	if err != nil {
		respondError(w, r, err)
		return
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		respondError(w, r, serrors.FieldError("body", "invalid merge patch: "+err.Error()))
		return
	}
	var next dtos.TenantDTO
	dec := json.NewDecoder(bytes.NewReader(merged))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		respondError(w, r, serrors.FieldError("body", err.Error()))
		return
	}
	if _, err := mediator.Send[services.TenantChange](ctx, c.app.Mediator(), services.UpdateTenant{Name: next.Name}); err != nil {
		respondError(w, r, err)
		return
	}
	vm, err = c.current(r)
	respond(w, r, vm, err)
}

func (c *TenantController) APISetFeatures(w http.ResponseWriter, r *http.Request) {
	var dto dtos.FeaturesDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := mediator.Send[services.TenantChange](r.Context(), c.app.Mediator(), dto.ToCommand()); err != nil {
		respondError(w, r, err)
		return
	}
	vm, err := c.current(r)
	respond(w, r, vm, err)
}
