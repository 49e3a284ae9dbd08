package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/components"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
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
	"github.com/iota-uz/admin-portal/pkg/odata"
)

type RolesPageProps struct {
	Rows []odata.Row
}

type RoleFormProps struct {
	Role      *viewmodels.Role
	Resources []string
	IsNew     bool
}

type RolesController struct {
	app   application.Application
	authz *authz.Service
	pages *components.Renderer
}

func NewRolesController(app application.Application) application.Controller {
	return &RolesController{
		app:   app,
		authz: app.Service(authz.Service{}).(*authz.Service),
		pages: templates.Pages(),
	}
}

func (c *RolesController) Key() string {
	return "/roles"
}

func (c *RolesController) Register(r *mux.Router) {
	read := middleware.RequireResource(c.authz, string(role.ResourceRolesRead))
	write := middleware.RequireResource(c.authz, string(role.ResourceRolesWrite))

	pages := r.PathPrefix("/roles").Subrouter()
	pages.Use(middleware.RedirectNotAuthenticated())
	pages.Handle("", read(http.HandlerFunc(c.List))).Methods(http.MethodGet)
	pages.Handle("/new", write(http.HandlerFunc(c.GetNew))).Methods(http.MethodGet)
	pages.Handle("", write(http.HandlerFunc(c.Create))).Methods(http.MethodPost)
	pages.Handle("/{id:[0-9a-fA-F-]{36}}", read(http.HandlerFunc(c.GetEdit))).Methods(http.MethodGet)
	pages.Handle("/{id:[0-9a-fA-F-]{36}}", write(http.HandlerFunc(c.Update))).Methods(http.MethodPost)
	pages.Handle("/{id:[0-9a-fA-F-]{36}}/delete", write(http.HandlerFunc(c.PostDelete))).Methods(http.MethodPost)

	api := r.PathPrefix("/api/roles").Subrouter()
	api.Use(middleware.RedirectNotAuthenticated())
	api.Handle("", read(http.HandlerFunc(c.APIList))).Methods(http.MethodGet)
	api.Handle("", write(http.HandlerFunc(c.APICreate))).Methods(http.MethodPost)
	api.Handle("/{id}", read(http.HandlerFunc(c.APIGet))).Methods(http.MethodGet)
	api.Handle("/{id}", write(http.HandlerFunc(c.APIUpdate))).Methods(http.MethodPut)
	api.Handle("/{id}", write(http.HandlerFunc(c.APIDelete))).Methods(http.MethodDelete)
	api.Handle("/{id}/resources", write(http.HandlerFunc(c.APISetResources))).Methods(http.MethodPut)
}

func (c *RolesController) send(r *http.Request, req any) (services.RoleChange, error) {
	return mediator.Send[services.RoleChange](r.Context(), c.app.Mediator(), req)
}

func (c *RolesController) load(r *http.Request) (*viewmodels.Role, error) {
	id, err := parseID(r)
	if err != nil {
		return nil, err
	}
	found, err := mediator.Send[role.Role](r.Context(), c.app.Mediator(), services.GetRole{ID: id})
	if err != nil {
		return nil, err
	}
	return viewmodels.RoleToViewModel(found), nil
}

func (c *RolesController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	set, _ := c.app.OData().Get("roles")
	props := &RolesPageProps{}
	v := components.NewView(c.app, r, intl.T(ctx, "Roles.Title"), props)
	res, err := odata.Run(ctx, set, &odata.Options{Top: 500})
	if err != nil {
		v.Flash = errorMessage(ctx, err)
	} else {
		props.Rows = res.Rows
	}
	if v.Flash == "" {
		v.Flash = useFlash(w, r)
	}
	c.pages.Render(w, r, "roles", v)
}

func (c *RolesController) renderForm(w http.ResponseWriter, r *http.Request, props *RoleFormProps, flash string, fields map[string]string) {
	props.Resources = role.ResourceStrings(role.AllResources)
	title := "Roles.Edit"
	if props.IsNew {
		title = "Roles.New"
	}
	v := components.NewView(c.app, r, intl.T(r.Context(), title), props)
	if flash == "" {
		flash = useFlash(w, r)
	}
	c.pages.Render(w, r, "role_form", v.WithFlash(flash).WithErrors(fields))
}

func (c *RolesController) GetNew(w http.ResponseWriter, r *http.Request) {
	c.renderForm(w, r, &RoleFormProps{Role: &viewmodels.Role{}, IsNew: true}, "", nil)
}

func (c *RolesController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto, err := composables.UseForm(&dtos.RoleDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	change, err := c.send(r, dto.ToCreateCommand())
	if err != nil {
		msg, fields := formState(ctx, err)
		vm := &viewmodels.Role{Name: dto.Name, Description: dto.Description, Resources: dto.Resources}
		c.renderForm(w, r, &RoleFormProps{Role: vm, IsNew: true}, msg, fields)
		return
	}
	redirectWithFlash(w, r, "/roles/"+change.ID, intl.T(ctx, "Roles.Created"))
}

func (c *RolesController) GetEdit(w http.ResponseWriter, r *http.Request) {
	vm, err := c.load(r)
	if err != nil {
		redirectWithFlash(w, r, "/roles", errorMessage(r.Context(), err))
		return
	}
	c.renderForm(w, r, &RoleFormProps{Role: vm}, "", nil)
}

func (c *RolesController) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vm, err := c.load(r)
	if err != nil {
		redirectWithFlash(w, r, "/roles", errorMessage(ctx, err))
		return
	}
	dto, err := composables.UseForm(&dtos.RoleDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, err = c.send(r, dto.ToUpdateCommand(vm.ID))
	if err == nil {
		_, err = c.send(r, dto.ToResourcesCommand(vm.ID))
	}
	if err != nil {
		msg, fields := formState(ctx, err)
		vm.Name, vm.Description, vm.Resources = dto.Name, dto.Description, dto.Resources
		c.renderForm(w, r, &RoleFormProps{Role: vm}, msg, fields)
		return
	}
	redirectWithFlash(w, r, "/roles/"+vm.ID.String(), intl.T(ctx, "Common.Saved"))
}

func (c *RolesController) PostDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err == nil {
		_, err = c.send(r, services.DeleteRole{RoleID: id})
	}
	if err != nil {
		redirectWithFlash(w, r, "/roles/"+mux.Vars(r)["id"], errorMessage(ctx, err))
		return
	}
	redirectWithFlash(w, r, "/roles", intl.T(ctx, "Roles.Deleted"))
}

func (c *RolesController) APIList(w http.ResponseWriter, r *http.Request) {
	roles, err := mediator.Send[[]role.Role](r.Context(), c.app.Mediator(), services.ListRoles{})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, viewmodels.RolesToViewModels(roles), nil)
}

func (c *RolesController) APIGet(w http.ResponseWriter, r *http.Request) {
	vm, err := c.load(r)
	respond(w, r, vm, err)
}

func (c *RolesController) APICreate(w http.ResponseWriter, r *http.Request) {
	var dto dtos.RoleDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		respondError(w, r, err)
		return
	}
	change, err := c.send(r, dto.ToCreateCommand())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondCreated(w, r, map[string]string{"id": change.ID}, nil)
}

func (c *RolesController) APIUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var dto dtos.RoleDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := c.send(r, dto.ToUpdateCommand(id)); err != nil {
		respondError(w, r, err)
		return
	}
	vm, err := c.load(r)
	respond(w, r, vm, err)
}

func (c *RolesController) APISetResources(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var dto dtos.RoleDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := c.send(r, dto.ToResourcesCommand(id)); err != nil {
		respondError(w, r, err)
		return
	}
	vm, err := c.load(r)
	respond(w, r, vm, err)
}

func (c *RolesController) APIDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err == nil {
		_, err = c.send(r, services.DeleteRole{RoleID: id})
	}
	respond(w, r, nil, err)
}
