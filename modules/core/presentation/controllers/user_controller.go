package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/components"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
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
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

const usersPerPage = 20

var userSearchFields = []string{"email", "firstName", "lastName"}

type UsersPageProps struct {
	Query string
	Rows  []odata.Row
	Pager *components.Pager
}

type UserFormProps struct {
	User      *viewmodels.User
	Roles     []*viewmodels.Role
	IsNew     bool
	Languages []string
	IsSelf    bool
}

type UsersController struct {
	app   application.Application
	authz *authz.Service
	pages *components.Renderer
}

func NewUsersController(app application.Application) application.Controller {
	return &UsersController{
		app:   app,
		authz: app.Service(authz.Service{}).(*authz.Service),
		pages: templates.Pages(),
	}
}

func (c *UsersController) Key() string {
	return "/users"
}

func (c *UsersController) Register(r *mux.Router) {
	read := middleware.RequireResource(c.authz, string(role.ResourceUsersRead))
	write := middleware.RequireResource(c.authz, string(role.ResourceUsersWrite))

	pages := r.PathPrefix("/users").Subrouter()
	pages.Use(middleware.RedirectNotAuthenticated())
	pages.Handle("", read(http.HandlerFunc(c.List))).Methods(http.MethodGet)
	pages.Handle("/new", write(http.HandlerFunc(c.GetNew))).Methods(http.MethodGet)
	pages.Handle("", write(http.HandlerFunc(c.Create))).Methods(http.MethodPost)
	pages.Handle("/{id:[0-9a-fA-F-]{36}}", read(http.HandlerFunc(c.GetEdit))).Methods(http.MethodGet)
	pages.Handle("/{id:[0-9a-fA-F-]{36}}", write(http.HandlerFunc(c.Update))).Methods(http.MethodPost)
	pages.Handle("/{id:[0-9a-fA-F-]{36}}/active", write(http.HandlerFunc(c.PostActive))).Methods(http.MethodPost)
	pages.Handle("/{id:[0-9a-fA-F-]{36}}/unlock", write(http.HandlerFunc(c.PostUnlock))).Methods(http.MethodPost)
	pages.Handle("/{id:[0-9a-fA-F-]{36}}/delete", write(http.HandlerFunc(c.PostDelete))).Methods(http.MethodPost)

	api := r.PathPrefix("/api/users").Subrouter()
	api.Use(middleware.RedirectNotAuthenticated())
	api.Handle("", read(http.HandlerFunc(c.APIList))).Methods(http.MethodGet)
	api.Handle("", write(http.HandlerFunc(c.APICreate))).Methods(http.MethodPost)
	api.Handle("/{id}", read(http.HandlerFunc(c.APIGet))).Methods(http.MethodGet)
	api.Handle("/{id}", write(http.HandlerFunc(c.APIUpdate))).Methods(http.MethodPut)
	api.Handle("/{id}", write(http.HandlerFunc(c.APIDelete))).Methods(http.MethodDelete)
	api.Handle("/{id}/roles", write(http.HandlerFunc(c.APISetRoles))).Methods(http.MethodPut)
	api.Handle("/{id}/active", write(http.HandlerFunc(c.APISetActive))).Methods(http.MethodPut)
	api.Handle("/{id}/unlock", write(http.HandlerFunc(c.APIUnlock))).Methods(http.MethodPost)
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, serrors.FieldError("id", "must be a UUID")
	}
	return id, nil
}

func (c *UsersController) send(r *http.Request, req any) error {
	_, err := mediator.Send[services.UserChange](r.Context(), c.app.Mediator(), req)
	return err
}

func (c *UsersController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	set, _ := c.app.OData().Get("users")
	values := r.URL.Query()
	pager := components.NewPager(values, usersPerPage)
	opts := &odata.Options{
		Filter: odata.SearchFilter(values.Get("q"), userSearchFields...),
		Top:    pager.PerPage,
		Skip:   pager.Offset(),
		Count:  true,
	}
	props := &UsersPageProps{Query: values.Get("q"), Pager: pager}
	v := components.NewView(c.app, r, intl.T(ctx, "Users.Title"), props)
	res, err := odata.Run(ctx, set, opts)
	if err != nil {
		v.Flash = errorMessage(ctx, err)
	} else {
		props.Rows = res.Rows
		pager.SetTotal(*res.Count)
	}
	if v.Flash == "" {
		v.Flash = useFlash(w, r)
	}
	c.pages.Render(w, r, "users", v)
}

func (c *UsersController) formProps(r *http.Request, u *viewmodels.User, isNew bool) (*UserFormProps, error) {
	roles, err := mediator.Send[[]role.Role](r.Context(), c.app.Mediator(), services.ListRoles{})
	if err != nil {
		return nil, err
	}
	props := &UserFormProps{
		User:      u,
		Roles:     viewmodels.RolesToViewModels(roles),
		IsNew:     isNew,
		Languages: []string{string(user.UILanguageEN), string(user.UILanguageRU), string(user.UILanguageUZ)},
	}
	if current, err := composables.UseUser(r.Context()); err == nil && u != nil {
		props.IsSelf = current.ID() == u.ID
	}
	return props, nil
}

func (c *UsersController) renderForm(w http.ResponseWriter, r *http.Request, props *UserFormProps, flash string, fields map[string]string) {
	title := "Users.Edit"
	if props.IsNew {
		title = "Users.New"
	}
	v := components.NewView(c.app, r, intl.T(r.Context(), title), props)
	if flash == "" {
		flash = useFlash(w, r)
	}
	c.pages.Render(w, r, "user_form", v.WithFlash(flash).WithErrors(fields))
}

func (c *UsersController) GetNew(w http.ResponseWriter, r *http.Request) {
	props, err := c.formProps(r, &viewmodels.User{UILanguage: string(user.UILanguageEN), IsActive: true}, true)
	if err != nil {
		http.Error(w, errorMessage(r.Context(), err), http.StatusInternalServerError)
		return
	}
	c.renderForm(w, r, props, "", nil)
}

func (c *UsersController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto, err := composables.UseForm(&dtos.UserDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	change, err := mediator.Send[services.UserChange](ctx, c.app.Mediator(), dto.ToCreateCommand())
	if err != nil {
		props, perr := c.formProps(r, &viewmodels.User{
			Email:      dto.Email,
			FirstName:  dto.FirstName,
			LastName:   dto.LastName,
			UILanguage: dto.UILanguage,
			RoleIDs:    dto.RoleIDs,
		}, true)
		if perr != nil {
			http.Error(w, errorMessage(ctx, perr), http.StatusInternalServerError)
			return
		}
		msg, fields := formState(ctx, err)
		c.renderForm(w, r, props, msg, fields)
		return
	}
	redirectWithFlash(w, r, "/users/"+change.ID, intl.T(ctx, "Users.Created"))
}

func (c *UsersController) load(r *http.Request) (*viewmodels.User, error) {
	id, err := parseID(r)
	if err != nil {
		return nil, err
	}
	u, err := mediator.Send[user.User](r.Context(), c.app.Mediator(), services.GetUser{ID: id})
	if err != nil {
		return nil, err
	}
	return viewmodels.UserToViewModel(u, time.Now()), nil
}

func (c *UsersController) GetEdit(w http.ResponseWriter, r *http.Request) {
	u, err := c.load(r)
	if err != nil {
		redirectWithFlash(w, r, "/users", errorMessage(r.Context(), err))
		return
	}
	props, err := c.formProps(r, u, false)
	if err != nil {
		http.Error(w, errorMessage(r.Context(), err), http.StatusInternalServerError)
		return
	}
	c.renderForm(w, r, props, "", nil)
}

// Update saves the profile fields and the role assignment of a user.
func (c *UsersController) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := c.load(r)
	if err != nil {
		redirectWithFlash(w, r, "/users", errorMessage(ctx, err))
		return
	}
	dto, err := composables.UseForm(&dtos.UserDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = c.send(r, dto.ToUpdateCommand(u.ID))
	if err == nil {
		err = c.send(r, services.SetUserRoles{UserID: u.ID, RoleIDs: dto.RoleIDs})
	}
	if err != nil {
		u.Email, u.FirstName, u.LastName, u.RoleIDs = dto.Email, dto.FirstName, dto.LastName, dto.RoleIDs
		props, perr := c.formProps(r, u, false)
		if perr != nil {
			http.Error(w, errorMessage(ctx, perr), http.StatusInternalServerError)
			return
		}
		msg, fields := formState(ctx, err)
		c.renderForm(w, r, props, msg, fields)
		return
	}
	redirectWithFlash(w, r, "/users/"+u.ID.String(), intl.T(ctx, "Common.Saved"))
}

// action runs a one-button command and returns to target with a flash message.
func (c *UsersController) action(w http.ResponseWriter, r *http.Request, target func(uuid.UUID) string, build func(uuid.UUID) any) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		redirectWithFlash(w, r, "/users", errorMessage(ctx, err))
		return
	}
	if err := c.send(r, build(id)); err != nil {
		redirectWithFlash(w, r, "/users/"+id.String(), errorMessage(ctx, err))
		return
	}
	redirectWithFlash(w, r, target(id), intl.T(ctx, "Common.Saved"))
}

func userPage(id uuid.UUID) string {
	return "/users/" + id.String()
}

func (c *UsersController) PostActive(w http.ResponseWriter, r *http.Request) {
	active := r.FormValue("Active") == "true"
	c.action(w, r, userPage, func(id uuid.UUID) any {
		return services.SetUserActive{UserID: id, Active: active}
	})
}

func (c *UsersController) PostUnlock(w http.ResponseWriter, r *http.Request) {
	c.action(w, r, userPage, func(id uuid.UUID) any {
		return services.UnlockUser{UserID: id}
	})
}

func (c *UsersController) PostDelete(w http.ResponseWriter, r *http.Request) {
	c.action(w, r, func(uuid.UUID) string { return "/users" }, func(id uuid.UUID) any {
		return services.DeleteUser{UserID: id}
	})
}

func (c *UsersController) APIList(w http.ResponseWriter, r *http.Request) {
	set, _ := c.app.OData().Get("users")
	values := r.URL.Query()
	pager := components.NewPager(values, usersPerPage)
	opts := &odata.Options{
		Filter: odata.SearchFilter(values.Get("q"), userSearchFields...),
		Top:    pager.PerPage,
		Skip:   pager.Offset(),
		Count:  true,
	}
	res, err := odata.Run(r.Context(), set, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, odata.NewListing(res), nil)
}

func (c *UsersController) APIGet(w http.ResponseWriter, r *http.Request) {
	u, err := c.load(r)
	respond(w, r, u, err)
}

func (c *UsersController) APICreate(w http.ResponseWriter, r *http.Request) {
	var dto dtos.UserDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		respondError(w, r, err)
		return
	}
	change, err := mediator.Send[services.UserChange](r.Context(), c.app.Mediator(), dto.ToCreateCommand())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondCreated(w, r, map[string]string{"id": change.ID}, nil)
}

func (c *UsersController) APIUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var dto dtos.UserDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		respondError(w, r, err)
		return
	}
	if err := c.send(r, dto.ToUpdateCommand(id)); err != nil {
		respondError(w, r, err)
		return
	}
	u, err := c.load(r)
	respond(w, r, u, err)
}

func (c *UsersController) APIDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err == nil {
		err = c.send(r, services.DeleteUser{UserID: id})
	}
	respond(w, r, nil, err)
}

func (c *UsersController) APISetRoles(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var dto dtos.UserRolesDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		respondError(w, r, err)
		return
	}
	if err := c.send(r, services.SetUserRoles{UserID: id, RoleIDs: dto.RoleIDs}); err != nil {
		respondError(w, r, err)
		return
	}
	u, err := c.load(r)
	respond(w, r, u, err)
}

func (c *UsersController) APISetActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var dto dtos.UserActiveDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		respondError(w, r, err)
		return
	}
	if err := c.send(r, services.SetUserActive{UserID: id, Active: dto.Active}); err != nil {
		respondError(w, r, err)
		return
	}
	u, err := c.load(r)
	respond(w, r, u, err)
}

func (c *UsersController) APIUnlock(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err == nil {
		err = c.send(r, services.UnlockUser{UserID: id})
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	u, err := c.load(r)
	respond(w, r, u, err)
}
