package controllers

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/components"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/modules/core/presentation/controllers/dtos"
	"github.com/iota-uz/admin-portal/modules/core/presentation/templates"
	"github.com/iota-uz/admin-portal/modules/core/presentation/viewmodels"
	"github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/middleware"
)

type AccountPageProps struct {
	User           *viewmodels.User
	Languages      []string
	DevicesEnabled bool
	Setup          *services.AuthenticatorAppSetup
}

// QRCode marks the generated data URI as safe for an img src.
func (p *AccountPageProps) QRCode() template.URL {
	if p.Setup == nil {
		return ""
	}
	return template.URL(p.Setup.QRCode) //nolint:gosec // produced server side as a base64 png
}

type AccountController struct {
	app   application.Application
	pages *components.Renderer
}

func NewAccountController(app application.Application) application.Controller {
	return &AccountController{app: app, pages: templates.Pages()}
}

func (c *AccountController) Key() string {
	return "/account"
}

func (c *AccountController) Register(r *mux.Router) {
	pages := r.PathPrefix("/account").Subrouter()
	pages.Use(middleware.RedirectNotAuthenticated())
	pages.HandleFunc("", c.Get).Methods(http.MethodGet)
	pages.HandleFunc("/profile", c.PostProfile).Methods(http.MethodPost)
	pages.HandleFunc("/password", c.PostPassword).Methods(http.MethodPost)
	pages.HandleFunc("/authenticator", c.GetAuthenticator).Methods(http.MethodGet)
	pages.HandleFunc("/authenticator", c.PostAuthenticator).Methods(http.MethodPost)
	pages.HandleFunc("/authenticator/remove", c.PostRemoveAuthenticator).Methods(http.MethodPost)
	pages.HandleFunc("/devices/{id}/rename", c.PostRenameDevice).Methods(http.MethodPost)
	pages.HandleFunc("/devices/{id}/delete", c.PostRemoveDevice).Methods(http.MethodPost)

	api := r.PathPrefix("/api/account").Subrouter()
	api.Use(middleware.RedirectNotAuthenticated())
	api.HandleFunc("", c.APIGet).Methods(http.MethodGet)
	api.HandleFunc("/authenticator", c.APIBeginAuthenticator).Methods(http.MethodPost)
	api.HandleFunc("/authenticator/confirm", c.APIConfirmAuthenticator).Methods(http.MethodPost)
	api.HandleFunc("/authenticator", c.APIRemoveAuthenticator).Methods(http.MethodDelete)
	api.HandleFunc("/devices/options", c.APIDeviceOptions).Methods(http.MethodPost)
	api.HandleFunc("/devices", c.APIFinishDevice).Methods(http.MethodPost)
	api.HandleFunc("/devices/{id}", c.APIRenameDevice).Methods(http.MethodPatch)
	api.HandleFunc("/devices/{id}", c.APIRemoveDevice).Methods(http.MethodDelete)
}

func (c *AccountController) me(r *http.Request) (*viewmodels.User, error) {
	current, err := composables.UseUser(r.Context())
	if err != nil {
		return nil, middleware.ErrNotAuthenticated
	}
	u, err := mediator.Send[user.User](r.Context(), c.app.Mediator(), services.GetUser{ID: current.ID()})
	if err != nil {
		return nil, err
	}
	return viewmodels.UserToViewModel(u, time.Now()), nil
}

func (c *AccountController) render(w http.ResponseWriter, r *http.Request, page string, setup *services.AuthenticatorAppSetup, flash string, fields map[string]string) {
	ctx := r.Context()
	vm, err := c.me(r)
	if err != nil {
		http.Error(w, errorMessage(ctx, err), http.StatusInternalServerError)
		return
	}
	props := &AccountPageProps{
		User:      vm,
		Languages: []string{string(user.UILanguageEN), string(user.UILanguageRU), string(user.UILanguageUZ)},
		Setup:     setup,
	}
	if t, err := composables.UseTenant(ctx); err == nil {
		props.DevicesEnabled = t.HasFeature(tenant.FeatureMfaDevices) || vm.Type == string(user.TypeSuperadmin)
	}
	v := components.NewView(c.app, r, intl.T(ctx, "Account.Title"), props)
	if flash == "" {
		flash = useFlash(w, r)
	}
	c.pages.Render(w, r, page, v.WithFlash(flash).WithErrors(fields))
}

func (c *AccountController) Get(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, "account", nil, "", nil)
}

func (c *AccountController) PostProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto, err := composables.UseForm(&dtos.ProfileDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd := services.UpdateProfile{FirstName: dto.FirstName, LastName: dto.LastName, UILanguage: dto.UILanguage}
	if _, err := mediator.Send[services.UserChange](ctx, c.app.Mediator(), cmd); err != nil {
		msg, fields := formState(ctx, err)
		c.render(w, r, "account", nil, msg, fields)
		return
	}
	redirectWithFlash(w, r, "/account", intl.T(ctx, "Common.Saved"))
}

func (c *AccountController) PostPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto, err := composables.UseForm(&dtos.PasswordDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := mediator.Send[services.UserChange](ctx, c.app.Mediator(), dto.ToCommand()); err != nil {
		msg, fields := formState(ctx, err)
		c.render(w, r, "account", nil, msg, fields)
		return
	}
	redirectWithFlash(w, r, "/account", intl.T(ctx, "Account.PasswordChanged"))
}

// GetAuthenticator starts enrolment and shows the QR code to scan.
func (c *AccountController) GetAuthenticator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	setup, err := mediator.Send[services.AuthenticatorAppSetup](ctx, c.app.Mediator(), services.BeginAuthenticatorAppSetup{})
	if err != nil {
		redirectWithFlash(w, r, "/account", errorMessage(ctx, err))
		return
	}
	c.render(w, r, "account_authenticator", &setup, "", nil)
}

func (c *AccountController) PostAuthenticator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto, err := composables.UseForm(&dtos.CodeDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := mediator.Send[services.UserChange](ctx, c.app.Mediator(), services.ConfirmAuthenticatorApp{Code: dto.Code}); err != nil {
		redirectWithFlash(w, r, "/account", errorMessage(ctx, err))
		return
	}
	redirectWithFlash(w, r, "/account", intl.T(ctx, "Account.AuthenticatorEnabled"))
}

func (c *AccountController) PostRemoveAuthenticator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := mediator.Send[services.UserChange](ctx, c.app.Mediator(), services.RemoveAuthenticatorApp{}); err != nil {
		redirectWithFlash(w, r, "/account", errorMessage(ctx, err))
		return
	}
	redirectWithFlash(w, r, "/account", intl.T(ctx, "Account.AuthenticatorRemoved"))
}

func (c *AccountController) PostRenameDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err == nil {
		_, err = mediator.Send[services.UserChange](ctx, c.app.Mediator(), services.RenameDevice{ID: id, Name: r.FormValue("Name")})
	}
	if err != nil {
		redirectWithFlash(w, r, "/account", errorMessage(ctx, err))
		return
	}
	redirectWithFlash(w, r, "/account", intl.T(ctx, "Common.Saved"))
}

func (c *AccountController) PostRemoveDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err == nil {
		_, err = mediator.Send[services.UserChange](ctx, c.app.Mediator(), services.RemoveDevice{ID: id})
	}
	if err != nil {
		redirectWithFlash(w, r, "/account", errorMessage(ctx, err))
		return
	}
	redirectWithFlash(w, r, "/account", intl.T(ctx, "Account.DeviceRemoved"))
}

func (c *AccountController) APIGet(w http.ResponseWriter, r *http.Request) {
	vm, err := c.me(r)
	respond(w, r, vm, err)
}

func (c *AccountController) APIBeginAuthenticator(w http.ResponseWriter, r *http.Request) {
	setup, err := mediator.Send[services.AuthenticatorAppSetup](r.Context(), c.app.Mediator(), services.BeginAuthenticatorAppSetup{})
	respond(w, r, setup, err)
}

func (c *AccountController) APIConfirmAuthenticator(w http.ResponseWriter, r *http.Request) {
	var dto dtos.CodeJSONDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := mediator.Send[services.UserChange](r.Context(), c.app.Mediator(), services.ConfirmAuthenticatorApp{Code: dto.Code}); err != nil {
		respondError(w, r, err)
		return
	}
	vm, err := c.me(r)
	respond(w, r, vm, err)
}

func (c *AccountController) APIRemoveAuthenticator(w http.ResponseWriter, r *http.Request) {
	if _, err := mediator.Send[services.UserChange](r.Context(), c.app.Mediator(), services.RemoveAuthenticatorApp{}); err != nil {
		respondError(w, r, err)
		return
	}
	vm, err := c.me(r)
	respond(w, r, vm, err)
}

func (c *AccountController) APIDeviceOptions(w http.ResponseWriter, r *http.Request) {
	creation, err := mediator.Send[*protocol.CredentialCreation](r.Context(), c.app.Mediator(), services.BeginDeviceRegistration{})
	respond(w, r, creation, err)
}

type finishDeviceBody struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

func (c *AccountController) APIFinishDevice(w http.ResponseWriter, r *http.Request) {
	var body finishDeviceBody
	if err := httpapi.Decode(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	cmd := services.FinishDeviceRegistration{Name: body.Name, Response: body.Response}
	if _, err := mediator.Send[services.UserChange](r.Context(), c.app.Mediator(), cmd); err != nil {
		respondError(w, r, err)
		return
	}
	vm, err := c.me(r)
	respondCreated(w, r, vm, err)
}

func (c *AccountController) deviceCommand(w http.ResponseWriter, r *http.Request, build func(uuid.UUID) any) {
	id, err := parseID(r)
	if err == nil {
		_, err = mediator.Send[services.UserChange](r.Context(), c.app.Mediator(), build(id))
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	vm, err := c.me(r)
	respond(w, r, vm, err)
}

func (c *AccountController) APIRenameDevice(w http.ResponseWriter, r *http.Request) {
	var dto dtos.DeviceDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		respondError(w, r, err)
		return
	}
	c.deviceCommand(w, r, func(id uuid.UUID) any {
		return services.RenameDevice{ID: id, Name: dto.Name}
	})
}

func (c *AccountController) APIRemoveDevice(w http.ResponseWriter, r *http.Request) {
	c.deviceCommand(w, r, func(id uuid.UUID) any {
		return services.RemoveDevice{ID: id}
	})
}
