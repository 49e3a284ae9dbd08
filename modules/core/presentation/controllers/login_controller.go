package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/components"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/modules/core/presentation/controllers/dtos"
	"github.com/iota-uz/admin-portal/modules/core/presentation/templates"
	"github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/configuration"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

// Authenticator is the sign-in surface the login pages drive.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (string, services.PartialSignIn, error)
	Partial(ctx context.Context, token string) (services.PartialSignIn, error)
	SwitchToEmail(ctx context.Context, token string) (string, services.PartialSignIn, error)
	ResendEmailCode(ctx context.Context, token string) (services.PartialSignIn, error)
	VerifyEmailCode(ctx context.Context, token, code string) (*session.Session, error)
	VerifyAppCode(ctx context.Context, token, code string) (*session.Session, error)
	BeginDeviceAssertion(ctx context.Context, token string) (*protocol.CredentialAssertion, error)
	VerifyDeviceAssertion(ctx context.Context, token string, response []byte) (*session.Session, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

type LoginControllerOptions struct {
	Auth   configuration.AuthOptions
	Secure bool
	// RateLimit guards every state-changing sign-in endpoint.
	RateLimit mux.MiddlewareFunc
	// Authenticator defaults to the registered AuthService.
	Authenticator Authenticator
}

type LoginProps struct {
	Email  string
	Next   string
	Stage  string
	Switch bool
}

func NewLoginController(app application.Application, opts LoginControllerOptions) application.Controller {
	auth := opts.Authenticator
	if auth == nil {
		auth = app.Service(services.AuthService{}).(*services.AuthService)
	}
	return &LoginController{
		app:         app,
		opts:        opts,
		authService: auth,
		pages:       templates.Pages(),
	}
}

type LoginController struct {
	app         application.Application
	opts        LoginControllerOptions
	authService Authenticator
	pages       *components.Renderer
}

func (c *LoginController) Key() string {
	return "/login"
}

func (c *LoginController) Register(r *mux.Router) {
	getRouter := r.PathPrefix("/").Subrouter()
	getRouter.HandleFunc("/login", c.Get).Methods(http.MethodGet)
	getRouter.HandleFunc("/login/mfa/{stage:app|email|device}", c.GetChallenge).Methods(http.MethodGet)
	getRouter.HandleFunc("/forgot-password", c.GetForgotPassword).Methods(http.MethodGet)
	getRouter.HandleFunc("/reset-password", c.GetResetPassword).Methods(http.MethodGet)
	getRouter.HandleFunc("/logout", c.Logout).Methods(http.MethodGet, http.MethodPost)

	setRouter := r.PathPrefix("/").Subrouter()
	if c.opts.RateLimit != nil {
		setRouter.Use(c.opts.RateLimit)
	}
	setRouter.HandleFunc("/login", c.Post).Methods(http.MethodPost)
	setRouter.HandleFunc("/login/mfa/app", c.PostAppCode).Methods(http.MethodPost)
	setRouter.HandleFunc("/login/mfa/email", c.PostEmailCode).Methods(http.MethodPost)
	setRouter.HandleFunc("/login/mfa/email/send", c.SwitchToEmail).Methods(http.MethodPost)
	setRouter.HandleFunc("/login/mfa/email/resend", c.ResendEmailCode).Methods(http.MethodPost)
	setRouter.HandleFunc("/login/mfa/device/options", c.DeviceOptions).Methods(http.MethodPost)
	setRouter.HandleFunc("/login/mfa/device", c.PostDevice).Methods(http.MethodPost)
	setRouter.HandleFunc("/forgot-password", c.PostForgotPassword).Methods(http.MethodPost)
	setRouter.HandleFunc("/reset-password", c.PostResetPassword).Methods(http.MethodPost)
}

func (c *LoginController) render(w http.ResponseWriter, r *http.Request, page, title string, props any, flash string, fields map[string]string) {
	v := components.NewView(c.app, r, intl.T(r.Context(), title), props)
	v.Bare = true
	if flash == "" {
		flash = useFlash(w, r)
	}
	c.pages.Render(w, r, page, v.WithFlash(flash).WithErrors(fields))
}

func (c *LoginController) Get(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if _, err := composables.UseUser(r.Context()); err == nil {
		http.Redirect(w, r, safeNext(next), http.StatusFound)
		return
	}
	c.render(w, r, "login", "Login.Title", &LoginProps{Email: r.URL.Query().Get("email"), Next: next}, "", nil)
}

func (c *LoginController) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	next := r.URL.Query().Get("next")
	dto, err := composables.UseForm(&dtos.LoginDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	props := &LoginProps{Email: dto.Email, Next: next}
	if err := dto.Ok(); err != nil {
		msg, fields := formState(ctx, err)
		c.render(w, r, "login", "Login.Title", props, msg, fields)
		return
	}

	token, partial, err := c.authService.SignIn(ctx, dto.Email, dto.Password)
	if err != nil {
		composables.UseLogger(ctx).WithField("code", serrors.CodeOf(err)).Info("sign-in rejected")
		c.render(w, r, "login", "Login.Title", props, errorMessage(ctx, err), nil)
		return
	}
	setCookie(w, c.opts.Auth.PartialCookieKey, token, int(c.opts.Auth.PartialSignInTTL.Seconds()), c.opts.Secure)
	http.Redirect(w, r, challengeURL(string(partial.Stage), next), http.StatusFound)
}

func challengeURL(stage, next string) string {
	target := "/login/mfa/" + stage
	if next != "" {
		target += "?next=" + url.QueryEscape(next)
	}
	return target
}

func (c *LoginController) partialToken(r *http.Request) string {
	cookie, err := r.Cookie(c.opts.Auth.PartialCookieKey)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// restart drops an unusable challenge and sends the browser back to the password step.
func (c *LoginController) restart(w http.ResponseWriter, r *http.Request, err error) {
	clearCookie(w, c.opts.Auth.PartialCookieKey, c.opts.Secure)
	redirectWithFlash(w, r, "/login", errorMessage(r.Context(), err))
}

func (c *LoginController) GetChallenge(w http.ResponseWriter, r *http.Request) {
	stage := mux.Vars(r)["stage"]
	partial, err := c.authService.Partial(r.Context(), c.partialToken(r))
	if err != nil {
		c.restart(w, r, services.ErrChallengeExpired)
		return
	}
	next := r.URL.Query().Get("next")
	if string(partial.Stage) != stage {
		http.Redirect(w, r, challengeURL(string(partial.Stage), next), http.StatusFound)
		return
	}
	props := &LoginProps{
		Next:   next,
		Stage:  stage,
		Switch: partial.Stage != services.MfaStageEmail,
	}
	c.render(w, r, "mfa_"+stage, "Login.Mfa.Title", props, "", nil)
}

func (c *LoginController) finish(w http.ResponseWriter, r *http.Request, token string) string {
	setCookie(w, c.opts.Auth.SidCookieKey, token, int(c.opts.Auth.SessionDuration.Seconds()), c.opts.Secure)
	clearCookie(w, c.opts.Auth.PartialCookieKey, c.opts.Secure)
	return safeNext(r.URL.Query().Get("next"))
}

// codeRejected re-renders the challenge for a wrong code and restarts the
// sign-in for anything else.
func (c *LoginController) codeRejected(w http.ResponseWriter, r *http.Request, stage string, err error) {
	if errors.Is(err, services.ErrInvalidCode) {
		props := &LoginProps{Next: r.URL.Query().Get("next"), Stage: stage, Switch: stage != string(services.MfaStageEmail)}
		c.render(w, r, "mfa_"+stage, "Login.Mfa.Title", props, errorMessage(r.Context(), err), nil)
		return
	}
	c.restart(w, r, err)
}

func (c *LoginController) PostAppCode(w http.ResponseWriter, r *http.Request) {
	c.postCode(w, r, services.MfaStageApp)
}

func (c *LoginController) PostEmailCode(w http.ResponseWriter, r *http.Request) {
	c.postCode(w, r, services.MfaStageEmail)
}

func (c *LoginController) postCode(w http.ResponseWriter, r *http.Request, stage services.MfaStage) {
	ctx := r.Context()
	dto, err := composables.UseForm(&dtos.CodeDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := dto.Ok(); err != nil {
		c.codeRejected(w, r, string(stage), services.ErrInvalidCode)
		return
	}
	token := c.partialToken(r)
	verify := c.authService.VerifyAppCode
	if stage == services.MfaStageEmail {
		verify = c.authService.VerifyEmailCode
	}
	sess, err := verify(ctx, token, dto.Code)
	if err != nil {
		c.codeRejected(w, r, string(stage), err)
		return
	}
	http.Redirect(w, r, c.finish(w, r, sess.Token), http.StatusFound)
}

func (c *LoginController) SwitchToEmail(w http.ResponseWriter, r *http.Request) {
	token, partial, err := c.authService.SwitchToEmail(r.Context(), c.partialToken(r))
	if err != nil {
		c.restart(w, r, err)
		return
	}
	setCookie(w, c.opts.Auth.PartialCookieKey, token, int(c.opts.Auth.PartialSignInTTL.Seconds()), c.opts.Secure)
	composables.SetFlash(w, "flash", []byte(intl.T(r.Context(), "Login.Mfa.EmailSent")))
	http.Redirect(w, r, challengeURL(string(partial.Stage), r.URL.Query().Get("next")), http.StatusFound)
}

func (c *LoginController) ResendEmailCode(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	_, err := c.authService.ResendEmailCode(r.Context(), c.partialToken(r))
	if errors.Is(err, services.ErrWrongStage) {
		http.Redirect(w, r, challengeURL(string(services.MfaStageEmail), next), http.StatusFound)
		return
	}
	if err != nil {
		c.restart(w, r, err)
		return
	}
	composables.SetFlash(w, "flash", []byte(intl.T(r.Context(), "Login.Mfa.EmailSent")))
	http.Redirect(w, r, challengeURL(string(services.MfaStageEmail), next), http.StatusFound)
}

func (c *LoginController) DeviceOptions(w http.ResponseWriter, r *http.Request) {
	assertion, err := c.authService.BeginDeviceAssertion(r.Context(), c.partialToken(r))
	respond(w, r, assertion, err)
}

type deviceResult struct {
	Redirect string `json:"redirect"`
}

func (c *LoginController) PostDevice(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		respondError(w, r, serrors.FieldError("body", err.Error()))
		return
	}
	sess, err := c.authService.VerifyDeviceAssertion(r.Context(), c.partialToken(r), body)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCode) {
			clearCookie(w, c.opts.Auth.PartialCookieKey, c.opts.Secure)
		}
		respondError(w, r, err)
		return
	}
	respond(w, r, deviceResult{Redirect: c.finish(w, r, sess.Token)}, nil)
}

func (c *LoginController) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(c.opts.Auth.SidCookieKey); err == nil {
		if err := c.authService.Logout(r.Context(), cookie.Value); err != nil {
			composables.UseLogger(r.Context()).WithError(err).Warn("failed to delete session")
		}
	}
	clearCookie(w, c.opts.Auth.SidCookieKey, c.opts.Secure)
	clearCookie(w, c.opts.Auth.PartialCookieKey, c.opts.Secure)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (c *LoginController) GetForgotPassword(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, "forgot_password", "ForgotPassword.Title", &LoginProps{}, "", nil)
}

func (c *LoginController) PostForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto, err := composables.UseForm(&dtos.ForgotPasswordDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := dto.Ok(); err != nil {
		msg, fields := formState(ctx, err)
		c.render(w, r, "forgot_password", "ForgotPassword.Title", &LoginProps{Email: dto.Email}, msg, fields)
		return
	}
	if err := c.authService.RequestPasswordReset(ctx, dto.Email); err != nil {
		c.render(w, r, "forgot_password", "ForgotPassword.Title", &LoginProps{Email: dto.Email}, errorMessage(ctx, err), nil)
		return
	}
	redirectWithFlash(w, r, "/login", intl.T(ctx, "ForgotPassword.Sent"))
}

type ResetProps struct {
	Token string
}

func (c *LoginController) GetResetPassword(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, "reset_password", "ResetPassword.Title", &ResetProps{Token: r.URL.Query().Get("token")}, "", nil)
}

func (c *LoginController) PostResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto, err := composables.UseForm(&dtos.ResetPasswordDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	props := &ResetProps{Token: dto.Token}
	if err := dto.Ok(); err != nil {
		msg, fields := formState(ctx, err)
		c.render(w, r, "reset_password", "ResetPassword.Title", props, msg, fields)
		return
	}
	if err := c.authService.ResetPassword(ctx, dto.Token, dto.Password); err != nil {
		msg, fields := formState(ctx, err)
		c.render(w, r, "reset_password", "ResetPassword.Title", props, msg, fields)
		return
	}
	redirectWithFlash(w, r, "/login", intl.T(ctx, "ResetPassword.Done"))
}
