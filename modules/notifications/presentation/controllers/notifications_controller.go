package controllers

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/components"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	coreservices "github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/modules/notifications/domain/aggregates/notification"
	"github.com/iota-uz/admin-portal/modules/notifications/presentation/templates"
	"github.com/iota-uz/admin-portal/modules/notifications/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/middleware"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

// NotificationDTO is bound from the send form and from JSON API bodies.
type NotificationDTO struct {
	Subject  string      `json:"subject"`
	Body     string      `json:"body"`
	Kind     string      `json:"kind"`
	UserIDs  []uuid.UUID `json:"userIds"`
	AllUsers bool        `json:"allUsers"`
}

func (d *NotificationDTO) ToCommand() services.CreateNotification {
	kind := d.Kind
	if kind == "" {
		kind = string(notification.KindInfo)
	}
	return services.CreateNotification{
		Subject:  strings.TrimSpace(d.Subject),
		Body:     strings.TrimSpace(d.Body),
		Kind:     kind,
		UserIDs:  d.UserIDs,
		AllUsers: d.AllUsers,
	}
}

type NotificationsPageProps struct {
	Items []notification.Item
	Pager *components.Pager
}

type SendFormProps struct {
	Form       NotificationDTO
	Kinds      []notification.Kind
	Recipients []notification.Contact
}

func (p *SendFormProps) Selected(id uuid.UUID) bool {
	return slices.Contains(p.Form.UserIDs, id)
}

type NotificationsController struct {
	app   application.Application
	authz *authz.Service
	pages *components.Renderer
}

func NewNotificationsController(app application.Application) application.Controller {
	return &NotificationsController{
		app:   app,
		authz: app.Service(authz.Service{}).(*authz.Service),
		pages: templates.Pages(),
	}
}

func (c *NotificationsController) Key() string {
	return "/notifications"
}

func (c *NotificationsController) Register(r *mux.Router) {
	write := middleware.RequireResource(c.authz, string(role.ResourceNotificationsWrite))

	pages := r.PathPrefix("/notifications").Subrouter()
	pages.Use(middleware.RedirectNotAuthenticated())
	pages.HandleFunc("", c.List).Methods(http.MethodGet)
	pages.Handle("/new", write(http.HandlerFunc(c.GetNew))).Methods(http.MethodGet)
	pages.Handle("", write(http.HandlerFunc(c.Create))).Methods(http.MethodPost)
	pages.HandleFunc("/read-all", c.PostReadAll).Methods(http.MethodPost)
	pages.HandleFunc("/{id:[0-9a-fA-F-]{36}}/read", c.PostRead).Methods(http.MethodPost)
	pages.HandleFunc("/{id:[0-9a-fA-F-]{36}}/dismiss", c.PostDismiss).Methods(http.MethodPost)

	api := r.PathPrefix("/api/notifications").Subrouter()
	api.Use(middleware.RedirectNotAuthenticated())
	api.HandleFunc("", c.APIList).Methods(http.MethodGet)
	api.Handle("", write(http.HandlerFunc(c.APICreate))).Methods(http.MethodPost)
	api.HandleFunc("/unread-count", c.APIUnreadCount).Methods(http.MethodGet)
	api.HandleFunc("/read-all", c.APIReadAll).Methods(http.MethodPost)
	api.HandleFunc("/{id}/read", c.APIRead).Methods(http.MethodPost)
	api.HandleFunc("/{id}", c.APIDismiss).Methods(http.MethodDelete)
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, serrors.FieldError("id", "must be a UUID")
	}
	return id, nil
}

func (c *NotificationsController) listMine(r *http.Request, page, limit int) (services.NotificationPage, error) {
	return mediator.Send[services.NotificationPage](r.Context(), c.app.Mediator(), services.ListMyNotifications{
		Page:        page,
		Limit:       limit,
		UnreadFirst: r.URL.Query().Get("sort") == "unread",
	})
}

func (c *NotificationsController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pager := components.NewPager(r.URL.Query(), services.DefaultPageSize)
	props := &NotificationsPageProps{Pager: pager}
	v := components.NewView(c.app, r, intl.T(ctx, "Notifications.Title"), props)
	res, err := c.listMine(r, pager.Page, pager.PerPage)
	if err != nil {
		v.Flash = components.ErrorMessage(ctx, err)
	} else {
		props.Items = res.Items
		pager.SetTotal(res.Total)
	}
	if v.Flash == "" {
		v.Flash = components.Flash(w, r)
	}
	c.pages.Render(w, r, "notifications", v)
}

func (c *NotificationsController) renderForm(w http.ResponseWriter, r *http.Request, form NotificationDTO, flash string, fields map[string]string) {
	ctx := r.Context()
	props := &SendFormProps{Form: form, Kinds: notification.AllKinds}
	recipients, err := mediator.Send[[]notification.Contact](ctx, c.app.Mediator(), services.ListRecipients{})
	if err != nil && flash == "" {
		flash = components.ErrorMessage(ctx, err)
	}
	props.Recipients = recipients
	v := components.NewView(c.app, r, intl.T(ctx, "Notifications.New"), props)
	c.pages.Render(w, r, "notification_form", v.WithFlash(flash).WithErrors(fields))
}

func (c *NotificationsController) GetNew(w http.ResponseWriter, r *http.Request) {
	c.renderForm(w, r, NotificationDTO{Kind: string(notification.KindInfo), AllUsers: true}, "", nil)
}

func (c *NotificationsController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto, err := composables.UseForm(&NotificationDTO{}, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := mediator.Send[services.NotificationChange](ctx, c.app.Mediator(), dto.ToCommand()); err != nil {
		msg, fields := components.FormState(ctx, err)
		c.renderForm(w, r, *dto, msg, fields)
		return
	}
	components.RedirectWithFlash(w, r, "/notifications", intl.T(ctx, "Notifications.Sent"))
}

func (c *NotificationsController) PostRead(w http.ResponseWriter, r *http.Request) {
	c.pageCommand(w, r, func(id uuid.UUID) any { return services.MarkNotificationRead{ID: id} })
}

func (c *NotificationsController) PostDismiss(w http.ResponseWriter, r *http.Request) {
	c.pageCommand(w, r, func(id uuid.UUID) any { return services.DismissNotification{ID: id} })
}

func (c *NotificationsController) PostReadAll(w http.ResponseWriter, r *http.Request) {
	if _, err := c.app.Mediator().Send(r.Context(), services.MarkAllNotificationsRead{}); err != nil {
		components.RedirectWithFlash(w, r, "/notifications", components.ErrorMessage(r.Context(), err))
		return
	}
	http.Redirect(w, r, "/notifications", http.StatusFound)
}

func (c *NotificationsController) pageCommand(w http.ResponseWriter, r *http.Request, build func(uuid.UUID) any) {
	id, err := parseID(r)
	if err == nil {
		_, err = c.app.Mediator().Send(r.Context(), build(id))
	}
	if err != nil {
		components.RedirectWithFlash(w, r, "/notifications", components.ErrorMessage(r.Context(), err))
		return
	}
	http.Redirect(w, r, "/notifications", http.StatusFound)
}

func (c *NotificationsController) APIList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	res, err := c.listMine(r, page, limit)
	httpapi.Respond(w, r, res, err)
}

func (c *NotificationsController) APIUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := mediator.Send[int64](r.Context(), c.app.Mediator(), coreservices.GetUnreadNotificationCount{})
	httpapi.Respond(w, r, map[string]int64{"unread": n}, err)
}

func (c *NotificationsController) APICreate(w http.ResponseWriter, r *http.Request) {
	var dto NotificationDTO
	if err := httpapi.Decode(r, &dto); err != nil {
		httpapi.RespondError(w, r, err)
		return
	}
	change, err := mediator.Send[services.NotificationChange](r.Context(), c.app.Mediator(), dto.ToCommand())
	if err != nil {
		httpapi.RespondError(w, r, err)
		return
	}
	httpapi.RespondCreated(w, r, change.After, nil)
}

func (c *NotificationsController) APIReadAll(w http.ResponseWriter, r *http.Request) {
	n, err := mediator.Send[int64](r.Context(), c.app.Mediator(), services.MarkAllNotificationsRead{})
	httpapi.Respond(w, r, map[string]int64{"updated": n}, err)
}

func (c *NotificationsController) APIRead(w http.ResponseWriter, r *http.Request) {
	c.apiCommand(w, r, func(id uuid.UUID) any { return services.MarkNotificationRead{ID: id} })
}

func (c *NotificationsController) APIDismiss(w http.ResponseWriter, r *http.Request) {
	c.apiCommand(w, r, func(id uuid.UUID) any { return services.DismissNotification{ID: id} })
}

func (c *NotificationsController) apiCommand(w http.ResponseWriter, r *http.Request, build func(uuid.UUID) any) {
	id, err := parseID(r)
	if err == nil {
		_, err = c.app.Mediator().Send(r.Context(), build(id))
	}
	httpapi.Respond(w, r, nil, err)
}
