package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	coreservices "github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/modules/notifications/domain/aggregates/notification"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/outbox"
	"github.com/iota-uz/admin-portal/pkg/repo"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var ErrFeatureDisabled = serrors.NewError(serrors.Forbidden, "notifications are not enabled for this organization", "Errors.NotificationsDisabled")

type CreateNotification struct {
	mediator.CommandBase
	Subject  string      `validate:"required,max=255"`
	Body     string      `validate:"required,max=5000"`
	Kind     string      `validate:"required,oneof=info success warning error"`
	UserIDs  []uuid.UUID `validate:"required_without=AllUsers,dive,required"`
	AllUsers bool
}

type MarkNotificationRead struct {
	mediator.CommandBase
	ID uuid.UUID `validate:"required"`
}

type MarkAllNotificationsRead struct {
	mediator.CommandBase
}

type DismissNotification struct {
	mediator.CommandBase
	ID uuid.UUID `validate:"required"`
}

type ListMyNotifications struct {
	Page  int
	Limit int
	// UnreadFirst lists unread items ahead of read ones, newest first within each group.
	UnreadFirst bool
}

// ListRecipients lists the active users a notification can be sent to.
type ListRecipients struct{}

type NotificationPage struct {
	Items  []notification.Item `json:"items"`
	Total  int64               `json:"total"`
	Unread int64               `json:"unread"`
}

type NotificationChange = mediator.Change[notification.Snapshot]

// CreatedPayload is the integration event queued for every new notification.
type CreatedPayload struct {
	NotificationID uuid.UUID              `json:"notificationId"`
	TenantID       uuid.UUID              `json:"tenantId"`
	Subject        string                 `json:"subject"`
	Body           string                 `json:"body"`
	Kind           notification.Kind      `json:"kind"`
	Recipients     []notification.Contact `json:"recipients"`
}

type Authorizer interface {
	Authorize(ctx context.Context, tenantID uuid.UUID, req authz.Request) error
}

type NotificationService struct {
	repo       notification.Repository
	authorizer Authorizer
	publisher  eventbus.EventBus
}

func NewNotificationService(store notification.Repository, authorizer Authorizer, publisher eventbus.EventBus) *NotificationService {
	return &NotificationService{repo: store, authorizer: authorizer, publisher: publisher}
}

func (s *NotificationService) Register(m *mediator.Mediator) {
	mediator.Register(m, s.Create)
	mediator.Register(m, s.MarkRead)
	mediator.Register(m, s.MarkAllRead)
	mediator.Register(m, s.Dismiss)
	mediator.Register(m, s.ListMine)
	mediator.Register(m, s.UnreadCount)
	mediator.Register(m, s.Recipients)
}

func (s *NotificationService) Create(ctx context.Context, cmd CreateNotification) (NotificationChange, error) {
	if err := s.authorizeWrite(ctx); err != nil {
		return NotificationChange{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return NotificationChange{}, err
	}

	var requested []uuid.UUID
	if !cmd.AllUsers {
		requested = cmd.UserIDs
	}
	recipients, err := s.repo.ActiveUserIDs(ctx, requested)
	if err != nil {
		return NotificationChange{}, err
	}
	if !cmd.AllUsers && len(recipients) != countDistinct(cmd.UserIDs) {
		return NotificationChange{}, serrors.FieldError("UserIDs", "one or more recipients do not exist or are inactive")
	}

	opts := []notification.Option{notification.WithTenantID(tenantID)}
	if u, err := composables.UseUser(ctx); err == nil {
		opts = append(opts, notification.WithCreatedBy(u.ID()))
	}
	n, err := notification.New(cmd.Subject, cmd.Body, notification.Kind(cmd.Kind), recipients, opts...)
	if err != nil {
		return NotificationChange{}, err
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return NotificationChange{}, err
	}
	contacts, err := s.repo.Contacts(ctx, n.RecipientIDs())
	if err != nil {
		return NotificationChange{}, err
	}
	if err := outbox.Enqueue(ctx, outbox.TopicNotificationCreated, CreatedPayload{
		NotificationID: n.ID(),
		TenantID:       tenantID,
		Subject:        n.Subject(),
		Body:           n.Body(),
		Kind:           n.Kind(),
		Recipients:     contacts,
	}); err != nil {
		return NotificationChange{}, err
	}
	mediator.Raise(ctx, s.publisher, &notification.CreatedEvent{TenantID: tenantID, Result: n.Snapshot()})
	return NotificationChange{ID: n.ID().String(), After: n.Snapshot()}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, cmd MarkNotificationRead) (struct{}, error) {
	return struct{}{}, s.forCurrentUser(ctx, func(userID uuid.UUID) error {
		return s.repo.MarkRead(ctx, cmd.ID, userID)
	})
}

func (s *NotificationService) MarkAllRead(ctx context.Context, _ MarkAllNotificationsRead) (int64, error) {
	var n int64
	err := s.forCurrentUser(ctx, func(userID uuid.UUID) error {
		var err error
		n, err = s.repo.MarkAllRead(ctx, userID)
		return err
	})
	return n, err
}

func (s *NotificationService) Dismiss(ctx context.Context, cmd DismissNotification) (struct{}, error) {
	return struct{}{}, s.forCurrentUser(ctx, func(userID uuid.UUID) error {
		return s.repo.Dismiss(ctx, cmd.ID, userID)
	})
}

func (s *NotificationService) ListMine(ctx context.Context, q ListMyNotifications) (NotificationPage, error) {
	u, err := composables.UseUser(ctx)
	if err != nil {
		return NotificationPage{}, coreservices.ErrNotAuthenticated
	}
	if !featureEnabled(ctx) {
		return NotificationPage{Items: []notification.Item{}}, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	page := max(q.Page, 1)
	params := &notification.FindParams{Limit: limit, Offset: (page - 1) * limit}
	if q.UnreadFirst {
		params.SortBy = notification.SortBy{Fields: []repo.SortByField[notification.Field]{
			{Field: notification.FieldUnread, Direction: repo.SortDesc},
			{Field: notification.FieldCreatedAt, Direction: repo.SortDesc},
		}}
	}
	items, total, err := s.repo.ListForUser(ctx, u.ID(), params)
	if err != nil {
		return NotificationPage{}, err
	}
	unread, err := s.repo.CountUnread(ctx, u.ID())
	if err != nil {
		return NotificationPage{}, err
	}
	return NotificationPage{Items: items, Total: total, Unread: unread}, nil
}

// UnreadCount answers the dashboard query; it is zero when the feature is off.
func (s *NotificationService) UnreadCount(ctx context.Context, _ coreservices.GetUnreadNotificationCount) (int64, error) {
	u, err := composables.UseUser(ctx)
	if err != nil {
		return 0, coreservices.ErrNotAuthenticated
	}
	if !featureEnabled(ctx) {
		return 0, nil
	}
	return s.repo.CountUnread(ctx, u.ID())
}

func (s *NotificationService) Recipients(ctx context.Context, _ ListRecipients) ([]notification.Contact, error) {
	if err := s.authorizeWrite(ctx); err != nil {
		return nil, err
	}
	ids, err := s.repo.ActiveUserIDs(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []notification.Contact{}, nil
	}
	return s.repo.Contacts(ctx, ids)
}

func (s *NotificationService) forCurrentUser(ctx context.Context, fn func(userID uuid.UUID) error) error {
	u, err := composables.UseUser(ctx)
	if err != nil {
		return coreservices.ErrNotAuthenticated
	}
	if err := fn(u.ID()); err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		tenantID = u.TenantID()
	}
	mediator.Raise(ctx, s.publisher, &notification.UnreadChangedEvent{TenantID: tenantID, UserID: u.ID()})
	return nil
}

func (s *NotificationService) authorizeWrite(ctx context.Context) error {
	u, err := composables.UseUser(ctx)
	if err != nil || u == nil {
		return nil
	}
	if u.IsSuperadmin() {
		return nil
	}
	if !featureEnabled(ctx) {
		return ErrFeatureDisabled
	}
	tenantID := u.TenantID()
	return s.authorizer.Authorize(ctx, tenantID, authz.NewRequest(tenantID, u.ID(), string(role.ResourceNotificationsWrite)))
}

// featureEnabled is true outside requests that resolved a tenant, such as
// CLI commands and event handlers.
func featureEnabled(ctx context.Context) bool {
	t, err := composables.UseTenant(ctx)
	if errors.Is(err, composables.ErrNoTenant) {
		return true
	}
	return err == nil && t.HasFeature(tenant.FeatureNotifications)
}

func countDistinct(ids []uuid.UUID) int {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
