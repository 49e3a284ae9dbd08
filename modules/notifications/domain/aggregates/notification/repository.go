package notification

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/repo"
)

type Field int

const (
	FieldCreatedAt Field = iota
	FieldSubject
	FieldUnread
)

type SortBy = repo.SortBy[Field]

// FindParams pages a recipient's inbox. An empty SortBy lists newest first.
type FindParams struct {
	Limit  int
	Offset int
	SortBy SortBy
}

// Contact is the mail address of a recipient.
type Contact struct {
	UserID    uuid.UUID `json:"userId"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	Language  string    `json:"language"`
}

// Repository stores notifications of the tenant carried by ctx. Per-user
// methods act on the recipient row of userID only.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID, params *FindParams) ([]Item, int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Dismiss(ctx context.Context, id, userID uuid.UUID) error
	// ActiveUserIDs lists active users of the tenant; with ids it keeps only
	// those that exist.
	ActiveUserIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	Contacts(ctx context.Context, ids []uuid.UUID) ([]Contact, error)
}
