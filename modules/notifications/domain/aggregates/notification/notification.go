package notification

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

var AllKinds = []Kind{KindInfo, KindSuccess, KindWarning, KindError}

func (k Kind) IsValid() bool {
	return slices.Contains(AllKinds, k)
}

var (
	ErrNotificationNotFound = serrors.NewError(serrors.NotificationNotFound, "notification not found", "Errors.NotificationNotFound")
	ErrNoRecipients         = serrors.NewError(serrors.Validation, "notification has no recipients", "Errors.NoRecipients")
)

// Recipient is the delivery state of a notification for one user.
type Recipient struct {
	UserID      uuid.UUID
	ReadAt      *time.Time
	DismissedAt *time.Time
}

func (r Recipient) IsRead() bool {
	return r.ReadAt != nil
}

type Notification struct {
	id         uuid.UUID
	tenantID   uuid.UUID
	subject    string
	body       string
	kind       Kind
	createdBy  uuid.UUID
	createdAt  time.Time
	recipients []Recipient
}

type Option func(*Notification)

func WithID(id uuid.UUID) Option {
	return func(n *Notification) {
		n.id = id
	}
}

func WithTenantID(id uuid.UUID) Option {
	return func(n *Notification) {
		n.tenantID = id
	}
}

func WithCreatedBy(id uuid.UUID) Option {
	return func(n *Notification) {
		n.createdBy = id
	}
}

func WithCreatedAt(t time.Time) Option {
	return func(n *Notification) {
		n.createdAt = t
	}
}

// WithRecipients replaces the recipient list; used when loading from storage.
func WithRecipients(recipients []Recipient) Option {
	return func(n *Notification) {
		n.recipients = recipients
	}
}

// New builds an unread notification for userIDs. Duplicate ids collapse.
func New(subject, body string, kind Kind, userIDs []uuid.UUID, opts ...Option) (*Notification, error) {
	if !kind.IsValid() {
		return nil, serrors.FieldError("Kind", "unknown notification kind")
	}
	n := &Notification{
		id:        uuid.New(),
		subject:   strings.TrimSpace(subject),
		body:      strings.TrimSpace(body),
		kind:      kind,
		createdAt: time.Now(),
	}
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		n.recipients = append(n.recipients, Recipient{UserID: id})
	}
	for _, opt := range opts {
		opt(n)
	}
	if len(n.recipients) == 0 {
		return nil, ErrNoRecipients
	}
	return n, nil
}

func (n *Notification) ID() uuid.UUID           { return n.id }
func (n *Notification) TenantID() uuid.UUID     { return n.tenantID }
func (n *Notification) Subject() string         { return n.subject }
func (n *Notification) Body() string            { return n.body }
func (n *Notification) Kind() Kind              { return n.kind }
func (n *Notification) CreatedBy() uuid.UUID    { return n.createdBy }
func (n *Notification) CreatedAt() time.Time    { return n.createdAt }
func (n *Notification) Recipients() []Recipient { return slices.Clone(n.recipients) }

func (n *Notification) RecipientIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(n.recipients))
	for i, r := range n.recipients {
		ids[i] = r.UserID
	}
	return ids
}

// Snapshot is the audit and API view of a notification.
type Snapshot struct {
	ID         uuid.UUID   `json:"id"`
	Subject    string      `json:"subject"`
	Body       string      `json:"body"`
	Kind       Kind        `json:"kind"`
	CreatedBy  uuid.UUID   `json:"createdBy"`
	CreatedAt  time.Time   `json:"createdAt"`
	Recipients []uuid.UUID `json:"recipients"`
}

func (n *Notification) Snapshot() Snapshot {
	return Snapshot{
		ID:         n.id,
		Subject:    n.subject,
		Body:       n.body,
		Kind:       n.kind,
		CreatedBy:  n.createdBy,
		CreatedAt:  n.createdAt,
		Recipients: n.RecipientIDs(),
	}
}

// Item is a notification as seen by one recipient.
type Item struct {
	ID        uuid.UUID  `json:"id"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Kind      Kind       `json:"kind"`
	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

func (i Item) IsRead() bool {
	return i.ReadAt != nil
}
