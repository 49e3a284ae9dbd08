package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/notifications/domain/aggregates/notification"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/repo"
)

var itemSortColumns = map[notification.Field]string{
	notification.FieldCreatedAt: "n.created_at",
	notification.FieldSubject:   "n.subject",
	notification.FieldUnread:    "(un.read_at IS NULL)",
}

var newestFirst = notification.SortBy{Fields: []repo.SortByField[notification.Field]{
	{Field: notification.FieldCreatedAt, Direction: repo.SortDesc},
}}

// itemsQuery appends ordering and paging to userItemsQuery. n.id breaks ties
// so pages stay stable.
func itemsQuery(params *notification.FindParams) string {
	order := params.SortBy.ToSQL(itemSortColumns)
	if order == "" {
		order = newestFirst.ToSQL(itemSortColumns)
	}
	return repo.Join(userItemsQuery, order+", n.id", repo.FormatLimitOffset(params.Limit, params.Offset))
}

const (
	notificationInsertQuery = `
		INSERT INTO notifications (id, tenant_id, subject, body, kind, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	recipientInsertQuery = `INSERT INTO user_notifications (notification_id, user_id) VALUES ($1, $2)`

	userItemsQuery = `
		SELECT n.id, n.subject, n.body, n.kind, n.created_at, un.read_at
		FROM user_notifications un
		JOIN notifications n ON n.id = un.notification_id
		WHERE n.tenant_id = $1 AND un.user_id = $2 AND un.dismissed_at IS NULL`
	userItemsCountQuery = `
		SELECT count(*)
		FROM user_notifications un
		JOIN notifications n ON n.id = un.notification_id
		WHERE n.tenant_id = $1 AND un.user_id = $2 AND un.dismissed_at IS NULL`
	unreadCountQuery = userItemsCountQuery + ` AND un.read_at IS NULL`

	markReadQuery = `
		UPDATE user_notifications un SET read_at = coalesce(un.read_at, now())
		FROM notifications n
		WHERE n.id = un.notification_id AND n.tenant_id = $1 AND un.notification_id = $2 AND un.user_id = $3`
	markAllReadQuery = `
		UPDATE user_notifications un SET read_at = now()
		FROM notifications n
		WHERE n.id = un.notification_id AND n.tenant_id = $1 AND un.user_id = $2
		  AND un.read_at IS NULL AND un.dismissed_at IS NULL`
	dismissQuery = `
		UPDATE user_notifications un SET dismissed_at = coalesce(un.dismissed_at, now()), read_at = coalesce(un.read_at, now())
		FROM notifications n
		WHERE n.id = un.notification_id AND n.tenant_id = $1 AND un.notification_id = $2 AND un.user_id = $3`

	activeUsersQuery      = `SELECT id FROM users WHERE tenant_id = $1 AND is_active ORDER BY created_at`
	activeUsersByIDsQuery = `SELECT id FROM users WHERE tenant_id = $1 AND is_active AND id = ANY($2) ORDER BY created_at`
	contactsQuery         = `SELECT id, email, first_name, ui_language FROM users WHERE tenant_id = $1 AND id = ANY($2)`
)

type NotificationRepository struct{}

func NewNotificationRepository() notification.Repository {
	return &NotificationRepository{}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	var createdBy *uuid.UUID
	if id := n.CreatedBy(); id != uuid.Nil {
		createdBy = &id
	}
	if _, err := tx.Exec(ctx, notificationInsertQuery,
		n.ID(), n.TenantID(), n.Subject(), n.Body(), string(n.Kind()), createdBy, n.CreatedAt(),
	); err != nil {
		return errors.Wrap(err, "failed to insert notification")
	}
	for _, id := range n.RecipientIDs() {
		if _, err := tx.Exec(ctx, recipientInsertQuery, n.ID(), id); err != nil {
			return errors.Wrap(err, "failed to insert notification recipient")
		}
	}
	return nil
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, params *notification.FindParams) ([]notification.Item, int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, 0, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := tx.QueryRow(ctx, userItemsCountQuery, tenantID, userID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count notifications")
	}
	rows, err := tx.Query(ctx, itemsQuery(params), tenantID, userID)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to query notifications")
	}
	defer rows.Close()
	items := make([]notification.Item, 0, params.Limit)
	for rows.Next() {
		var it notification.Item
		var kind string
		if err := rows.Scan(&it.ID, &it.Subject, &it.Body, &kind, &it.CreatedAt, &it.ReadAt); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan notification")
		}
		it.Kind = notification.Kind(kind)
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.QueryRow(ctx, unreadCountQuery, tenantID, userID).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count unread notifications")
	}
	return n, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return r.updateOne(ctx, markReadQuery, id, userID)
}

func (r *NotificationRepository) Dismiss(ctx context.Context, id, userID uuid.UUID) error {
	return r.updateOne(ctx, dismissQuery, id, userID)
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, markAllReadQuery, tenantID, userID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to mark notifications read")
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) updateOne(ctx context.Context, query string, id, userID uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, query, tenantID, id, userID)
	if err != nil {
		return errors.Wrap(err, "failed to update notification")
	}
	if tag.RowsAffected() == 0 {
		return notification.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) ActiveUserIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	query, args := activeUsersQuery, []any{tenantID}
	if ids != nil {
		query, args = activeUsersByIDsQuery, append(args, ids)
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query recipients")
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan recipient")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) Contacts(ctx context.Context, ids []uuid.UUID) ([]notification.Contact, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, contactsQuery, tenantID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query contacts")
	}
	defer rows.Close()
	var out []notification.Contact
	for rows.Next() {
		var c notification.Contact
		if err := rows.Scan(&c.UserID, &c.Email, &c.FirstName, &c.Language); err != nil {
			return nil, errors.Wrap(err, "failed to scan contact")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
