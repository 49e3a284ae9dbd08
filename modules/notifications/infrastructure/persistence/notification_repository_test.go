package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iota-uz/admin-portal/modules/notifications/domain/aggregates/notification"
	"github.com/iota-uz/admin-portal/pkg/repo"
)

func TestItemsQuery(t *testing.T) {
	t.Parallel()

	t.Run("defaults to newest first", func(t *testing.T) {
		got := itemsQuery(&notification.FindParams{Limit: 20})
		assert.Contains(t, got, "ORDER BY n.created_at DESC, n.id LIMIT 20")
	})

	t.Run("unread first", func(t *testing.T) {
		got := itemsQuery(&notification.FindParams{
			Limit:  10,
			Offset: 30,
			SortBy: notification.SortBy{Fields: []repo.SortByField[notification.Field]{
				{Field: notification.FieldUnread, Direction: repo.SortDesc},
				{Field: notification.FieldCreatedAt, Direction: repo.SortDesc},
			}},
		})
		assert.Contains(t, got, "ORDER BY (un.read_at IS NULL) DESC, n.created_at DESC, n.id LIMIT 10 OFFSET 30")
	})
}
