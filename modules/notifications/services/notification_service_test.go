package services

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	coreservices "github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/modules/notifications/domain/aggregates/notification"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/outbox"
	"github.com/iota-uz/admin-portal/pkg/repo"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type fakeTx struct {
	pgx.Tx
	mu    sync.Mutex
	execs [][]any
	sqls  []string
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sqls = append(f.sqls, sql)
	f.execs = append(f.execs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeTx) outboxPayloads(topic string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for i, sql := range f.sqls {
		if strings.Contains(sql, "INSERT INTO outbox") && f.execs[i][1] == topic {
			out = append(out, payloadBytes(f.execs[i][2]))
		}
	}
	return out
}

// payloadBytes accepts the payload argument of an outbox insert.
func payloadBytes(v any) []byte {
	switch p := v.(type) {
	case json.RawMessage:
		return p
	case []byte:
		return p
	default:
		return nil
	}
}

type fakeRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]notification.Contact
	created  []*notification.Notification
	read     map[uuid.UUID]map[uuid.UUID]bool
	lastFind *notification.FindParams
}

func newFakeRepo(contacts ...notification.Contact) *fakeRepo {
	r := &fakeRepo{users: map[uuid.UUID]notification.Contact{}, read: map[uuid.UUID]map[uuid.UUID]bool{}}
	for _, c := range contacts {
		r.users[c.UserID] = c
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, n)
	r.read[n.ID()] = map[uuid.UUID]bool{}
	return nil
}

func (r *fakeRepo) visible(userID uuid.UUID) []*notification.Notification {
	var out []*notification.Notification
	for _, n := range r.created {
		if slices.Contains(n.RecipientIDs(), userID) {
			out = append(out, n)
		}
	}
	return out
}

func (r *fakeRepo) ListForUser(_ context.Context, userID uuid.UUID, params *notification.FindParams) ([]notification.Item, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFind = params
	all := r.visible(userID)
	items := []notification.Item{}
	for i, n := range all {
		if i < params.Offset || len(items) == params.Limit {
			continue
		}
		items = append(items, notification.Item{ID: n.ID(), Subject: n.Subject(), Body: n.Body(), Kind: n.Kind()})
	}
	return items, int64(len(all)), nil
}

func (r *fakeRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.visible(userID) {
		if !r.read[item.ID()][userID] {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) MarkRead(_ context.Context, id, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	marks, ok := r.read[id]
	if !ok {
		return notification.ErrNotificationNotFound
	}
	marks[userID] = true
	return nil
}

func (r *fakeRepo) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.visible(userID) {
		if !r.read[item.ID()][userID] {
			r.read[item.ID()][userID] = true
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) Dismiss(_ context.Context, id, _ uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.read[id]; !ok {
		return notification.ErrNotificationNotFound
	}
	return nil
}

func (r *fakeRepo) ActiveUserIDs(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for id := range r.users {
		if ids == nil || slices.Contains(ids, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeRepo) Contacts(_ context.Context, ids []uuid.UUID) ([]notification.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Contact
	for _, id := range ids {
		if c, ok := r.users[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeAuthorizer struct {
	deny bool
}

func (a *fakeAuthorizer) Authorize(context.Context, uuid.UUID, authz.Request) error {
	if a.deny {
		return serrors.NewError(serrors.Forbidden, "forbidden", "Errors.Forbidden")
	}
	return nil
}

type recorder[T any] struct {
	mu     sync.Mutex
	events []*T
}

func record[T any](bus eventbus.EventBus) *recorder[T] {
	r := &recorder[T]{}
	bus.Subscribe(func(_ context.Context, e *T) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

func (r *recorder[T]) all() []*T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

type fixture struct {
	tenant     *tenant.Tenant
	author     user.User
	alice, bob notification.Contact
	repo       *fakeRepo
	authorizer *fakeAuthorizer
	bus        eventbus.EventBus
	tx         *fakeTx
	service    *NotificationService
}

func newFixture(features ...tenant.Feature) *fixture {
	if features == nil {
		features = []tenant.Feature{tenant.FeatureNotifications}
	}
	t := tenant.New("Acme", tenant.WithDomain("acme.test"), tenant.WithFeatures(features))
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	f := &fixture{
		tenant:     t,
		author:     user.New("admin@acme.test", "Ada", "Admin", user.WithTenantID(t.ID())),
		alice:      notification.Contact{UserID: uuid.New(), Email: "alice@acme.test", FirstName: "Alice", Language: "en"},
		bob:        notification.Contact{UserID: uuid.New(), Email: "bob@acme.test", FirstName: "Bob", Language: "ru"},
		authorizer: &fakeAuthorizer{},
		bus:        eventbus.NewEventPublisher(logger),
		tx:         &fakeTx{},
	}
	f.repo = newFakeRepo(f.alice, f.bob)
	f.service = NewNotificationService(f.repo, f.authorizer, f.bus)
	return f
}

func (f *fixture) ctx(u user.User) context.Context {
	ctx := composables.WithTx(context.Background(), f.tx)
	ctx = composables.WithTenant(ctx, f.tenant)
	if u != nil {
		ctx = composables.WithUser(ctx, u)
	}
	return ctx
}

func (f *fixture) as(c notification.Contact) user.User {
	return user.New(c.Email, c.FirstName, "", user.WithID(c.UserID), user.WithTenantID(f.tenant.ID()))
}

func TestNotificationService_Create(t *testing.T) {
	t.Parallel()

	t.Run("delivers to selected users and queues mail", func(t *testing.T) {
		f := newFixture()
		created := record[notification.CreatedEvent](f.bus)

		change, err := f.service.Create(f.ctx(f.author), CreateNotification{
			Subject: "Maintenance",
			Body:    "Tonight at 22:00",
			Kind:    "warning",
			UserIDs: []uuid.UUID{f.alice.UserID, f.alice.UserID},
		})
		require.NoError(t, err)

		assert.Equal(t, []uuid.UUID{f.alice.UserID}, change.After.Recipients)
		assert.Equal(t, f.author.ID(), change.After.CreatedBy)
		require.Len(t, created.all(), 1)
		assert.Equal(t, f.tenant.ID(), created.all()[0].TenantID)

		payloads := f.tx.outboxPayloads(outbox.TopicNotificationCreated)
		require.Len(t, payloads, 1)
		var payload CreatedPayload
		require.NoError(t, json.Unmarshal(payloads[0], &payload))
		assert.Equal(t, "Maintenance", payload.Subject)
		assert.Equal(t, []notification.Contact{f.alice}, payload.Recipients)
	})

	t.Run("all users", func(t *testing.T) {
		f := newFixture()
		change, err := f.service.Create(f.ctx(f.author), CreateNotification{
			Subject:  "Hello",
			Body:     "Everyone",
			Kind:     "info",
			AllUsers: true,
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{f.alice.UserID, f.bob.UserID}, change.After.Recipients)
	})

	t.Run("rejects unknown recipient", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.Create(f.ctx(f.author), CreateNotification{
			Subject: "Hello",
			Body:    "Anyone",
			Kind:    "info",
			UserIDs: []uuid.UUID{f.alice.UserID, uuid.New()},
		})
		require.Error(t, err)
		assert.Equal(t, serrors.Validation, serrors.CodeOf(err))
		assert.Empty(t, f.repo.created)
		assert.Empty(t, f.tx.outboxPayloads(outbox.TopicNotificationCreated))
	})

	t.Run("requires the feature", func(t *testing.T) {
		f := newFixture(tenant.FeatureAudit)
		_, err := f.service.Create(f.ctx(f.author), CreateNotification{
			Subject:  "Hello",
			Body:     "Everyone",
			Kind:     "info",
			AllUsers: true,
		})
		require.ErrorIs(t, err, ErrFeatureDisabled)
	})

	t.Run("requires write permission", func(t *testing.T) {
		f := newFixture()
		f.authorizer.deny = true
		_, err := f.service.Create(f.ctx(f.author), CreateNotification{
			Subject:  "Hello",
			Body:     "Everyone",
			Kind:     "info",
			AllUsers: true,
		})
		assert.Equal(t, serrors.Forbidden, serrors.CodeOf(err))
	})
}

func TestNotificationService_ReadState(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for _, subject := range []string{"One", "Two", "Three"} {
		_, err := f.service.Create(f.ctx(f.author), CreateNotification{Subject: subject, Body: "b", Kind: "info", AllUsers: true})
		require.NoError(t, err)
	}
	alice := f.as(f.alice)
	unreadChanged := record[notification.UnreadChangedEvent](f.bus)

	page, err := f.service.ListMine(f.ctx(alice), ListMyNotifications{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, int64(3), page.Unread)

	_, err = f.service.MarkRead(f.ctx(alice), MarkNotificationRead{ID: page.Items[0].ID})
	require.NoError(t, err)
	unread, err := f.service.UnreadCount(f.ctx(alice), coreservices.GetUnreadNotificationCount{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	n, err := f.service.MarkAllRead(f.ctx(alice), MarkAllNotificationsRead{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unread, err = f.service.UnreadCount(f.ctx(f.as(f.bob)), coreservices.GetUnreadNotificationCount{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	require.Len(t, unreadChanged.all(), 2)
	assert.Equal(t, f.alice.UserID, unreadChanged.all()[0].UserID)

	_, err = f.service.MarkRead(f.ctx(alice), MarkNotificationRead{ID: uuid.New()})
	require.ErrorIs(t, err, notification.ErrNotificationNotFound)
}

func TestNotificationService_FeatureDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(tenant.FeatureAudit)
	alice := f.as(f.alice)

	page, err := f.service.ListMine(f.ctx(alice), ListMyNotifications{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	unread, err := f.service.UnreadCount(f.ctx(alice), coreservices.GetUnreadNotificationCount{})
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestNotificationService_RequiresUser(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service.ListMine(f.ctx(nil), ListMyNotifications{})
	require.ErrorIs(t, err, coreservices.ErrNotAuthenticated)
	_, err = f.service.MarkAllRead(f.ctx(nil), MarkAllNotificationsRead{})
	require.ErrorIs(t, err, coreservices.ErrNotAuthenticated)
}

func TestNotificationService_ListMineOrdering(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service.Create(f.ctx(f.author), CreateNotification{Subject: "One", Body: "b", Kind: "info", AllUsers: true})
	require.NoError(t, err)
	alice := f.as(f.alice)

	_, err = f.service.ListMine(f.ctx(alice), ListMyNotifications{Page: 3, Limit: 10})
	require.NoError(t, err)
	require.NotNil(t, f.repo.lastFind)
	assert.Equal(t, 10, f.repo.lastFind.Limit)
	assert.Equal(t, 20, f.repo.lastFind.Offset)
	assert.Empty(t, f.repo.lastFind.SortBy.Fields)

	_, err = f.service.ListMine(f.ctx(alice), ListMyNotifications{UnreadFirst: true})
	require.NoError(t, err)
	assert.Equal(t, []repo.SortByField[notification.Field]{
		{Field: notification.FieldUnread, Direction: repo.SortDesc},
		{Field: notification.FieldCreatedAt, Direction: repo.SortDesc},
	}, f.repo.lastFind.SortBy.Fields)
}
