package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/outbox"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type userFixture struct {
	tenantID   uuid.UUID
	users      *fakeUserRepo
	roles      *fakeRoleRepo
	sessions   *fakeSessionRepo
	authorizer *fakeAuthorizer
	bus        eventbus.EventBus
	service    *UserService
	tx         *fakeTx
}

func newUserFixture(t *testing.T, existing ...user.User) *userFixture {
	t.Helper()
	f := &userFixture{
		tenantID:   uuid.New(),
		users:      newFakeUserRepo(existing...),
		roles:      newFakeRoleRepo(),
		sessions:   newFakeSessionRepo(),
		authorizer: &fakeAuthorizer{denied: map[string]bool{}},
		bus:        newTestBus(),
		tx:         &fakeTx{},
	}
	sessions := NewSessionService(f.sessions, newTestCache(t), f.bus, 0)
	f.service = NewUserService(f.users, f.roles, sessions, f.authorizer, f.bus)
	return f
}

func TestUserService_Create(t *testing.T) {
	t.Parallel()

	t.Run("creates user and queues integration event", func(t *testing.T) {
		f := newUserFixture(t)
		admins := role.New("Administrators", role.WithTenantID(f.tenantID))
		f.roles = newFakeRoleRepo(admins)
		f.service.roleRepo = f.roles
		created := record[user.CreatedEvent](f.bus)
		ctx := testContext(f.tx, f.tenantID)

		change, err := f.service.Create(ctx, CreateUser{
			Email:     " Jane@Example.com ",
			FirstName: "Jane",
			LastName:  "Doe",
			Password:  "s3cure-pass",
			RoleIDs:   []uuid.UUID{admins.ID()},
		})
		require.NoError(t, err)

		assert.Equal(t, "jane@example.com", change.After.Email)
		assert.Equal(t, f.tenantID, change.After.TenantID)
		assert.Equal(t, []uuid.UUID{admins.ID()}, change.After.RoleIDs)
		assert.Equal(t, []string{outbox.TopicUserCreated}, f.tx.outboxTopics())
		assert.Equal(t, []uuid.UUID{f.tenantID}, f.authorizer.invalidated)
		require.Len(t, created.all(), 1)

		stored := f.users.get(uuid.MustParse(change.ID))
		require.NotNil(t, stored)
		assert.True(t, stored.CheckPassword("s3cure-pass"))
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		f := newUserFixture(t)
		ctx := testContext(f.tx, f.tenantID)
		f.users = newFakeUserRepo(newTestUser(t, f.tenantID, "taken@example.com"))
		f.service.repo = f.users

		_, err := f.service.Create(ctx, CreateUser{
			Email: "TAKEN@example.com", FirstName: "A", LastName: "B", Password: "password1",
		})
		require.Error(t, err)
		assert.Equal(t, serrors.Validation, serrors.CodeOf(err))
		assert.Empty(t, f.tx.outboxTopics())
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		f := newUserFixture(t)
		ctx := testContext(f.tx, f.tenantID)

		_, err := f.service.Create(ctx, CreateUser{
			Email: "new@example.com", FirstName: "A", LastName: "B", Password: "password1",
			RoleIDs: []uuid.UUID{uuid.New()},
		})
		var ve *serrors.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "RoleIDs")
	})

	t.Run("requires users.write", func(t *testing.T) {
		f := newUserFixture(t)
		f.authorizer.denied["users.write"] = true
		actor := newTestUser(t, f.tenantID, "actor@example.com")
		ctx := composables.WithUser(testContext(f.tx, f.tenantID), actor)

		_, err := f.service.Create(ctx, CreateUser{
			Email: "new@example.com", FirstName: "A", LastName: "B", Password: "password1",
		})
		assert.Equal(t, serrors.Forbidden, serrors.CodeOf(err))
	})
}

func TestUserService_Delete(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	actor := newTestUser(t, tenantID, "actor@example.com")
	target := newTestUser(t, tenantID, "target@example.com")
	superadmin := newTestUser(t, tenantID, "root@example.com", user.WithType(user.TypeSuperadmin))

	t.Run("cannot delete self", func(t *testing.T) {
		f := newUserFixture(t, actor, target)
		ctx := composables.WithUser(testContext(f.tx, tenantID), actor)

		_, err := f.service.Delete(ctx, DeleteUser{UserID: actor.ID()})
		require.ErrorIs(t, err, ErrCannotModifySelf)
	})

	t.Run("cannot delete superadmin", func(t *testing.T) {
		f := newUserFixture(t, actor, superadmin)
		ctx := composables.WithUser(testContext(f.tx, tenantID), actor)

		_, err := f.service.Delete(ctx, DeleteUser{UserID: superadmin.ID()})
		require.ErrorIs(t, err, ErrCannotDeleteAdmin)
	})

	t.Run("cannot delete last user", func(t *testing.T) {
		f := newUserFixture(t, target)
		ctx := testContext(f.tx, tenantID)

		_, err := f.service.Delete(ctx, DeleteUser{UserID: target.ID()})
		assert.Equal(t, serrors.LastAdmin, serrors.CodeOf(err))
	})

	t.Run("deletes and raises event", func(t *testing.T) {
		f := newUserFixture(t, actor, target)
		deleted := record[user.DeletedEvent](f.bus)
		ctx := composables.WithUser(testContext(f.tx, tenantID), actor)

		change, err := f.service.Delete(ctx, DeleteUser{UserID: target.ID()})
		require.NoError(t, err)
		assert.Equal(t, target.Email(), change.Before.Email)
		assert.Nil(t, f.users.get(target.ID()))
		require.Len(t, deleted.all(), 1)
	})
}

func TestUserService_SetActive_RevokesSessions(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	target := newTestUser(t, tenantID, "target@example.com")
	f := newUserFixture(t, target)
	ctx := testContext(f.tx, tenantID)
	require.NoError(t, f.sessions.Create(ctx, &session.Session{
		Token:     "tok",
		UserID:    target.ID(),
		TenantID:  tenantID,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	change, err := f.service.SetActive(ctx, SetUserActive{UserID: target.ID(), Active: false})
	require.NoError(t, err)
	assert.False(t, change.After.IsActive)
	assert.Zero(t, f.sessions.count())
}

func TestUserService_SetRoles(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	editors := role.New("Editors", role.WithTenantID(tenantID))
	target := newTestUser(t, tenantID, "target@example.com")
	f := newUserFixture(t, target)
	f.roles = newFakeRoleRepo(editors)
	f.service.roleRepo = f.roles
	ctx := testContext(f.tx, tenantID)

	change, err := f.service.SetRoles(ctx, SetUserRoles{UserID: target.ID(), RoleIDs: []uuid.UUID{editors.ID()}})
	require.NoError(t, err)
	assert.Empty(t, change.Before.RoleIDs)
	assert.Equal(t, []uuid.UUID{editors.ID()}, change.After.RoleIDs)
	assert.Equal(t, []uuid.UUID{tenantID}, f.authorizer.invalidated)

	_, err = f.service.SetRoles(ctx, SetUserRoles{UserID: target.ID(), RoleIDs: []uuid.UUID{editors.ID()}})
	require.NoError(t, err)
	assert.Len(t, f.authorizer.invalidated, 1, "unchanged role set must not reload policy")
}

func TestUserService_ChangePassword(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	actor := newTestUser(t, tenantID, "actor@example.com")
	f := newUserFixture(t, actor)
	ctx := composables.WithUser(testContext(f.tx, tenantID), actor)

	_, err := f.service.ChangePassword(ctx, ChangePassword{CurrentPassword: "wrong", NewPassword: "brand-new-pass"})
	require.ErrorIs(t, err, ErrWrongPassword)

	_, err = f.service.ChangePassword(ctx, ChangePassword{CurrentPassword: "correct-horse", NewPassword: "brand-new-pass"})
	require.NoError(t, err)
	assert.True(t, f.users.get(actor.ID()).CheckPassword("brand-new-pass"))
}

func TestUserService_ThroughMediator(t *testing.T) {
	t.Parallel()

	f := newUserFixture(t)
	m := mediator.New(
		mediator.Events(f.bus),
		mediator.Validation(mediator.NewStructValidator()),
		mediator.Transaction(nil),
	)
	f.service.Register(m)
	created := record[user.CreatedEvent](f.bus)
	ctx := testContext(f.tx, f.tenantID)

	_, err := mediator.Send[UserChange](ctx, m, CreateUser{Email: "not-an-email", FirstName: "A", LastName: "B", Password: "short"})
	var ve *serrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "Email")
	assert.Contains(t, ve.Fields, "Password")
	assert.Empty(t, created.all())

	change, err := mediator.Send[UserChange](ctx, m, CreateUser{Email: "ok@example.com", FirstName: "A", LastName: "B", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "ok@example.com", change.After.Email)
	assert.Equal(t, 1, f.tx.commits)
	assert.Len(t, created.all(), 1)
}
