package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/modules/logging/domain/entities/auditlog"
	"github.com/iota-uz/admin-portal/modules/logging/domain/entities/authenticationlog"
	"github.com/iota-uz/admin-portal/pkg/composables"
)

type fakeTx struct {
	pgx.Tx
	committed  int
	rolledBack int
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) { return f, nil }

func (f *fakeTx) Commit(context.Context) error {
	f.committed++
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack++
	return nil
}

type fakeAuthRepo struct {
	created []*authenticationlog.AuthenticationLog
	before  time.Time
	deleted int64
}

func (r *fakeAuthRepo) Create(_ context.Context, log *authenticationlog.AuthenticationLog) error {
	r.created = append(r.created, log)
	return nil
}

func (r *fakeAuthRepo) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.before = before
	return r.deleted, nil
}

type fakeAuditRepo struct {
	before  time.Time
	deleted int64
	err     error
}

func (r *fakeAuditRepo) Create(context.Context, *auditlog.AuditLog) error { return nil }

func (r *fakeAuditRepo) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.before = before
	return r.deleted, r.err
}

func TestLogsService_RecordSignIn(t *testing.T) {
	authRepo := &fakeAuthRepo{}
	svc := NewLogsService(authRepo, &fakeAuditRepo{})

	userID, tenantID := uuid.New(), uuid.New()
	now := time.Now()
	err := svc.RecordSignIn(context.Background(), &session.CreatedEvent{
		Result: session.Session{UserID: userID, TenantID: tenantID, IP: "10.0.0.1", UserAgent: "agent", CreatedAt: now},
		Method: "app",
	})
	require.NoError(t, err)

	require.Len(t, authRepo.created, 1)
	got := authRepo.created[0]
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, tenantID, got.TenantID)
	require.NotNil(t, got.UserID)
	assert.Equal(t, userID, *got.UserID)
	assert.Equal(t, "app", got.Method)
	assert.True(t, got.Succeeded)
	assert.Equal(t, "10.0.0.1", got.IP)
	assert.Equal(t, now, got.CreatedAt)
}

func TestLogsService_RecordFailure(t *testing.T) {
	authRepo := &fakeAuthRepo{}
	svc := NewLogsService(authRepo, &fakeAuditRepo{})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	snap := user.Snapshot{ID: uuid.New(), TenantID: uuid.New(), Email: "ann@acme.test"}
	err := svc.RecordFailure(context.Background(), &user.SignInFailedEvent{Snapshot: snap, Method: "password", IP: "10.0.0.2"})
	require.NoError(t, err)

	require.Len(t, authRepo.created, 1)
	got := authRepo.created[0]
	assert.False(t, got.Succeeded)
	assert.Equal(t, "ann@acme.test", got.Email)
	assert.Equal(t, snap.TenantID, got.TenantID)
	assert.Equal(t, fixed, got.CreatedAt)
}

func TestLogsService_Purge(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("deletes both tables", func(t *testing.T) {
		authRepo := &fakeAuthRepo{deleted: 2}
		auditRepo := &fakeAuditRepo{deleted: 3}
		svc := NewLogsService(authRepo, auditRepo)
		svc.now = func() time.Time { return fixed }
		tx := &fakeTx{}

		n, err := svc.Purge(composables.WithTx(context.Background(), tx), 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
		assert.Equal(t, fixed.Add(-24*time.Hour), authRepo.before)
		assert.Equal(t, fixed.Add(-24*time.Hour), auditRepo.before)
		assert.Equal(t, 1, tx.committed)
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		svc := NewLogsService(&fakeAuthRepo{}, &fakeAuditRepo{err: errors.New("boom")})
		tx := &fakeTx{}

		_, err := svc.Purge(composables.WithTx(context.Background(), tx), time.Hour)
		require.Error(t, err)
		assert.Equal(t, 1, tx.rolledBack)
		assert.Zero(t, tx.committed)
	})

	t.Run("zero retention keeps everything", func(t *testing.T) {
		authRepo := &fakeAuthRepo{deleted: 2}
		svc := NewLogsService(authRepo, &fakeAuditRepo{})

		n, err := svc.Purge(context.Background(), 0)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.True(t, authRepo.before.IsZero())
	})
}
