package persistence_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/modules/core/infrastructure/persistence"
	"github.com/iota-uz/admin-portal/pkg/composables"
)

func txContext(tenantID uuid.UUID, tx *stubTx) context.Context {
	return composables.WithTx(composables.WithTenantID(context.Background(), tenantID), tx)
}

func userRow(id, tenantID uuid.UUID, email string, now time.Time) []any {
	return []any{
		id, tenantID, "user", email, "Jane", "Doe",
		sql.NullString{String: "hash", Valid: true},
		"ru", true, 2, sql.NullTime{},
		sql.NullString{}, sql.NullTime{},
		sql.NullTime{Time: now, Valid: true}, sql.NullString{String: "10.0.0.1", Valid: true},
		now, now,
	}
}

func TestTenantRepository_GetByDomain_NormalizesAndMapsFeatures(t *testing.T) {
	id := uuid.New()
	now := time.Now()
	tx := &stubTx{
		queryFunc: func(ctx context.Context, q string, args ...any) (pgx.Rows, error) {
			require.Contains(t, q, "FROM tenants WHERE domain = $1")
			require.Equal(t, "acme.test", args[0])
			return &stubRows{data: [][]any{
				{id, "Acme", "acme.test", true, []string{"audit", "export"}, now, now},
			}}, nil
		},
	}

	got, err := persistence.NewTenantRepository().GetByDomain(composables.WithTx(context.Background(), tx), "ACME.test:443")
	require.NoError(t, err)
	require.Equal(t, id, got.ID())
	require.True(t, got.HasFeature(tenant.FeatureAudit))
	require.False(t, got.HasFeature(tenant.FeatureAlerts))
}

func TestTenantRepository_GetByID_NotFound(t *testing.T) {
	tx := &stubTx{
		queryFunc: func(ctx context.Context, q string, args ...any) (pgx.Rows, error) {
			return &stubRows{}, nil
		},
	}
	_, err := persistence.NewTenantRepository().GetByID(composables.WithTx(context.Background(), tx), uuid.New())
	require.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestUserRepository_GetByID_LoadsRolesAndDevices(t *testing.T) {
	tenantID, userID, roleID, deviceID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	tx := &stubTx{
		queryFunc: func(ctx context.Context, q string, args ...any) (pgx.Rows, error) {
			switch {
			case strings.Contains(q, "FROM users u"):
				require.Equal(t, tenantID, args[0])
				require.Equal(t, userID, args[1])
				return &stubRows{data: [][]any{userRow(userID, tenantID, "jane@acme.test", now)}}, nil
			case strings.Contains(q, "FROM user_roles"):
				require.Equal(t, []uuid.UUID{userID}, args[0])
				return &stubRows{data: [][]any{{userID, roleID}}}, nil
			case strings.Contains(q, "FROM authenticator_devices"):
				return &stubRows{data: [][]any{
					{deviceID, userID, "YubiKey", []byte{1, 2}, []byte(`{}`), int64(4), now, sql.NullTime{}},
				}}, nil
			}
			t.Fatalf("unexpected query %s", q)
			return nil, nil
		},
	}

	u, err := persistence.NewUserRepository().GetByID(txContext(tenantID, tx), userID)
	require.NoError(t, err)
	require.Equal(t, "jane@acme.test", u.Email())
	require.Equal(t, user.UILanguageRU, u.UILanguage())
	require.Equal(t, 2, u.FailedAttempts())
	require.Equal(t, "10.0.0.1", u.LastIP())
	require.Equal(t, []uuid.UUID{roleID}, u.RoleIDs())
	require.Len(t, u.Devices(), 1)
	require.Equal(t, uint32(4), u.Devices()[0].SignCount)
	require.False(t, u.HasAuthenticatorApp())
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	tx := &stubTx{
		queryFunc: func(ctx context.Context, q string, args ...any) (pgx.Rows, error) {
			require.Equal(t, "nobody@acme.test", args[1])
			return &stubRows{}, nil
		},
	}
	_, err := persistence.NewUserRepository().GetByEmail(txContext(uuid.New(), tx), "nobody@acme.test")
	require.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestUserRepository_RequiresTenant(t *testing.T) {
	_, err := persistence.NewUserRepository().GetByID(composables.WithTx(context.Background(), &stubTx{}), uuid.New())
	require.ErrorIs(t, err, composables.ErrNoTenantID)
}

func TestUserRepository_Update_ReconcilesChildren(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()
	roleA, roleB := uuid.New(), uuid.New()
	device := user.NewDevice("Key", []byte{9}, []byte(`{}`), 1)
	u := user.New("jane@acme.test", "Jane", "Doe",
		user.WithTenantID(tenantID),
		user.WithRoleIDs([]uuid.UUID{roleA, roleB}),
		user.WithDevices([]user.Device{device}),
	)

	tx := &stubTx{
		queryFunc: func(ctx context.Context, q string, args ...any) (pgx.Rows, error) {
			if strings.Contains(q, "FROM users u") {
				return &stubRows{data: [][]any{userRow(u.ID(), tenantID, u.Email(), now)}}, nil
			}
			return &stubRows{}, nil
		},
	}

	_, err := persistence.NewUserRepository().Update(txContext(tenantID, tx), u)
	require.NoError(t, err)

	update := tx.execsMatching("UPDATE users")
	require.Len(t, update, 1)
	require.Equal(t, tenantID, update[0].args[13])
	require.Len(t, tx.execsMatching("DELETE FROM user_roles"), 1)
	require.Len(t, tx.execsMatching("INSERT INTO user_roles"), 2)
	prune := tx.execsMatching("DELETE FROM authenticator_devices")
	require.Len(t, prune, 1)
	require.Equal(t, []uuid.UUID{device.ID}, prune[0].args[1])
	require.Len(t, tx.execsMatching("INSERT INTO authenticator_devices"), 1)
}

func TestUserRepository_Delete_NotFound(t *testing.T) {
	tx := &stubTx{execTag: "DELETE 0"}
	err := persistence.NewUserRepository().Delete(txContext(uuid.New(), tx), uuid.New())
	require.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestRoleRepository_GetAll_MapsResources(t *testing.T) {
	tenantID, roleID := uuid.New(), uuid.New()
	now := time.Now()
	tx := &stubTx{
		queryFunc: func(ctx context.Context, q string, args ...any) (pgx.Rows, error) {
			if strings.Contains(q, "FROM roles r") {
				require.Equal(t, tenantID, args[0])
				return &stubRows{data: [][]any{
					{roleID, tenantID, "Editors", sql.NullString{String: "edit things", Valid: true}, now, now},
				}}, nil
			}
			require.Contains(t, q, "FROM role_resources")
			return &stubRows{data: [][]any{{roleID, "users.read"}, {roleID, "users.write"}}}, nil
		},
	}

	roles, err := persistence.NewRoleRepository().GetAll(txContext(tenantID, tx))
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Equal(t, "edit things", roles[0].Description())
	require.Equal(t, []role.Resource{role.ResourceUsersRead, role.ResourceUsersWrite}, roles[0].Resources())
}

func TestPolicySource_GroupsGrantsByRole(t *testing.T) {
	tenantID, roleA, roleB, userID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	tx := &stubTx{
		queryFunc: func(ctx context.Context, q string, args ...any) (pgx.Rows, error) {
			require.Equal(t, tenantID, args[0])
			if strings.Contains(q, "FROM role_resources") {
				return &stubRows{data: [][]any{
					{roleA, "users.read"}, {roleB, "audit.read"}, {roleA, "users.write"},
				}}, nil
			}
			return &stubRows{data: [][]any{{userID, roleA}}}, nil
		},
	}

	grants, members, err := persistence.NewPolicySource().TenantPolicy(composables.WithTx(context.Background(), tx), tenantID)
	require.NoError(t, err)
	require.Len(t, grants, 2)
	require.Equal(t, roleA, grants[0].RoleID)
	require.Equal(t, []string{"users.read", "users.write"}, grants[0].Resources)
	require.Len(t, members, 1)
	require.Equal(t, userID, members[0].UserID)
}

func TestSessionRepository_GetByToken(t *testing.T) {
	userID, tenantID := uuid.New(), uuid.New()
	exp := time.Now().Add(time.Hour)
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, q string, args ...any) pgx.Row {
			if args[0] == "missing" {
				return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
			}
			return valuesRow("tok", userID, tenantID, "1.2.3.4", "ua", exp, exp.Add(-time.Hour))
		},
	}
	ctx := composables.WithTx(context.Background(), tx)
	repo := persistence.NewSessionRepository()

	s, err := repo.GetByToken(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, userID, s.UserID)
	require.False(t, s.IsExpired())

	_, err = repo.GetByToken(ctx, "missing")
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}
