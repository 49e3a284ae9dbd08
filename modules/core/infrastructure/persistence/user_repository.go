package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/infrastructure/persistence/models"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/repo"
)

const (
	userFindQuery = `
		SELECT u.id, u.tenant_id, u.type, u.email, u.first_name, u.last_name, u.password,
		       u.ui_language, u.is_active, u.failed_attempts, u.locked_until,
		       u.authenticator_secret, u.authenticator_enrolled_at, u.last_login, u.last_ip,
		       u.created_at, u.updated_at
		FROM users u`

	userInsertQuery = `
		INSERT INTO users (
			id, tenant_id, type, email, first_name, last_name, password, ui_language, is_active,
			failed_attempts, locked_until, authenticator_secret, authenticator_enrolled_at,
			last_login, last_ip, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	userUpdateQuery = `
		UPDATE users
		SET email = $1, first_name = $2, last_name = $3, password = $4, ui_language = $5,
		    is_active = $6, failed_attempts = $7, locked_until = $8, authenticator_secret = $9,
		    authenticator_enrolled_at = $10, last_login = $11, last_ip = $12, updated_at = $13
		WHERE tenant_id = $14 AND id = $15`

	userRolesQuery       = `SELECT user_id, role_id FROM user_roles WHERE user_id = ANY($1)`
	userRoleDeleteQuery  = `DELETE FROM user_roles WHERE user_id = $1`
	userRoleInsertQuery  = `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	userDevicesQuery     = `SELECT id, user_id, name, credential_id, credential, sign_count, created_at, last_used_at FROM authenticator_devices WHERE user_id = ANY($1) ORDER BY created_at`
	userDevicePruneQuery = `DELETE FROM authenticator_devices WHERE user_id = $1 AND NOT (id = ANY($2))`
	userDeviceUpsert     = `
		INSERT INTO authenticator_devices (id, user_id, name, credential_id, credential, sign_count, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, credential = EXCLUDED.credential,
		    sign_count = EXCLUDED.sign_count, last_used_at = EXCLUDED.last_used_at`
)

type UserRepository struct{}

func NewUserRepository() user.Repository {
	return &UserRepository{}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	users, err := r.queryUsers(ctx, userFindQuery+" WHERE u.tenant_id = $1 AND u.id = $2", tenantID, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user by id")
	}
	if len(users) == 0 {
		return nil, user.ErrUserNotFound
	}
	return users[0], nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	users, err := r.queryUsers(ctx, userFindQuery+" WHERE u.tenant_id = $1 AND u.email = lower($2)", tenantID, email)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user by email")
	}
	if len(users) == 0 {
		return nil, user.ErrUserNotFound
	}
	return users[0], nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string, exclude uuid.UUID) (bool, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = tx.QueryRow(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE tenant_id = $1 AND email = lower($2) AND id <> $3)`,
		tenantID, email, exclude,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check user email")
	}
	return exists, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id = $1`, tenantID)
}

func (r *UserRepository) CountByRole(ctx context.Context, roleID uuid.UUID) (int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	return r.count(
		ctx,
		`SELECT COUNT(*) FROM user_roles ur JOIN users u ON u.id = ur.user_id WHERE u.tenant_id = $1 AND ur.role_id = $2`,
		tenantID, roleID,
	)
}

func (r *UserRepository) count(ctx context.Context, query string, args ...any) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count users")
	}
	return count, nil
}

func (r *UserRepository) Create(ctx context.Context, data user.User) (user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	m := ToDBUser(data)
	if _, err := tx.Exec(
		ctx, userInsertQuery,
		m.ID, m.TenantID, m.Type, m.Email, m.FirstName, m.LastName, m.Password, m.UILanguage, m.IsActive,
		m.FailedAttempts, m.LockedUntil, m.AuthenticatorSecret, m.AuthenticatorEnrolledAt,
		m.LastLogin, m.LastIP, m.CreatedAt, m.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "failed to insert user")
	}
	if err := r.saveChildren(ctx, tx, data); err != nil {
		return nil, err
	}
	return r.GetByID(composables.WithTenantID(ctx, m.TenantID), m.ID)
}

func (r *UserRepository) Update(ctx context.Context, data user.User) (user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	m := ToDBUser(data)
	tag, err := tx.Exec(
		ctx, userUpdateQuery,
		m.Email, m.FirstName, m.LastName, m.Password, m.UILanguage,
		m.IsActive, m.FailedAttempts, m.LockedUntil, m.AuthenticatorSecret,
		m.AuthenticatorEnrolledAt, m.LastLogin, m.LastIP, m.UpdatedAt,
		m.TenantID, m.ID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update user")
	}
	if tag.RowsAffected() == 0 {
		return nil, user.ErrUserNotFound
	}
	if _, err := tx.Exec(ctx, userRoleDeleteQuery, m.ID); err != nil {
		return nil, errors.Wrap(err, "failed to clear user roles")
	}
	deviceIDs := make([]uuid.UUID, 0)
	for _, d := range data.Devices() {
		deviceIDs = append(deviceIDs, d.ID)
	}
	if _, err := tx.Exec(ctx, userDevicePruneQuery, m.ID, deviceIDs); err != nil {
		return nil, errors.Wrap(err, "failed to prune devices")
	}
	if err := r.saveChildren(ctx, tx, data); err != nil {
		return nil, err
	}
	return r.GetByID(composables.WithTenantID(ctx, m.TenantID), m.ID)
}

func (r *UserRepository) saveChildren(ctx context.Context, tx repo.Tx, data user.User) error {
	for _, roleID := range data.RoleIDs() {
		if _, err := tx.Exec(ctx, userRoleInsertQuery, data.ID(), roleID); err != nil {
			return errors.Wrap(err, "failed to insert user role")
		}
	}
	for _, d := range data.Devices() {
		m := ToDBDevice(data.ID(), d)
		if _, err := tx.Exec(
			ctx, userDeviceUpsert,
			m.ID, m.UserID, m.Name, m.CredentialID, m.Credential, m.SignCount, m.CreatedAt, m.LastUsedAt,
		); err != nil {
			return errors.Wrap(err, "failed to save device")
		}
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete user")
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var dbUsers []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(
			&u.ID,
			&u.TenantID,
			&u.Type,
			&u.Email,
			&u.FirstName,
			&u.LastName,
			&u.Password,
			&u.UILanguage,
			&u.IsActive,
			&u.FailedAttempts,
			&u.LockedUntil,
			&u.AuthenticatorSecret,
			&u.AuthenticatorEnrolledAt,
			&u.LastLogin,
			&u.LastIP,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan user")
		}
		dbUsers = append(dbUsers, &u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dbUsers) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(dbUsers))
	for i, u := range dbUsers {
		ids[i] = u.ID
	}
	roleIDs, err := r.loadRoleIDs(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	devices, err := r.loadDevices(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	users := make([]user.User, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, ToDomainUser(u, roleIDs[u.ID], devices[u.ID]))
	}
	return users, nil
}

func (r *UserRepository) loadRoleIDs(ctx context.Context, tx repo.Tx, userIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	rows, err := tx.Query(ctx, userRolesQuery, userIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query user roles")
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var userID, roleID uuid.UUID
		if err := rows.Scan(&userID, &roleID); err != nil {
			return nil, errors.Wrap(err, "failed to scan user role")
		}
		out[userID] = append(out[userID], roleID)
	}
	return out, rows.Err()
}

func (r *UserRepository) loadDevices(ctx context.Context, tx repo.Tx, userIDs []uuid.UUID) (map[uuid.UUID][]user.Device, error) {
	rows, err := tx.Query(ctx, userDevicesQuery, userIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query devices")
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]user.Device)
	for rows.Next() {
		var d models.AuthenticatorDevice
		if err := rows.Scan(
			&d.ID,
			&d.UserID,
			&d.Name,
			&d.CredentialID,
			&d.Credential,
			&d.SignCount,
			&d.CreatedAt,
			&d.LastUsedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan device")
		}
		out[d.UserID] = append(out[d.UserID], ToDomainDevice(&d))
	}
	return out, rows.Err()
}
