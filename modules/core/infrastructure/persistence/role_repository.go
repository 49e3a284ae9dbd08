package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/infrastructure/persistence/models"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/repo"
)

const (
	roleFindQuery          = `SELECT r.id, r.tenant_id, r.name, r.description, r.created_at, r.updated_at FROM roles r`
	roleResourcesQuery     = `SELECT role_id, resource FROM role_resources WHERE role_id = ANY($1) ORDER BY resource`
	roleInsertQuery        = `INSERT INTO roles (id, tenant_id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
	roleUpdateQuery        = `UPDATE roles SET name = $1, description = $2, updated_at = $3 WHERE tenant_id = $4 AND id = $5`
	roleResourceDelete     = `DELETE FROM role_resources WHERE role_id = $1`
	roleResourceInsert     = `INSERT INTO role_resources (role_id, resource) VALUES ($1, $2)`
	roleDeleteQuery        = `DELETE FROM roles WHERE tenant_id = $1 AND id = $2`
	roleNameExistsQuery    = `SELECT EXISTS(SELECT 1 FROM roles WHERE tenant_id = $1 AND lower(name) = lower($2) AND id <> $3)`
	rolePolicyGrantsQuery  = `SELECT rr.role_id, rr.resource FROM role_resources rr JOIN roles r ON r.id = rr.role_id WHERE r.tenant_id = $1`
	rolePolicyMembersQuery = `SELECT ur.user_id, ur.role_id FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE r.tenant_id = $1`
)

type RoleRepository struct{}

func NewRoleRepository() role.Repository {
	return &RoleRepository{}
}

func (r *RoleRepository) GetByID(ctx context.Context, id uuid.UUID) (role.Role, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	roles, err := r.queryRoles(ctx, roleFindQuery+" WHERE r.tenant_id = $1 AND r.id = $2", tenantID, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get role by id")
	}
	if len(roles) == 0 {
		return nil, role.ErrRoleNotFound
	}
	return roles[0], nil
}

func (r *RoleRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]role.Role, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryRoles(ctx, roleFindQuery+" WHERE r.tenant_id = $1 AND r.id = ANY($2) ORDER BY r.name", tenantID, ids)
}

func (r *RoleRepository) GetAll(ctx context.Context) ([]role.Role, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return r.queryRoles(ctx, roleFindQuery+" WHERE r.tenant_id = $1 ORDER BY r.name", tenantID)
}

func (r *RoleRepository) NameExists(ctx context.Context, name string, exclude uuid.UUID) (bool, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, roleNameExistsQuery, tenantID, name, exclude).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "failed to check role name")
	}
	return exists, nil
}

func (r *RoleRepository) Create(ctx context.Context, data role.Role) (role.Role, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	m := ToDBRole(data)
	if _, err := tx.Exec(ctx, roleInsertQuery, m.ID, m.TenantID, m.Name, m.Description, m.CreatedAt, m.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to insert role")
	}
	if err := r.saveResources(ctx, tx, data); err != nil {
		return nil, err
	}
	return r.GetByID(composables.WithTenantID(ctx, m.TenantID), m.ID)
}

func (r *RoleRepository) Update(ctx context.Context, data role.Role) (role.Role, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	m := ToDBRole(data)
	tag, err := tx.Exec(ctx, roleUpdateQuery, m.Name, m.Description, m.UpdatedAt, m.TenantID, m.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update role")
	}
	if tag.RowsAffected() == 0 {
		return nil, role.ErrRoleNotFound
	}
	if _, err := tx.Exec(ctx, roleResourceDelete, m.ID); err != nil {
		return nil, errors.Wrap(err, "failed to clear role resources")
	}
	if err := r.saveResources(ctx, tx, data); err != nil {
		return nil, err
	}
	return r.GetByID(composables.WithTenantID(ctx, m.TenantID), m.ID)
}

func (r *RoleRepository) saveResources(ctx context.Context, tx repo.Tx, data role.Role) error {
	for _, res := range data.Resources() {
		if _, err := tx.Exec(ctx, roleResourceInsert, data.ID(), string(res)); err != nil {
			return errors.Wrap(err, "failed to insert role resource")
		}
	}
	return nil
}

func (r *RoleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, roleDeleteQuery, tenantID, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete role")
	}
	if tag.RowsAffected() == 0 {
		return role.ErrRoleNotFound
	}
	return nil
}

func (r *RoleRepository) queryRoles(ctx context.Context, query string, args ...any) ([]role.Role, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var dbRoles []*models.Role
	for rows.Next() {
		var m models.Role
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Name, &m.Description, &m.CreatedAt, &m.UpdatedAt); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan role")
		}
		dbRoles = append(dbRoles, &m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dbRoles) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(dbRoles))
	for i, m := range dbRoles {
		ids[i] = m.ID
	}
	resRows, err := tx.Query(ctx, roleResourcesQuery, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query role resources")
	}
	defer resRows.Close()
	resources := make(map[uuid.UUID][]string)
	for resRows.Next() {
		var roleID uuid.UUID
		var res string
		if err := resRows.Scan(&roleID, &res); err != nil {
			return nil, errors.Wrap(err, "failed to scan role resource")
		}
		resources[roleID] = append(resources[roleID], res)
	}
	if err := resRows.Err(); err != nil {
		return nil, err
	}

	roles := make([]role.Role, 0, len(dbRoles))
	for _, m := range dbRoles {
		roles = append(roles, ToDomainRole(m, resources[m.ID]))
	}
	return roles, nil
}
