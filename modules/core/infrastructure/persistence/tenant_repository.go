package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/modules/core/infrastructure/persistence/models"
	"github.com/iota-uz/admin-portal/pkg/composables"
)

const (
	tenantFindQuery = `SELECT id, name, domain, is_active, features, created_at, updated_at FROM tenants`

	tenantInsertQuery = `
		INSERT INTO tenants (id, name, domain, is_active, features, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	tenantUpdateQuery = `
		UPDATE tenants
		SET name = $1, domain = $2, is_active = $3, features = $4, updated_at = $5
		WHERE id = $6`
)

type TenantRepository struct{}

func NewTenantRepository() tenant.Repository {
	return &TenantRepository{}
}

func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	tenants, err := r.queryTenants(ctx, tenantFindQuery+" WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, tenant.ErrTenantNotFound
	}
	return tenants[0], nil
}

func (r *TenantRepository) GetByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	tenants, err := r.queryTenants(ctx, tenantFindQuery+" WHERE domain = $1", tenant.NormalizeDomain(domain))
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, tenant.ErrTenantNotFound
	}
	return tenants[0], nil
}

func (r *TenantRepository) List(ctx context.Context) ([]*tenant.Tenant, error) {
	return r.queryTenants(ctx, tenantFindQuery+" ORDER BY name")
}

func (r *TenantRepository) DomainExists(ctx context.Context, domain string, exclude uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM tenants WHERE domain = $1 AND id <> $2)`,
		tenant.NormalizeDomain(domain), exclude,
	).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "failed to check tenant domain")
	}
	return exists, nil
}

func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	m := ToDBTenant(t)
	if _, err := tx.Exec(
		ctx, tenantInsertQuery,
		m.ID, m.Name, m.Domain, m.IsActive, m.Features, m.CreatedAt, m.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "failed to insert tenant")
	}
	return r.GetByID(ctx, m.ID)
}

func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	m := ToDBTenant(t)
	tag, err := tx.Exec(ctx, tenantUpdateQuery, m.Name, m.Domain, m.IsActive, m.Features, m.UpdatedAt, m.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update tenant")
	}
	if tag.RowsAffected() == 0 {
		return nil, tenant.ErrTenantNotFound
	}
	return r.GetByID(ctx, m.ID)
}

func (r *TenantRepository) queryTenants(ctx context.Context, query string, args ...any) ([]*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.Domain,
			&t.IsActive,
			&t.Features,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan tenant row")
		}
		tenants = append(tenants, ToDomainTenant(&t))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return tenants, nil
}
