// Package query declares the read-side entity sets of the core module.
package query

import (
	"context"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/odata"
)

// TenantScope restricts a set to the tenant in ctx through column.
func TenantScope(column string) odata.Scope {
	return func(ctx context.Context) ([]string, []any, error) {
		tenantID, err := composables.UseTenantID(ctx)
		if err != nil {
			return nil, nil, err
		}
		return []string{column + " = $1"}, []any{tenantID}, nil
	}
}

func UsersSet() *odata.EntitySet {
	return &odata.EntitySet{
		Name: "users",
		From: "users u",
		Fields: []odata.Field{
			{Name: "id", Column: "u.id", Type: odata.UUID},
			{Name: "email", Column: "u.email", ExportName: "Email"},
			{Name: "firstName", Column: "u.first_name", ExportName: "First name"},
			{Name: "lastName", Column: "u.last_name", ExportName: "Last name"},
			{Name: "type", Column: "u.type", ExportName: "Type"},
			{Name: "uiLanguage", Column: "u.ui_language", ExportName: "Language"},
			{Name: "isActive", Column: "u.is_active", Type: odata.Bool, ExportName: "Active"},
			{Name: "isLocked", Column: "(u.locked_until IS NOT NULL AND u.locked_until > now())", Type: odata.Bool, ExportName: "Locked"},
			{Name: "failedAttempts", Column: "u.failed_attempts", Type: odata.Int, ExportName: "Failed attempts"},
			{Name: "hasAuthenticatorApp", Column: "(u.authenticator_enrolled_at IS NOT NULL)", Type: odata.Bool, ExportName: "Authenticator app"},
			{
				Name:       "deviceCount",
				Column:     "(SELECT count(*) FROM authenticator_devices d WHERE d.user_id = u.id)",
				Type:       odata.Int,
				ExportName: "Security keys",
			},
			{
				Name:       "roles",
				Column:     "(SELECT coalesce(string_agg(r.name, ', ' ORDER BY r.name), '') FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = u.id)",
				NoSort:     true,
				ExportName: "Roles",
			},
			{Name: "lastLogin", Column: "u.last_login", Type: odata.Timestamp, ExportName: "Last login"},
			{Name: "lastIp", Column: "u.last_ip", ExportName: "Last IP"},
			{Name: "createdAt", Column: "u.created_at", Type: odata.Timestamp, ExportName: "Created"},
			{Name: "updatedAt", Column: "u.updated_at", Type: odata.Timestamp, ExportName: "Updated"},
		},
		Scope:        TenantScope("u.tenant_id"),
		DefaultOrder: "u.created_at DESC, u.id",
		Resource:     string(role.ResourceUsersRead),
	}
}

func RolesSet() *odata.EntitySet {
	return &odata.EntitySet{
		Name: "roles",
		From: "roles r",
		Fields: []odata.Field{
			{Name: "id", Column: "r.id", Type: odata.UUID},
			{Name: "name", Column: "r.name", ExportName: "Name"},
			{Name: "description", Column: "r.description", ExportName: "Description"},
			{
				Name:       "resources",
				Column:     "(SELECT coalesce(string_agg(rr.resource, ', ' ORDER BY rr.resource), '') FROM role_resources rr WHERE rr.role_id = r.id)",
				NoSort:     true,
				ExportName: "Resources",
			},
			{
				Name:       "userCount",
				Column:     "(SELECT count(*) FROM user_roles ur WHERE ur.role_id = r.id)",
				Type:       odata.Int,
				ExportName: "Users",
			},
			{Name: "createdAt", Column: "r.created_at", Type: odata.Timestamp, ExportName: "Created"},
			{Name: "updatedAt", Column: "r.updated_at", Type: odata.Timestamp, ExportName: "Updated"},
		},
		Scope:        TenantScope("r.tenant_id"),
		DefaultOrder: "r.name",
		Resource:     string(role.ResourceRolesRead),
	}
}
