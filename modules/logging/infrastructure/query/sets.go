package query

import (
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	corequery "github.com/iota-uz/admin-portal/modules/core/infrastructure/query"
	"github.com/iota-uz/admin-portal/pkg/odata"
)

const actor = "coalesce(u.first_name || ' ' || u.last_name, '')"

// AuditLogsSet lists command outcomes recorded in the caller's tenant.
func AuditLogsSet() *odata.EntitySet {
	return &odata.EntitySet{
		Name: "auditlogs",
		From: "audit_logs a LEFT JOIN users u ON u.id = a.user_id",
		Fields: []odata.Field{
			{Name: "id", Column: "a.id", Type: odata.UUID},
			{Name: "userId", Column: "a.user_id", Type: odata.UUID, Hidden: true},
			{Name: "user", Column: actor, ExportName: "User"},
			{Name: "request", Column: "a.request", ExportName: "Action"},
			{Name: "entityId", Column: "coalesce(a.entity_id, '')", ExportName: "Entity"},
			{Name: "succeeded", Column: "a.succeeded", Type: odata.Bool, ExportName: "Succeeded"},
			{Name: "errorCode", Column: "coalesce(a.error_code, '')", ExportName: "Error"},
			{Name: "changes", Column: "coalesce(a.changes::text, '')", NoFilter: true, NoSort: true, ExportName: "Changes"},
			{Name: "ip", Column: "coalesce(a.ip, '')", ExportName: "IP"},
			{Name: "createdAt", Column: "a.created_at", Type: odata.Timestamp, ExportName: "Time"},
		},
		Scope:        corequery.TenantScope("a.tenant_id"),
		DefaultOrder: "a.created_at DESC, a.id",
		Resource:     string(role.ResourceAuditRead),
		Feature:      string(tenant.FeatureAudit),
	}
}

// AuthLogsSet lists successful and failed sign-ins in the caller's tenant.
func AuthLogsSet() *odata.EntitySet {
	return &odata.EntitySet{
		Name: "authlogs",
		From: "authentication_logs l LEFT JOIN users u ON u.id = l.user_id",
		Fields: []odata.Field{
			{Name: "id", Column: "l.id", Type: odata.UUID},
			{Name: "userId", Column: "l.user_id", Type: odata.UUID, Hidden: true},
			{Name: "user", Column: actor, ExportName: "User"},
			{Name: "email", Column: "coalesce(nullif(l.email, ''), u.email, '')", ExportName: "Email"},
			{Name: "method", Column: "l.method", ExportName: "Method"},
			{Name: "succeeded", Column: "l.succeeded", Type: odata.Bool, ExportName: "Succeeded"},
			{Name: "ip", Column: "l.ip", ExportName: "IP"},
			{Name: "userAgent", Column: "l.user_agent", NoSort: true, ExportName: "User agent"},
			{Name: "createdAt", Column: "l.created_at", Type: odata.Timestamp, ExportName: "Time"},
		},
		Scope:        corequery.TenantScope("l.tenant_id"),
		DefaultOrder: "l.created_at DESC, l.id",
		Resource:     string(role.ResourceAuditRead),
		Feature:      string(tenant.FeatureAudit),
	}
}
