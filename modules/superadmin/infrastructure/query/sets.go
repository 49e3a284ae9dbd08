// Package query declares the global entity sets served to superadmins.
package query

import (
	"github.com/iota-uz/admin-portal/pkg/odata"
)

func TenantsSet() *odata.EntitySet {
	return &odata.EntitySet{
		Name: "tenants",
		From: "tenants t",
		Fields: []odata.Field{
			{Name: "id", Column: "t.id", Type: odata.UUID},
			{Name: "name", Column: "t.name", ExportName: "Name"},
			{Name: "domain", Column: "t.domain", ExportName: "Domain"},
			{Name: "isActive", Column: "t.is_active", Type: odata.Bool, ExportName: "Active"},
			{Name: "features", Column: "array_to_string(t.features, ', ')", NoSort: true, ExportName: "Features"},
			{
				Name:       "userCount",
				Column:     "(SELECT count(*) FROM users u WHERE u.tenant_id = t.id)",
				Type:       odata.Int,
				ExportName: "Users",
			},
			{
				Name:       "lastLogin",
				Column:     "(SELECT max(u.last_login) FROM users u WHERE u.tenant_id = t.id)",
				Type:       odata.Timestamp,
				ExportName: "Last login",
			},
			{Name: "createdAt", Column: "t.created_at", Type: odata.Timestamp, ExportName: "Created"},
			{Name: "updatedAt", Column: "t.updated_at", Type: odata.Timestamp, ExportName: "Updated"},
		},
		DefaultOrder: "t.created_at DESC, t.id",
		Superadmin:   true,
	}
}

func AlertsSet() *odata.EntitySet {
	return &odata.EntitySet{
		Name: "alerts",
		From: "system_alerts a",
		Fields: []odata.Field{
			{Name: "id", Column: "a.id", Type: odata.UUID},
			{Name: "message", Column: "a.message", ExportName: "Message"},
			{Name: "severity", Column: "a.severity", ExportName: "Severity"},
			{Name: "activeFrom", Column: "a.active_from", Type: odata.Timestamp, ExportName: "Active from"},
			{Name: "activeTo", Column: "a.active_to", Type: odata.Timestamp, ExportName: "Active to"},
			{
				Name:       "isActive",
				Column:     "(a.active_from <= now() AND (a.active_to IS NULL OR a.active_to > now()))",
				Type:       odata.Bool,
				ExportName: "Active",
			},
			{Name: "createdAt", Column: "a.created_at", Type: odata.Timestamp, ExportName: "Created"},
		},
		DefaultOrder: "a.active_from DESC, a.id",
		Superadmin:   true,
	}
}
