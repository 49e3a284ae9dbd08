package query

import (
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	corequery "github.com/iota-uz/admin-portal/modules/core/infrastructure/query"
	"github.com/iota-uz/admin-portal/pkg/odata"
)

// NotificationsSet lists every notification sent in the tenant with
// delivery counters.
func NotificationsSet() *odata.EntitySet {
	return &odata.EntitySet{
		Name: "notifications",
		From: "notifications n LEFT JOIN users cu ON cu.id = n.created_by",
		Fields: []odata.Field{
			{Name: "id", Column: "n.id", Type: odata.UUID},
			{Name: "subject", Column: "n.subject", ExportName: "Subject"},
			{Name: "body", Column: "n.body", NoSort: true, ExportName: "Body"},
			{Name: "kind", Column: "n.kind", ExportName: "Kind"},
			{Name: "createdBy", Column: "coalesce(cu.first_name || ' ' || cu.last_name, '')", ExportName: "Sender"},
			{
				Name:       "recipients",
				Column:     "(SELECT count(*) FROM user_notifications un WHERE un.notification_id = n.id)",
				Type:       odata.Int,
				ExportName: "Recipients",
			},
			{
				Name:       "read",
				Column:     "(SELECT count(*) FROM user_notifications un WHERE un.notification_id = n.id AND un.read_at IS NOT NULL)",
				Type:       odata.Int,
				ExportName: "Read",
			},
			{Name: "createdAt", Column: "n.created_at", Type: odata.Timestamp, ExportName: "Created"},
		},
		Scope:        corequery.TenantScope("n.tenant_id"),
		DefaultOrder: "n.created_at DESC, n.id",
		Resource:     string(role.ResourceNotificationsRead),
		Feature:      string(tenant.FeatureNotifications),
	}
}
