package role

import "slices"

// Resource is a permission granted to a role, "<object>.<action>".
type Resource string

const (
	ResourceUsersRead          Resource = "users.read"
	ResourceUsersWrite         Resource = "users.write"
	ResourceRolesRead          Resource = "roles.read"
	ResourceRolesWrite         Resource = "roles.write"
	ResourceTenantRead         Resource = "tenant.read"
	ResourceTenantWrite        Resource = "tenant.write"
	ResourceNotificationsRead  Resource = "notifications.read"
	ResourceNotificationsWrite Resource = "notifications.write"
	ResourceAuditRead          Resource = "audit.read"
)

var AllResources = []Resource{
	ResourceUsersRead,
	ResourceUsersWrite,
	ResourceRolesRead,
	ResourceRolesWrite,
	ResourceTenantRead,
	ResourceTenantWrite,
	ResourceNotificationsRead,
	ResourceNotificationsWrite,
	ResourceAuditRead,
}

func (r Resource) IsValid() bool {
	return slices.Contains(AllResources, r)
}

func (r Resource) String() string {
	return string(r)
}

func ResourceStrings(resources []Resource) []string {
	out := make([]string, len(resources))
	for i, r := range resources {
		out[i] = string(r)
	}
	return out
}
