package logging

import (
	icons "github.com/iota-uz/icons/phosphor"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/types"
)

var LogsLink = types.NavigationItem{
	Name:     "Nav.Logs",
	Icon:     icons.List(icons.Props{Size: "20"}),
	Href:     "/logs",
	Resource: string(role.ResourceAuditRead),
	Feature:  string(tenant.FeatureAudit),
}

var NavItems = []types.NavigationItem{
	LogsLink,
}
