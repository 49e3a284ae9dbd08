package core

import (
	icons "github.com/iota-uz/icons/phosphor"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/pkg/types"
)

var DashboardLink = types.NavigationItem{
	Name: "Nav.Dashboard",
	Icon: icons.Gauge(icons.Props{Size: "20"}),
	Href: "/",
}

var UsersLink = types.NavigationItem{
	Name:     "Nav.Users",
	Href:     "/users",
	Resource: string(role.ResourceUsersRead),
}

var RolesLink = types.NavigationItem{
	Name:     "Nav.Roles",
	Href:     "/roles",
	Resource: string(role.ResourceRolesRead),
}

var TenantLink = types.NavigationItem{
	Name:     "Nav.Tenant",
	Href:     "/tenant",
	Resource: string(role.ResourceTenantRead),
}

var AdministrationLink = types.NavigationItem{
	Name: "Nav.Administration",
	Icon: icons.AirTrafficControl(icons.Props{Size: "20"}),
	Children: []types.NavigationItem{
		UsersLink,
		RolesLink,
		TenantLink,
	},
}

var AccountLink = types.NavigationItem{
	Name: "Nav.Account",
	Icon: icons.UserCircle(icons.Props{Size: "20"}),
	Href: "/account",
}

var NavItems = []types.NavigationItem{
	DashboardLink,
	AdministrationLink,
	AccountLink,
}
