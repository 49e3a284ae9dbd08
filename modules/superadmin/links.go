package superadmin

import (
	icons "github.com/iota-uz/icons/phosphor"

	"github.com/iota-uz/admin-portal/pkg/types"
)

var TenantsLink = types.NavigationItem{
	Name:       "Nav.Tenants",
	Href:       "/superadmin/tenants",
	Superadmin: true,
}

var AlertsLink = types.NavigationItem{
	Name:       "Nav.Alerts",
	Href:       "/superadmin/alerts",
	Superadmin: true,
}

var SuperadminLink = types.NavigationItem{
	Name:       "Nav.Superadmin",
	Icon:       icons.Buildings(icons.Props{Size: "20"}),
	Superadmin: true,
	Children: []types.NavigationItem{
		TenantsLink,
		AlertsLink,
	},
}

var NavItems = []types.NavigationItem{
	SuperadminLink,
}
