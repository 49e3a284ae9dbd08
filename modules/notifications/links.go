package notifications

import (
	icons "github.com/iota-uz/icons/phosphor"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/types"
)

var NotificationsLink = types.NavigationItem{
	Name:    "Nav.Notifications",
	Icon:    icons.Bell(icons.Props{Size: "20"}),
	Href:    "/notifications",
	Feature: string(tenant.FeatureNotifications),
}

var NavItems = []types.NavigationItem{
	NotificationsLink,
}
