package modules

import (
	"slices"

	"github.com/iota-uz/admin-portal/modules/core"
	"github.com/iota-uz/admin-portal/modules/logging"
	"github.com/iota-uz/admin-portal/modules/notifications"
	"github.com/iota-uz/admin-portal/modules/superadmin"
	"github.com/iota-uz/admin-portal/pkg/application"
)

var (
	// BuiltInModules are registered in dependency order: core first, since
	// the others resolve its services and reference its tables.
	BuiltInModules = []application.Module{
		core.NewModule(),
		notifications.NewModule(),
		superadmin.NewModule(),
		logging.NewModule(),
	}

	NavLinks = slices.Concat(
		core.NavItems,
		notifications.NavItems,
		logging.NavItems,
		superadmin.NavItems,
	)
)

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
