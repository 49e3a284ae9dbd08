package superadmin

import (
	"embed"
	"io/fs"

	corepersistence "github.com/iota-uz/admin-portal/modules/core/infrastructure/persistence"
	coreservices "github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/modules/superadmin/handlers"
	"github.com/iota-uz/admin-portal/modules/superadmin/infrastructure/persistence"
	"github.com/iota-uz/admin-portal/modules/superadmin/infrastructure/query"
	"github.com/iota-uz/admin-portal/modules/superadmin/presentation/controllers"
	"github.com/iota-uz/admin-portal/modules/superadmin/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/configuration"
)

//go:embed presentation/locales/*.toml
var LocaleFiles embed.FS

//go:embed infrastructure/persistence/migrations/*.sql
var MigrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()

	migrations, err := fs.Sub(MigrationFiles, "infrastructure/persistence/migrations")
	if err != nil {
		return err
	}
	app.RegisterMigrations(m.Name(), migrations)
	app.RegisterLocaleFiles(&LocaleFiles)

	tenantService := app.Service(coreservices.TenantService{}).(*coreservices.TenantService)
	provisioner := app.Service(coreservices.Provisioner{}).(*coreservices.Provisioner)

	bus := app.EventPublisher()
	consoleService := services.NewTenantConsoleService(corepersistence.NewTenantRepository(), provisioner, tenantService, bus)
	alertService := services.NewAlertService(persistence.NewAlertRepository(), app.Cache(), bus)
	consoleService.Register(app.Mediator())
	alertService.Register(app.Mediator())
	app.RegisterServices(consoleService, alertService)

	handlers.NewMailHandler(app.Bundle(), app.Mailer(), conf.Origin).Subscribe(bus)
	if hub := app.Websocket(); hub != nil {
		handlers.NewAlertHandler(hub).Subscribe(bus)
	}

	app.OData().Register(query.TenantsSet(), query.AlertsSet())
	app.RegisterControllers(
		controllers.NewTenantsController(app),
		controllers.NewAlertsController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "superadmin"
}
