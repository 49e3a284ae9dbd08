package notifications

import (
	"embed"
	"io/fs"

	"github.com/iota-uz/admin-portal/modules/notifications/handlers"
	"github.com/iota-uz/admin-portal/modules/notifications/infrastructure/persistence"
	"github.com/iota-uz/admin-portal/modules/notifications/infrastructure/query"
	"github.com/iota-uz/admin-portal/modules/notifications/presentation/controllers"
	"github.com/iota-uz/admin-portal/modules/notifications/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/authz"
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

	authzService := app.Service(authz.Service{}).(*authz.Service)
	service := services.NewNotificationService(persistence.NewNotificationRepository(), authzService, app.EventPublisher())
	service.Register(app.Mediator())
	app.RegisterServices(service)

	handlers.NewNotificationHandler(app.Websocket(), app.Bundle(), app.Mailer(), conf.Origin).Subscribe(app.EventPublisher())

	app.OData().Register(query.NotificationsSet())
	app.RegisterControllers(controllers.NewNotificationsController(app))
	return nil
}

func (m *Module) Name() string {
	return "notifications"
}
