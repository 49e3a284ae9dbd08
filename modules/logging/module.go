package logging

import (
	"embed"
	"io/fs"

	"github.com/iota-uz/admin-portal/modules/logging/handlers"
	"github.com/iota-uz/admin-portal/modules/logging/infrastructure/persistence"
	"github.com/iota-uz/admin-portal/modules/logging/infrastructure/query"
	"github.com/iota-uz/admin-portal/modules/logging/presentation/controllers"
	"github.com/iota-uz/admin-portal/modules/logging/services"
	"github.com/iota-uz/admin-portal/pkg/application"
)

//go:embed presentation/locales/*.toml
var LocaleFiles embed.FS

//go:embed infrastructure/persistence/migrations/*.sql
var MigrationFiles embed.FS

// AuditStore is the sink cmd/server hands to the mediator's audit behavior.
func AuditStore() *persistence.AuditLogRepository {
	return persistence.NewAuditLogRepository()
}

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	migrations, err := fs.Sub(MigrationFiles, "infrastructure/persistence/migrations")
	if err != nil {
		return err
	}
	app.RegisterMigrations(m.Name(), migrations)
	app.RegisterLocaleFiles(&LocaleFiles)

	service := services.NewLogsService(
		persistence.NewAuthenticationLogRepository(),
		persistence.NewAuditLogRepository(),
	)
	app.RegisterServices(service)
	handlers.NewSessionEventsHandler(service).Subscribe(app.EventPublisher())

	app.OData().Register(query.AuditLogsSet(), query.AuthLogsSet())
	app.RegisterControllers(controllers.NewLogsController(app))
	return nil
}

func (m *Module) Name() string {
	return "logging"
}
