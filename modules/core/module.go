package core

import (
	"embed"
	"io/fs"

	"github.com/iota-uz/admin-portal/modules/core/handlers"
	"github.com/iota-uz/admin-portal/modules/core/infrastructure/persistence"
	"github.com/iota-uz/admin-portal/modules/core/infrastructure/query"
	"github.com/iota-uz/admin-portal/modules/core/presentation/controllers"
	"github.com/iota-uz/admin-portal/modules/core/seed"
	"github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/configuration"
	"github.com/iota-uz/admin-portal/pkg/middleware"
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
	logger := conf.Logger()

	migrations, err := fs.Sub(MigrationFiles, "infrastructure/persistence/migrations")
	if err != nil {
		return err
	}
	app.RegisterMigrations(m.Name(), migrations)
	app.RegisterLocaleFiles(&LocaleFiles)

	userRepo := persistence.NewUserRepository()
	roleRepo := persistence.NewRoleRepository()
	tenantRepo := persistence.NewTenantRepository()

	authzService, err := authz.NewService(authz.Config{
		Mode:   authz.Mode(conf.Auth.AuthzMode),
		Source: persistence.NewPolicySource(),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	authOpts := conf.Auth
	if len(authOpts.WebAuthnOrigins) == 0 {
		authOpts.WebAuthnOrigins = []string{conf.Origin}
	}
	webAuthn, err := services.NewWebAuthn(authOpts)
	if err != nil {
		return err
	}
	parser := services.NewWebAuthnParser()

	bus := app.EventPublisher()
	tenantService := services.NewTenantService(tenantRepo, app.Cache(), authzService, bus)
	sessionService := services.NewSessionService(persistence.NewSessionRepository(), app.Cache(), bus, authOpts.SessionDuration)
	userService := services.NewUserService(userRepo, roleRepo, sessionService, authzService, bus)
	roleService := services.NewRoleService(roleRepo, userRepo, authzService, bus)
	accountService := services.NewAccountService(userRepo, tenantService, app.Cache(), webAuthn, parser, bus, authOpts.TOTPIssuer)
	authService := services.NewAuthService(services.AuthServiceOptions{
		Users:     userRepo,
		Tenants:   tenantService,
		Sessions:  sessionService,
		Signer:    services.NewPartialSigner(authOpts.SigningKey, authOpts.PartialSignInTTL),
		Cache:     app.Cache(),
		Mailer:    app.Mailer(),
		WebAuthn:  webAuthn,
		Parser:    parser,
		Publisher: bus,
		Auth:      authOpts,
		Origin:    conf.Origin,
	})

	mediator := app.Mediator()
	tenantService.Register(mediator)
	userService.Register(mediator)
	roleService.Register(mediator)
	accountService.Register(mediator)

	app.RegisterServices(
		authzService,
		tenantService,
		sessionService,
		userService,
		roleService,
		accountService,
		authService,
		services.NewProvisioner(tenantRepo, roleRepo, userRepo),
	)

	handlers.RegisterMailHandlers(app, conf.Origin)
	var disconnector handlers.Disconnector
	if hub := app.Websocket(); hub != nil {
		disconnector = hub
		handlers.NewSocketHandler(hub).Subscribe(bus)
	}
	handlers.NewTenantAccessHandler(sessionService, disconnector).Subscribe(bus)

	app.OData().Register(query.UsersSet(), query.RolesSet())

	loginLimiter := middleware.LoginRateLimit(middleware.NewStore(conf.RateLimit, logger), conf.RateLimit.LoginRPM)
	app.RegisterControllers(
		controllers.NewHealthController(app),
		controllers.NewLoginController(app, controllers.LoginControllerOptions{
			Auth:      authOpts,
			Secure:    conf.IsProduction(),
			RateLimit: loginLimiter,
		}),
		controllers.NewDashboardController(app),
		controllers.NewUsersController(app),
		controllers.NewRolesController(app),
		controllers.NewTenantController(app),
		controllers.NewAccountController(app),
		controllers.NewODataController(app),
		controllers.NewWebsocketController(app),
	)
	app.Seeder().Register(seed.CreateDefaultTenant)
	return nil
}

func (m *Module) Name() string {
	return "core"
}
