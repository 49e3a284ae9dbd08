package server

import (
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/presentation/controllers"
	coreservices "github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/authz"
	"github.com/iota-uz/admin-portal/pkg/configuration"
	"github.com/iota-uz/admin-portal/pkg/middleware"
	"github.com/iota-uz/admin-portal/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
}

func resourceNames() []string {
	out := make([]string, len(role.AllResources))
	for i, r := range role.AllResources {
		out[i] = string(r)
	}
	return out
}

// Default builds the HTTP server with the standard middleware stack. The
// order matters: the tenant is bound before the session so Authorize can
// reject tokens of another tenant, and the page context needs both the
// localizer and the user.
func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	tenants := app.Service(coreservices.TenantService{}).(*coreservices.TenantService)
	auth := app.Service(coreservices.AuthService{}).(*coreservices.AuthService)
	authzService := app.Service(authz.Service{}).(*authz.Service)

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(options.Logger, middleware.DefaultLoggerOptions()),
		middleware.RequestParams(),
		middleware.TracedMiddleware("security"),
		middleware.SecureHeaders(middleware.SecurityOptions{HSTS: conf.IsProduction()}),
		middleware.Cors(conf.CorsAllowedOrigins...),
	}

	if conf.RateLimit.Enabled {
		middlewares = append(middlewares,
			middleware.TracedMiddleware("rateLimit"),
			middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerPeriod: conf.RateLimit.GlobalRPS,
				Store:             middleware.NewStore(conf.RateLimit, options.Logger),
				Prefix:            "global:",
			}),
		)
	}

	middlewares = append(middlewares,
		middleware.TracedMiddleware("database"),
		middleware.ProvidePool(options.Pool),
		middleware.TracedMiddleware("tenant"),
		middleware.RequireTenantFromHost(tenants),
		middleware.TracedMiddleware("session"),
		middleware.Authorize(auth, conf.Auth.SidCookieKey),
		middleware.ProvideLocalizer(app),
		middleware.WithPageContext(authzService, resourceNames()),
	)

	app.RegisterMiddleware(middlewares...)

	return server.NewHTTPServer(
		app,
		controllers.NotFound(app),
		controllers.MethodNotAllowed(),
	), nil
}
