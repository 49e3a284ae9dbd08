package application

import (
	"context"
	"io/fs"
	"reflect"

	"github.com/benbjohnson/hashfs"
	"github.com/gorilla/mux"
	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/admin-portal/pkg/cache"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mailer"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/odata"
	"github.com/iota-uz/admin-portal/pkg/types"
)

type Controller interface {
	Register(r *mux.Router)
	Key() string
}

type Module interface {
	Name() string
	Register(app Application) error
}

type SeedFunc func(ctx context.Context, app Application) error

type Seeder interface {
	Seed(ctx context.Context, app Application) error
	Register(seedFuncs ...SeedFunc)
}

// Application is the composition root shared by every module.
type Application interface {
	DB() *pgxpool.Pool
	EventPublisher() eventbus.EventBus
	Mediator() *mediator.Mediator
	Cache() cache.Cache
	Mailer() mailer.Mailer
	OData() *odata.Registry
	Websocket() Huber
	Migrations() MigrationManager
	Seeder() Seeder

	Controllers() []Controller
	Middleware() []mux.MiddlewareFunc
	HashFsAssets() []*hashfs.FS
	NavItems(localizer *i18n.Localizer) []types.NavigationItem
	Bundle() *i18n.Bundle
	GetSupportedLanguages() []string

	RegisterControllers(controllers ...Controller)
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterHashFsAssets(fs ...*hashfs.FS)
	RegisterLocaleFiles(fs ...fs.FS)
	RegisterMigrations(module string, fsys fs.FS)
	RegisterNavItems(items ...types.NavigationItem)
	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}
	Services() map[reflect.Type]interface{}
}
