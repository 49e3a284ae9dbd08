package application

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/benbjohnson/hashfs"
	"github.com/gorilla/mux"
	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/iota-uz/admin-portal/pkg/cache"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mailer"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/odata"
	"github.com/iota-uz/admin-portal/pkg/types"
)

func translate(localizer *i18n.Localizer, items []types.NavigationItem) []types.NavigationItem {
	translated := make([]types.NavigationItem, 0, len(items))
	for _, item := range items {
		name, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: item.Name})
		if err != nil {
			name = item.Name
		}
		translated = append(translated, types.NavigationItem{
			Name:       name,
			Href:       item.Href,
			Icon:       item.Icon,
			Children:   translate(localizer, item.Children),
			Resource:   item.Resource,
			Superadmin: item.Superadmin,
			Feature:    item.Feature,
		})
	}
	return translated
}

// ---- Application implementation ----

type ApplicationOptions struct {
	Pool               *pgxpool.Pool
	EventBus           eventbus.EventBus
	Logger             *logrus.Logger
	Bundle             *i18n.Bundle
	Huber              Huber
	Mediator           *mediator.Mediator
	Cache              cache.Cache
	Mailer             mailer.Mailer
	SupportedLanguages []string
}

func LoadBundle() *i18n.Bundle {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	return bundle
}

func defaultSupportedLanguageCodes() []string {
	return []string{"en", "ru", "uz"}
}

func New(opts *ApplicationOptions) Application {
	supportedLanguages := opts.SupportedLanguages
	if len(supportedLanguages) == 0 {
		supportedLanguages = defaultSupportedLanguageCodes()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &application{
		pool:               opts.Pool,
		eventPublisher:     opts.EventBus,
		websocket:          opts.Huber,
		mediator:           opts.Mediator,
		cache:              opts.Cache,
		mailer:             opts.Mailer,
		odata:              odata.NewRegistry(),
		controllers:        make(map[string]Controller),
		services:           make(map[reflect.Type]interface{}),
		bundle:             opts.Bundle,
		migrations:         NewMigrationManager(opts.Pool, logger),
		seeder:             NewSeeder(logger),
		supportedLanguages: supportedLanguages,
	}
}

// application with a dynamically extendable service registry
type application struct {
	pool               *pgxpool.Pool
	eventPublisher     eventbus.EventBus
	websocket          Huber
	mediator           *mediator.Mediator
	cache              cache.Cache
	mailer             mailer.Mailer
	odata              *odata.Registry
	services           map[reflect.Type]interface{}
	controllers        map[string]Controller
	middleware         []mux.MiddlewareFunc
	hashFsAssets       []*hashfs.FS
	bundle             *i18n.Bundle
	migrations         MigrationManager
	seeder             Seeder
	navItems           []types.NavigationItem
	supportedLanguages []string
}

func (app *application) Websocket() Huber {
	return app.websocket
}

func (app *application) Mediator() *mediator.Mediator {
	return app.mediator
}

func (app *application) Cache() cache.Cache {
	return app.cache
}

func (app *application) Mailer() mailer.Mailer {
	return app.mailer
}

func (app *application) OData() *odata.Registry {
	return app.odata
}

func (app *application) Seeder() Seeder {
	return app.seeder
}

func (app *application) NavItems(localizer *i18n.Localizer) []types.NavigationItem {
	return translate(localizer, app.navItems)
}

func (app *application) RegisterNavItems(items ...types.NavigationItem) {
	app.navItems = append(app.navItems, items...)
}

func (app *application) Middleware() []mux.MiddlewareFunc {
	return app.middleware
}

func (app *application) DB() *pgxpool.Pool {
	return app.pool
}

func (app *application) EventPublisher() eventbus.EventBus {
	return app.eventPublisher
}

// Controllers are returned in key order so route registration is deterministic.
func (app *application) Controllers() []Controller {
	keys := make([]string, 0, len(app.controllers))
	for k := range app.controllers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	controllers := make([]Controller, 0, len(keys))
	for _, k := range keys {
		controllers = append(controllers, app.controllers[k])
	}
	return controllers
}

func (app *application) HashFsAssets() []*hashfs.FS {
	return app.hashFsAssets
}

func (app *application) Migrations() MigrationManager {
	return app.migrations
}

func (app *application) RegisterMigrations(module string, fsys fs.FS) {
	app.migrations.Register(module, fsys)
}

func (app *application) RegisterControllers(controllers ...Controller) {
	for _, c := range controllers {
		app.controllers[c.Key()] = c
	}
}

func (app *application) RegisterMiddleware(middleware ...mux.MiddlewareFunc) {
	app.middleware = append(app.middleware, middleware...)
}

func (app *application) RegisterHashFsAssets(fs ...*hashfs.FS) {
	app.hashFsAssets = append(app.hashFsAssets, fs...)
}

// RegisterLocaleFiles parses every .toml and .json message file in locales.
// A malformed file is a programming error and panics at startup.
func (app *application) RegisterLocaleFiles(locales ...fs.FS) {
	for _, localeFs := range locales {
		err := fs.WalkDir(localeFs, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			switch filepath.Ext(path) {
			case ".toml", ".json":
			default:
				return nil
			}
			data, err := fs.ReadFile(localeFs, path)
			if err != nil {
				return err
			}
			_, err = app.bundle.ParseMessageFileBytes(data, filepath.Base(path))
			return err
		})
		if err != nil {
			panic(fmt.Errorf("failed to load locale files: %w", err))
		}
	}
}

// RegisterServices registers a new service in the application by its type
func (app *application) RegisterServices(services ...interface{}) {
	for _, service := range services {
		serviceType := reflect.TypeOf(service).Elem()
		app.services[serviceType] = service
	}
}

// Service retrieves a service by its type
func (app *application) Service(service interface{}) interface{} {
	serviceType := reflect.TypeOf(service)
	svc, exists := app.services[serviceType]
	if !exists {
		panic(fmt.Sprintf("service %s not found", serviceType.Name()))
	}
	return svc
}

func (app *application) Services() map[reflect.Type]interface{} {
	return app.services
}

func (app *application) Bundle() *i18n.Bundle {
	return app.bundle
}

func (app *application) GetSupportedLanguages() []string {
	return app.supportedLanguages
}
