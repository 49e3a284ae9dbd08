// Package common builds the application shared by the server and the CLI.
package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/admin-portal/modules"
	"github.com/iota-uz/admin-portal/modules/logging"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/cache"
	"github.com/iota-uz/admin-portal/pkg/configuration"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mailer"
	"github.com/iota-uz/admin-portal/pkg/mediator"
)

// NewPool connects to the configured database and pings it.
func NewPool(ctx context.Context, conf *configuration.Configuration) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// NewCache picks the cache driver from configuration.
func NewCache(conf *configuration.Configuration) (cache.Cache, error) {
	var (
		c   cache.Cache
		err error
	)
	switch conf.Cache.Driver {
	case "redis":
		client, cErr := cache.NewRedisClient(conf.RedisURL)
		if cErr != nil {
			return nil, cErr
		}
		c = cache.NewRedis(client)
	default:
		c, err = cache.NewMemory(cache.MemoryOptions{
			NumCounters: conf.Cache.NumCounters,
			MaxCost:     conf.Cache.MaxCost,
		})
		if err != nil {
			return nil, err
		}
	}
	return cache.Prefixed(c, conf.Cache.KeyPrefix), nil
}

// NewMediator builds the command pipeline. Audit sits outside Transaction so
// rolled back commands are still recorded; Events sits outside Transaction so
// subscribers see committed state only.
func NewMediator(bus eventbus.EventBus) *mediator.Mediator {
	return mediator.New(
		mediator.Tracing(),
		mediator.Logging(),
		mediator.Metrics(),
		mediator.Audit(logging.AuditStore()),
		mediator.Events(bus),
		mediator.Validation(mediator.NewStructValidator()),
		mediator.Transaction(nil),
	)
}

func sameOrigin(origin string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		return o == "" || strings.EqualFold(o, origin)
	}
}

// NewApplication wires infrastructure and registers mods.
func NewApplication(pool *pgxpool.Pool, mods ...application.Module) (application.Application, error) {
	conf := configuration.Use()
	logger := conf.Logger()

	c, err := NewCache(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	bundle := application.LoadBundle()
	bus := eventbus.NewEventPublisher(logger)
	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		Bundle:   bundle,
		EventBus: bus,
		Logger:   logger,
		Mediator: NewMediator(bus),
		Cache:    c,
		Mailer:   mailer.New(conf.Mail, logger),
		Huber: application.NewHub(&application.HuberOptions{
			Logger:      logger,
			CheckOrigin: sameOrigin(conf.Origin),
		}),
	})
	if err := modules.Load(app, mods...); err != nil {
		return nil, fmt.Errorf("failed to load modules: %w", err)
	}
	return app, nil
}

// NewApplicationWithDefaults connects to the database and loads the built-in modules.
func NewApplicationWithDefaults(ctx context.Context) (application.Application, *pgxpool.Pool, error) {
	pool, err := NewPool(ctx, configuration.Use())
	if err != nil {
		return nil, nil, err
	}
	app, err := NewApplication(pool, modules.BuiltInModules...)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return app, pool, nil
}
