package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	internalassets "github.com/iota-uz/admin-portal/internal/assets"
	"github.com/iota-uz/admin-portal/internal/server"
	"github.com/iota-uz/admin-portal/modules"
	"github.com/iota-uz/admin-portal/modules/core/presentation/controllers"
	logservices "github.com/iota-uz/admin-portal/modules/logging/services"
	"github.com/iota-uz/admin-portal/pkg/commands"
	"github.com/iota-uz/admin-portal/pkg/commands/common"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/configuration"
	"github.com/iota-uz/admin-portal/pkg/logging"
	"github.com/iota-uz/admin-portal/pkg/metrics"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.OpenTelemetry.Enabled {
		cleanup := logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL, logger)
		defer cleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	app, pool, err := common.NewApplicationWithDefaults(ctx)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer pool.Close()

	app.RegisterNavItems(modules.NavLinks...)
	app.RegisterHashFsAssets(internalassets.FS)
	app.RegisterControllers(controllers.NewStaticFilesController(app.HashFsAssets()))
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	logs := app.Service(logservices.LogsService{}).(*logservices.LogsService)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Listening on: %s", conf.Origin)
		return serverInstance.Start(ctx, conf.SocketAddress)
	})
	g.Go(func() error {
		return commands.RunOutbox(ctx, conf, pool, app.EventPublisher(), logger)
	})
	g.Go(func() error {
		err := logs.RunPurge(composables.WithPool(ctx, pool), time.Hour, conf.LogRetention, logger)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped")
		configuration.Use().Unload()
		os.Exit(1)
	}
	logger.Info("server stopped")
}
