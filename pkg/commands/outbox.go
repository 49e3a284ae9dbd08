package commands

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/admin-portal/pkg/configuration"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/outbox"
)

// NewRelay builds the outbox relay that dispatches messages onto bus.
func NewRelay(conf *configuration.Configuration, pool *pgxpool.Pool, bus eventbus.EventBus, logger *logrus.Logger) (*outbox.Relay, error) {
	return outbox.NewRelay(pool, outbox.NewBusDispatcher(bus), outbox.RelayOptions{
		PollInterval:    conf.Outbox.RelayPollInterval,
		BatchSize:       conf.Outbox.RelayBatchSize,
		LockTTL:         conf.Outbox.RelayLockTTL,
		MaxAttempts:     conf.Outbox.RelayMaxAttempts,
		SingleActive:    conf.Outbox.RelaySingleActive,
		LastErrorMaxLen: conf.Outbox.LastErrorMaxBytes,
		DispatchTimeout: conf.Outbox.RelayDispatchTimeout,
		Logger:          logger.WithField("component", "outbox-relay"),
	})
}

// RunOutbox runs the relay and cleaner as configured until ctx is done.
func RunOutbox(ctx context.Context, conf *configuration.Configuration, pool *pgxpool.Pool, bus eventbus.EventBus, logger *logrus.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	if conf.Outbox.RelayEnabled {
		relay, err := NewRelay(conf, pool, bus, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return ignoreCanceled(relay.Run(ctx)) })
	}

	if conf.Outbox.CleanerEnabled {
		cleaner, err := outbox.NewCleaner(pool, outbox.CleanerOptions{
			Interval:              conf.Outbox.CleanerInterval,
			Retention:             conf.Outbox.CleanerRetention,
			DeadRetention:         conf.Outbox.CleanerDeadRetention,
			DeadAttemptsThreshold: conf.Outbox.RelayMaxAttempts,
			Logger:                logger.WithField("component", "outbox-cleaner"),
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return ignoreCanceled(cleaner.Run(ctx)) })
	}
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
