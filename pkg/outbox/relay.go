package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type Relay struct {
	store      store
	dispatcher Dispatcher
	opts       RelayOptions
	m          *metrics
	now        func() time.Time
}

func NewRelay(pool *pgxpool.Pool, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	return newRelay(&pgStore{pool: pool}, dispatcher, opts)
}

func newRelay(s store, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if dispatcher == nil {
		return nil, invalidConfig("dispatcher is required")
	}
	opts.setDefaults()
	return &Relay{
		store:      s,
		dispatcher: dispatcher,
		opts:       opts,
		m:          metricsSingleton(),
		now:        time.Now,
	}, nil
}

// Run polls until ctx is cancelled. With SingleActive only the instance holding
// the advisory lock relays; the others keep retrying for leadership.
func (r *Relay) Run(ctx context.Context) error {
	if !r.opts.SingleActive {
		r.m.relayLeader.Set(1)
		return r.loop(ctx)
	}
	for {
		release, err := r.store.Lead(ctx)
		if err != nil {
			r.opts.Logger.WithError(err).Warn("outbox: failed to attempt leader lock")
		}
		if release != nil {
			r.m.relayLeader.Set(1)
			r.opts.Logger.Info("outbox: relay became leader")
			err := r.loop(ctx)
			release()
			r.m.relayLeader.Set(0)
			return err
		}
		r.m.relayLeader.Set(0)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.opts.PollInterval):
		}
	}
}

func (r *Relay) loop(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	nextDepthAt := r.now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if r.now().After(nextDepthAt) {
			if pending, locked, err := r.store.Depth(ctx); err == nil {
				r.m.pending.Set(float64(pending))
				r.m.locked.Set(float64(locked))
			}
			nextDepthAt = r.now().Add(r.opts.ObserveQueueDepthEvery)
		}

		if _, err := r.ProcessOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("outbox: process tick failed")
		}
	}
}

// ProcessOnce claims one batch and dispatches it. It returns how many
// messages were claimed.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	now := r.now()
	batch, err := r.store.Claim(ctx, now, now.Add(-r.opts.LockTTL), r.opts.MaxAttempts, r.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, c := range batch {
		dispatchCtx, cancel := context.WithTimeout(ctx, r.opts.DispatchTimeout)
		start := time.Now()
		err := r.dispatcher.Dispatch(dispatchCtx, DispatchedMessage{
			Meta: Meta{
				TenantID: c.TenantID,
				Topic:    c.Topic,
				EventID:  c.EventID,
				Sequence: c.Sequence,
				Attempts: c.Attempts,
			},
			Payload: c.Payload,
		})
		cancel()
		latency := time.Since(start)
		log := r.opts.Logger.WithFields(logFields(c))

		if err == nil {
			r.record(c.Topic, "success", latency)
			if ackErr := r.store.Ack(ctx, c.ID); ackErr != nil {
				log.WithError(ackErr).Warn("outbox: ack failed")
			}
			continue
		}

		r.record(c.Topic, "failure", latency)
		lastErr := truncate(err.Error(), r.opts.LastErrorMaxLen)
		if c.Attempts >= r.opts.MaxAttempts {
			r.m.deadTotal.WithLabelValues(c.Topic).Inc()
			log.WithError(err).Error("outbox: message exhausted its attempts")
			if buryErr := r.store.Bury(ctx, c.ID, lastErr); buryErr != nil {
				log.WithError(buryErr).Warn("outbox: bury failed")
			}
			continue
		}
		next := r.now().Add(backoff(c.Attempts, r.opts.MaxBackoff) + jitter(r.opts.Rand, r.opts.JitterMax))
		if retryErr := r.store.Retry(ctx, c.ID, lastErr, next); retryErr != nil {
			log.WithError(retryErr).Warn("outbox: retry update failed")
		}
	}
	return len(batch), nil
}

func (r *Relay) record(topic, result string, latency time.Duration) {
	r.m.dispatchTotal.WithLabelValues(topic, result).Inc()
	r.m.dispatchLatency.WithLabelValues(topic, result).Observe(latency.Seconds())
}

func logFields(c claimed) logrus.Fields {
	return logrus.Fields{
		"topic":     c.Topic,
		"event_id":  c.EventID.String(),
		"tenant_id": c.TenantID.String(),
		"sequence":  c.Sequence,
		"attempts":  c.Attempts,
	}
}
