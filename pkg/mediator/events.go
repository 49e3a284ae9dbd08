package mediator

import (
	"context"
	"sync"

	"github.com/iota-uz/admin-portal/pkg/eventbus"
)

type eventsKey struct{}

type pendingEvents struct {
	mu     sync.Mutex
	events []any
}

// Raise queues a domain event until the outermost command succeeds.
// Outside a mediator request the event is dropped to the fallback publisher.
func Raise(ctx context.Context, fallback eventbus.EventBus, events ...any) {
	if p, ok := ctx.Value(eventsKey{}).(*pendingEvents); ok {
		p.mu.Lock()
		p.events = append(p.events, events...)
		p.mu.Unlock()
		return
	}
	if fallback == nil {
		return
	}
	for _, e := range events {
		fallback.Publish(ctx, e)
	}
}

// Events publishes raised events after the request returns without error.
// Place it outside Transaction so subscribers only see committed state.
func Events(bus eventbus.EventBus) Behavior {
	return func(ctx context.Context, req any, next Next) (any, error) {
		if _, nested := ctx.Value(eventsKey{}).(*pendingEvents); nested {
			return next(ctx, req)
		}
		pending := &pendingEvents{}
		res, err := next(context.WithValue(ctx, eventsKey{}, pending), req)
		if err != nil {
			return res, err
		}
		for _, e := range pending.events {
			bus.Publish(ctx, e)
		}
		return res, nil
	}
}
