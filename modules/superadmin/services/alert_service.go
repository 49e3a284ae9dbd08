package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	coreservices "github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/modules/superadmin/domain/aggregates/alert"
	"github.com/iota-uz/admin-portal/pkg/cache"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mediator"
)

const (
	activeAlertsKey = "active"
	activeAlertsTTL = 30 * time.Second
)

type CreateSystemAlert struct {
	mediator.CommandBase
	Message    string `validate:"required,max=2000"`
	Severity   string `validate:"required,oneof=info warning critical"`
	ActiveFrom time.Time
	ActiveTo   *time.Time
}

type UpdateSystemAlert struct {
	mediator.CommandBase
	ID         uuid.UUID `validate:"required"`
	Message    string    `validate:"required,max=2000"`
	Severity   string    `validate:"required,oneof=info warning critical"`
	ActiveFrom time.Time
	ActiveTo   *time.Time
}

type DeleteSystemAlert struct {
	mediator.CommandBase
	ID uuid.UUID `validate:"required"`
}

type GetSystemAlert struct {
	ID uuid.UUID
}

type AlertChange = mediator.Change[alert.Snapshot]

type AlertService struct {
	repo      alert.Repository
	cache     cache.Cache
	publisher eventbus.EventBus
	now       func() time.Time
}

func NewAlertService(repo alert.Repository, c cache.Cache, publisher eventbus.EventBus) *AlertService {
	return &AlertService{
		repo:      repo,
		cache:     cache.Prefixed(c, "alerts"),
		publisher: publisher,
		now:       time.Now,
	}
}

// Register adds the handlers and evicts the cached active list whenever a
// committed change is published.
func (s *AlertService) Register(m *mediator.Mediator) {
	mediator.Register(m, s.Create)
	mediator.Register(m, s.Update)
	mediator.Register(m, s.Delete)
	mediator.Register(m, s.Get)
	mediator.Register(m, s.Active)

	s.publisher.Subscribe(func(ctx context.Context, _ *alert.CreatedEvent) { s.forget(ctx) })
	s.publisher.Subscribe(func(ctx context.Context, _ *alert.UpdatedEvent) { s.forget(ctx) })
	s.publisher.Subscribe(func(ctx context.Context, _ *alert.DeletedEvent) { s.forget(ctx) })
}

func (s *AlertService) Create(ctx context.Context, cmd CreateSystemAlert) (AlertChange, error) {
	if err := requireSuperadmin(ctx); err != nil {
		return AlertChange{}, err
	}
	a, err := alert.New(cmd.Message, alert.Severity(cmd.Severity), cmd.ActiveFrom, cmd.ActiveTo)
	if err != nil {
		return AlertChange{}, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return AlertChange{}, err
	}
	mediator.Raise(ctx, s.publisher, &alert.CreatedEvent{Result: a.Snapshot()})
	return AlertChange{ID: a.ID().String(), After: a.Snapshot()}, nil
}

func (s *AlertService) Update(ctx context.Context, cmd UpdateSystemAlert) (AlertChange, error) {
	if err := requireSuperadmin(ctx); err != nil {
		return AlertChange{}, err
	}
	a, err := s.repo.GetByID(ctx, cmd.ID)
	if err != nil {
		return AlertChange{}, err
	}
	before := a.Snapshot()
	if err := a.Update(cmd.Message, alert.Severity(cmd.Severity), cmd.ActiveFrom, cmd.ActiveTo); err != nil {
		return AlertChange{}, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return AlertChange{}, err
	}
	mediator.Raise(ctx, s.publisher, &alert.UpdatedEvent{Before: before, Result: a.Snapshot()})
	return AlertChange{ID: a.ID().String(), Before: before, After: a.Snapshot()}, nil
}

func (s *AlertService) Delete(ctx context.Context, cmd DeleteSystemAlert) (AlertChange, error) {
	if err := requireSuperadmin(ctx); err != nil {
		return AlertChange{}, err
	}
	a, err := s.repo.GetByID(ctx, cmd.ID)
	if err != nil {
		return AlertChange{}, err
	}
	if err := s.repo.Delete(ctx, cmd.ID); err != nil {
		return AlertChange{}, err
	}
	mediator.Raise(ctx, s.publisher, &alert.DeletedEvent{Result: a.Snapshot()})
	return AlertChange{ID: a.ID().String(), Before: a.Snapshot()}, nil
}

func (s *AlertService) Get(ctx context.Context, q GetSystemAlert) (*alert.SystemAlert, error) {
	if err := requireSuperadmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, q.ID)
}

// Active answers the dashboard query for any signed-in user. Tenants without
// the alerts feature see an empty list.
func (s *AlertService) Active(ctx context.Context, _ coreservices.GetActiveAlerts) ([]coreservices.ActiveAlert, error) {
	u, err := composables.UseUser(ctx)
	if err != nil {
		return nil, coreservices.ErrNotAuthenticated
	}
	if !u.IsSuperadmin() {
		if t, err := composables.UseTenant(ctx); err == nil && !t.HasFeature(tenant.FeatureAlerts) {
			return []coreservices.ActiveAlert{}, nil
		}
	}

	logger := composables.UseLogger(ctx)
	if cached, err := cache.GetJSON[[]coreservices.ActiveAlert](ctx, s.cache, activeAlertsKey); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.WithError(err).Warn("active alerts cache read failed")
	}

	alerts, err := s.repo.Active(ctx, s.now())
	if err != nil {
		return nil, err
	}
	alert.Sort(alerts)
	out := make([]coreservices.ActiveAlert, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, coreservices.ActiveAlert{
			ID:         a.ID(),
			Message:    a.Message(),
			Severity:   string(a.Severity()),
			ActiveFrom: a.ActiveFrom(),
			ActiveTo:   a.ActiveTo(),
		})
	}
	if err := cache.SetJSON(ctx, s.cache, activeAlertsKey, out, s.ttl(alerts)); err != nil {
		logger.WithError(err).Warn("active alerts cache write failed")
	}
	return out, nil
}

// ttl keeps the cached list from outliving the first alert that expires.
func (s *AlertService) ttl(alerts []*alert.SystemAlert) time.Duration {
	ttl := activeAlertsTTL
	now := s.now()
	for _, a := range alerts {
		if to := a.ActiveTo(); to != nil && to.Sub(now) < ttl {
			ttl = max(to.Sub(now), time.Second)
		}
	}
	return ttl
}

func (s *AlertService) forget(ctx context.Context) {
	if err := s.cache.Delete(ctx, activeAlertsKey); err != nil {
		composables.UseLogger(ctx).WithError(err).Warn("active alerts cache delete failed")
	}
}
