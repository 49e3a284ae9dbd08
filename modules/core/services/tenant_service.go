package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/cache"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mediator"
)

const tenantCacheTTL = time.Minute

type UpdateTenant struct {
	mediator.CommandBase
	Name string `validate:"required,max=255"`
}

type SetTenantFeatures struct {
	mediator.CommandBase
	Features []tenant.Feature
}

// GetCurrentTenant returns the tenant carried by ctx.
type GetCurrentTenant struct{}

type TenantChange = mediator.Change[tenant.Snapshot]

type cachedTenant struct {
	Snapshot  tenant.Snapshot `json:"snapshot"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type TenantService struct {
	repo       tenant.Repository
	cache      cache.Cache
	authorizer Authorizer
	publisher  eventbus.EventBus
}

func NewTenantService(repo tenant.Repository, c cache.Cache, authorizer Authorizer, publisher eventbus.EventBus) *TenantService {
	return &TenantService{
		repo:       repo,
		cache:      cache.Prefixed(c, "tenant"),
		authorizer: authorizer,
		publisher:  publisher,
	}
}

func (s *TenantService) Register(m *mediator.Mediator) {
	mediator.Register(m, s.Update)
	mediator.Register(m, s.SetFeatures)
	mediator.Register(m, s.Current)
}

func (s *TenantService) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TenantService) List(ctx context.Context) ([]*tenant.Tenant, error) {
	return s.repo.List(ctx)
}

// GetByDomain resolves the tenant of a request host. Hits are cached briefly.
func (s *TenantService) GetByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	domain = tenant.NormalizeDomain(domain)
	if cached, err := cache.GetJSON[cachedTenant](ctx, s.cache, domain); err == nil {
		return fromCache(cached), nil
	} else if !errors.Is(err, cache.ErrMiss) {
		composables.UseLogger(ctx).WithError(err).Warn("tenant cache read failed")
	}
	t, err := s.repo.GetByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	entry := cachedTenant{Snapshot: t.Snapshot(), CreatedAt: t.CreatedAt(), UpdatedAt: t.UpdatedAt()}
	if err := cache.SetJSON(ctx, s.cache, domain, entry, tenantCacheTTL); err != nil {
		composables.UseLogger(ctx).WithError(err).Warn("tenant cache write failed")
	}
	return t, nil
}

func (s *TenantService) Current(ctx context.Context, _ GetCurrentTenant) (*tenant.Tenant, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceTenantRead); err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tenantID)
}

func (s *TenantService) Update(ctx context.Context, cmd UpdateTenant) (TenantChange, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceTenantWrite); err != nil {
		return TenantChange{}, err
	}
	t, err := s.current(ctx)
	if err != nil {
		return TenantChange{}, err
	}
	before := t.Snapshot()
	t.SetName(cmd.Name)
	return s.Save(ctx, before, t)
}

func (s *TenantService) SetFeatures(ctx context.Context, cmd SetTenantFeatures) (TenantChange, error) {
	if err := authorizeResource(ctx, s.authorizer, role.ResourceTenantWrite); err != nil {
		return TenantChange{}, err
	}
	t, err := s.current(ctx)
	if err != nil {
		return TenantChange{}, err
	}
	before := t.Snapshot()
	added, removed, err := t.SetFeatures(cmd.Features)
	if err != nil {
		return TenantChange{}, err
	}
	if len(added) == 0 && len(removed) == 0 {
		return TenantChange{ID: t.ID().String(), Before: before, After: before}, nil
	}
	return s.Save(ctx, before, t)
}

// Save persists t, drops its cached copy and raises UpdatedEvent.
func (s *TenantService) Save(ctx context.Context, before tenant.Snapshot, t *tenant.Tenant) (TenantChange, error) {
	updated, err := s.repo.Update(ctx, t)
	if err != nil {
		return TenantChange{}, err
	}
	s.Forget(ctx, before.Domain)
	s.Forget(ctx, updated.Domain())
	mediator.Raise(ctx, s.publisher, &tenant.UpdatedEvent{Before: before, Result: updated.Snapshot()})
	return TenantChange{ID: updated.ID().String(), Before: before, After: updated.Snapshot()}, nil
}

func (s *TenantService) Forget(ctx context.Context, domain string) {
	if err := s.cache.Delete(ctx, tenant.NormalizeDomain(domain)); err != nil {
		composables.UseLogger(ctx).WithError(err).Warn("tenant cache delete failed")
	}
}

func (s *TenantService) current(ctx context.Context) (*tenant.Tenant, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tenantID)
}

func fromCache(c cachedTenant) *tenant.Tenant {
	return tenant.New(c.Snapshot.Name,
		tenant.WithID(c.Snapshot.ID),
		tenant.WithDomain(c.Snapshot.Domain),
		tenant.WithIsActive(c.Snapshot.IsActive),
		tenant.WithFeatures(c.Snapshot.Features),
		tenant.WithCreatedAt(c.CreatedAt),
		tenant.WithUpdatedAt(c.UpdatedAt),
	)
}
