// Package services implements the superadmin console: tenant provisioning
// and lifecycle, and system alerts.
package services

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	coreservices "github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/outbox"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

var ErrSuperadminOnly = serrors.NewError(serrors.Forbidden, "superadmin access required", "Errors.Forbidden")

type ProvisionTenant struct {
	mediator.CommandBase
	Name           string           `validate:"required,max=255"`
	Domain         string           `validate:"required,max=255"`
	Features       []tenant.Feature `validate:"dive,required"`
	AdminEmail     string           `validate:"required,email"`
	AdminFirstName string           `validate:"required,max=100"`
	AdminLastName  string           `validate:"required,max=100"`
	AdminPassword  string           `validate:"required,min=8,max=72"`
	AdminLanguage  string           `validate:"omitempty,oneof=en ru uz"`
}

func (c ProvisionTenant) Redacted() any {
	c.AdminPassword = ""
	return c
}

type UpdateTenant struct {
	mediator.CommandBase
	ID     uuid.UUID `validate:"required"`
	Name   string    `validate:"required,max=255"`
	Domain string    `validate:"required,max=255"`
}

type SetTenantFeatures struct {
	mediator.CommandBase
	ID       uuid.UUID `validate:"required"`
	Features []tenant.Feature
}

type SetTenantActive struct {
	mediator.CommandBase
	ID     uuid.UUID `validate:"required"`
	Active bool
}

type GetTenant struct {
	ID uuid.UUID
}

// TenantProvisionedPayload is the integration event queued for every new
// tenant; its handler mails the first administrator.
type TenantProvisionedPayload struct {
	TenantID       uuid.UUID `json:"tenantId"`
	Name           string    `json:"name"`
	Domain         string    `json:"domain"`
	AdminUserID    uuid.UUID `json:"adminUserId"`
	AdminEmail     string    `json:"adminEmail"`
	AdminFirstName string    `json:"adminFirstName"`
	Language       string    `json:"language"`
}

type Provisioner interface {
	Provision(ctx context.Context, params coreservices.ProvisionParams) (coreservices.ProvisionResult, error)
}

// TenantSaver persists a changed tenant and evicts its cached copy.
type TenantSaver interface {
	Save(ctx context.Context, before tenant.Snapshot, t *tenant.Tenant) (coreservices.TenantChange, error)
}

type TenantConsoleService struct {
	tenants     tenant.Repository
	provisioner Provisioner
	saver       TenantSaver
	publisher   eventbus.EventBus
}

func NewTenantConsoleService(tenants tenant.Repository, provisioner Provisioner, saver TenantSaver, publisher eventbus.EventBus) *TenantConsoleService {
	return &TenantConsoleService{tenants: tenants, provisioner: provisioner, saver: saver, publisher: publisher}
}

func (s *TenantConsoleService) Register(m *mediator.Mediator) {
	mediator.Register(m, s.Provision)
	mediator.Register(m, s.Update)
	mediator.Register(m, s.SetFeatures)
	mediator.Register(m, s.SetActive)
	mediator.Register(m, s.Get)
}

func (s *TenantConsoleService) Provision(ctx context.Context, cmd ProvisionTenant) (coreservices.TenantChange, error) {
	if err := requireSuperadmin(ctx); err != nil {
		return coreservices.TenantChange{}, err
	}
	res, err := s.provisioner.Provision(ctx, coreservices.ProvisionParams{
		Name:           strings.TrimSpace(cmd.Name),
		Domain:         cmd.Domain,
		Features:       cmd.Features,
		AdminEmail:     cmd.AdminEmail,
		AdminFirstName: strings.TrimSpace(cmd.AdminFirstName),
		AdminLastName:  strings.TrimSpace(cmd.AdminLastName),
		AdminPassword:  cmd.AdminPassword,
		AdminType:      user.TypeUser,
		AdminLanguage:  user.UILanguage(cmd.AdminLanguage),
	})
	if err != nil {
		return coreservices.TenantChange{}, err
	}
	t, admin := res.Tenant, res.Admin
	if err := outbox.Enqueue(composables.WithTenantID(ctx, t.ID()), outbox.TopicTenantProvisioned, TenantProvisionedPayload{
		TenantID:       t.ID(),
		Name:           t.Name(),
		Domain:         t.Domain(),
		AdminUserID:    admin.ID(),
		AdminEmail:     admin.Email(),
		AdminFirstName: admin.FirstName(),
		Language:       string(admin.UILanguage()),
	}); err != nil {
		return coreservices.TenantChange{}, err
	}
	mediator.Raise(ctx, s.publisher, &tenant.CreatedEvent{Result: t.Snapshot()})
	return coreservices.TenantChange{ID: t.ID().String(), After: t.Snapshot()}, nil
}

func (s *TenantConsoleService) Get(ctx context.Context, q GetTenant) (*tenant.Tenant, error) {
	if err := requireSuperadmin(ctx); err != nil {
		return nil, err
	}
	return s.tenants.GetByID(ctx, q.ID)
}

func (s *TenantConsoleService) Update(ctx context.Context, cmd UpdateTenant) (coreservices.TenantChange, error) {
	return s.change(ctx, cmd.ID, func(t *tenant.Tenant) error {
		domain := tenant.NormalizeDomain(cmd.Domain)
		if domain != t.Domain() {
			taken, err := s.tenants.DomainExists(ctx, domain, t.ID())
			if err != nil {
				return err
			}
			if taken {
				return coreservices.ErrDomainTaken
			}
			t.SetDomain(domain)
		}
		t.SetName(cmd.Name)
		return nil
	})
}

func (s *TenantConsoleService) SetFeatures(ctx context.Context, cmd SetTenantFeatures) (coreservices.TenantChange, error) {
	return s.change(ctx, cmd.ID, func(t *tenant.Tenant) error {
		_, _, err := t.SetFeatures(cmd.Features)
		return err
	})
}

func (s *TenantConsoleService) SetActive(ctx context.Context, cmd SetTenantActive) (coreservices.TenantChange, error) {
	return s.change(ctx, cmd.ID, func(t *tenant.Tenant) error {
		t.SetActive(cmd.Active)
		return nil
	})
}

// change loads a tenant, applies fn and saves it unless nothing changed.
func (s *TenantConsoleService) change(ctx context.Context, id uuid.UUID, fn func(t *tenant.Tenant) error) (coreservices.TenantChange, error) {
	if err := requireSuperadmin(ctx); err != nil {
		return coreservices.TenantChange{}, err
	}
	t, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return coreservices.TenantChange{}, err
	}
	before := t.Snapshot()
	if err := fn(t); err != nil {
		return coreservices.TenantChange{}, err
	}
	if sameTenant(before, t.Snapshot()) {
		return coreservices.TenantChange{ID: id.String(), Before: before, After: before}, nil
	}
	return s.saver.Save(ctx, before, t)
}

func sameTenant(a, b tenant.Snapshot) bool {
	return a.Name == b.Name && a.Domain == b.Domain && a.IsActive == b.IsActive && slices.Equal(a.Features, b.Features)
}

// requireSuperadmin lets requests without a user through; those come from
// the CLI and seeding.
func requireSuperadmin(ctx context.Context) error {
	u, err := composables.UseUser(ctx)
	if err != nil {
		return nil
	}
	if !u.IsSuperadmin() {
		return ErrSuperadminOnly
	}
	return nil
}
