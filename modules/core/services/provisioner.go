package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

// AdministratorsRole is created in every new tenant and holds every resource.
const AdministratorsRole = "Administrators"

var ErrDomainTaken = serrors.NewError(serrors.Conflict, "domain is already used by another tenant", "Errors.DomainTaken")

type ProvisionParams struct {
	Name           string
	Domain         string
	Features       []tenant.Feature
	AdminEmail     string
	AdminFirstName string
	AdminLastName  string
	AdminPassword  string
	AdminType      user.Type
	AdminLanguage  user.UILanguage
}

type ProvisionResult struct {
	Tenant *tenant.Tenant
	Role   role.Role
	Admin  user.User
}

// Provisioner creates a tenant with its Administrators role and first user.
// It must run inside a transaction.
type Provisioner struct {
	tenants tenant.Repository
	roles   role.Repository
	users   user.Repository
}

func NewProvisioner(tenants tenant.Repository, roles role.Repository, users user.Repository) *Provisioner {
	return &Provisioner{tenants: tenants, roles: roles, users: users}
}

func (p *Provisioner) Provision(ctx context.Context, params ProvisionParams) (ProvisionResult, error) {
	domain := tenant.NormalizeDomain(params.Domain)
	taken, err := p.tenants.DomainExists(ctx, domain, uuid.Nil)
	if err != nil {
		return ProvisionResult{}, err
	}
	if taken {
		return ProvisionResult{}, ErrDomainTaken
	}
	email, err := user.NormalizeEmail(params.AdminEmail)
	if err != nil {
		return ProvisionResult{}, err
	}
	features := params.Features
	if features == nil {
		features = tenant.AllFeatures
	}
	t, err := p.tenants.Create(ctx, tenant.New(params.Name, tenant.WithDomain(domain), tenant.WithFeatures(features)))
	if err != nil {
		return ProvisionResult{}, err
	}

	tenantCtx := composables.WithTenantID(ctx, t.ID())
	admins, err := p.roles.Create(tenantCtx, role.New(AdministratorsRole,
		role.WithTenantID(t.ID()),
		role.WithDescription("Full access to the organization"),
		role.WithResources(role.AllResources),
	))
	if err != nil {
		return ProvisionResult{}, err
	}

	kind := params.AdminType
	if kind == "" {
		kind = user.TypeUser
	}
	lang := params.AdminLanguage
	if lang == "" {
		lang = user.UILanguageEN
	}
	u := user.New(email, params.AdminFirstName, params.AdminLastName,
		user.WithTenantID(t.ID()),
		user.WithType(kind),
		user.WithUILanguage(lang),
		user.WithRoleIDs([]uuid.UUID{admins.ID()}),
	)
	if u, err = u.SetPassword(params.AdminPassword); err != nil {
		return ProvisionResult{}, err
	}
	admin, err := p.users.Create(tenantCtx, u)
	if err != nil {
		return ProvisionResult{}, err
	}
	return ProvisionResult{Tenant: t, Role: admins, Admin: admin}, nil
}
