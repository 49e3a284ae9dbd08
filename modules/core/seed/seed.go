// Package seed creates the data a fresh installation needs to be usable.
package seed

import (
	"context"
	"errors"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/modules/core/infrastructure/persistence"
	"github.com/iota-uz/admin-portal/modules/core/services"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/configuration"
)

// TenantSpec describes one tenant to provision when it does not exist yet.
type TenantSpec struct {
	Name          string           `yaml:"name"`
	Domain        string           `yaml:"domain"`
	Features      []tenant.Feature `yaml:"features"`
	AdminEmail    string           `yaml:"adminEmail"`
	AdminFirst    string           `yaml:"adminFirstName"`
	AdminLast     string           `yaml:"adminLastName"`
	AdminPassword string           `yaml:"adminPassword"`
	AdminLanguage string           `yaml:"adminLanguage"`
	Superadmin    bool             `yaml:"superadmin"`
}

// DefaultTenant is the operator tenant built from configuration. Its
// administrator is a superadmin.
func DefaultTenant(conf *configuration.Configuration) TenantSpec {
	return TenantSpec{
		Name:          conf.Auth.SuperadminTenantName,
		Domain:        conf.Auth.SuperadminTenantHost,
		AdminEmail:    conf.Auth.SuperadminEmail,
		AdminFirst:    "System",
		AdminLast:     "Administrator",
		AdminPassword: conf.Auth.SuperadminPassword,
		Superadmin:    true,
	}
}

// CreateDefaultTenant is the core module's seed step.
func CreateDefaultTenant(ctx context.Context, app application.Application) error {
	return Tenants(ctx, app, DefaultTenant(configuration.Use()))
}

// Tenants provisions every tenant whose domain is not taken yet.
func Tenants(ctx context.Context, app application.Application, specs ...TenantSpec) error {
	logger := configuration.Use().Logger()
	ctx = composables.WithPool(ctx, app.DB())
	tenants := persistence.NewTenantRepository()
	p := services.NewProvisioner(tenants, persistence.NewRoleRepository(), persistence.NewUserRepository())

	for _, spec := range specs {
		domain := tenant.NormalizeDomain(spec.Domain)
		if _, err := tenants.GetByDomain(ctx, domain); err == nil {
			logger.Infof("tenant %s already exists", domain)
			continue
		} else if !errors.Is(err, tenant.ErrTenantNotFound) {
			return err
		}
		err := composables.InTx(ctx, func(txCtx context.Context) error {
			_, err := p.Provision(txCtx, spec.params())
			return err
		})
		if err != nil {
			return err
		}
		logger.Infof("provisioned tenant %s", domain)
	}
	return nil
}

func (s TenantSpec) params() services.ProvisionParams {
	kind := user.TypeUser
	if s.Superadmin {
		kind = user.TypeSuperadmin
	}
	return services.ProvisionParams{
		Name:           s.Name,
		Domain:         s.Domain,
		Features:       s.Features,
		AdminEmail:     s.AdminEmail,
		AdminFirstName: s.AdminFirst,
		AdminLastName:  s.AdminLast,
		AdminPassword:  s.AdminPassword,
		AdminType:      kind,
		AdminLanguage:  user.UILanguage(s.AdminLanguage),
	}
}
