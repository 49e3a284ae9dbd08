package controllers

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/modules/superadmin/domain/aggregates/alert"
	"github.com/iota-uz/admin-portal/modules/superadmin/services"
)

type ProvisionDTO struct {
	Name           string           `json:"name"`
	Domain         string           `json:"domain"`
	Features       []tenant.Feature `json:"features"`
	AdminEmail     string           `json:"adminEmail"`
	AdminFirstName string           `json:"adminFirstName"`
	AdminLastName  string           `json:"adminLastName"`
	AdminPassword  string           `json:"adminPassword"`
	AdminLanguage  string           `json:"adminLanguage"`
}

func (d *ProvisionDTO) ToCommand() services.ProvisionTenant {
	return services.ProvisionTenant{
		Name:           d.Name,
		Domain:         strings.TrimSpace(d.Domain),
		Features:       d.Features,
		AdminEmail:     strings.TrimSpace(d.AdminEmail),
		AdminFirstName: d.AdminFirstName,
		AdminLastName:  d.AdminLastName,
		AdminPassword:  d.AdminPassword,
		AdminLanguage:  d.AdminLanguage,
	}
}

type TenantDTO struct {
	Name     string           `json:"name"`
	Domain   string           `json:"domain"`
	Features []tenant.Feature `json:"features"`
	IsActive *bool            `json:"isActive"`
}

// AlertDTO is bound from the alert form; a zero ActiveTo means open ended.
type AlertDTO struct {
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	ActiveFrom time.Time `json:"activeFrom"`
	ActiveTo   time.Time `json:"activeTo"`
}

func (d *AlertDTO) activeTo() *time.Time {
	if d.ActiveTo.IsZero() {
		return nil
	}
	t := d.ActiveTo
	return &t
}

func (d *AlertDTO) ToCreateCommand() services.CreateSystemAlert {
	return services.CreateSystemAlert{
		Message:    strings.TrimSpace(d.Message),
		Severity:   d.Severity,
		ActiveFrom: d.ActiveFrom,
		ActiveTo:   d.activeTo(),
	}
}

func (d *AlertDTO) ToUpdateCommand(id uuid.UUID) services.UpdateSystemAlert {
	return services.UpdateSystemAlert{
		ID:         id,
		Message:    strings.TrimSpace(d.Message),
		Severity:   d.Severity,
		ActiveFrom: d.ActiveFrom,
		ActiveTo:   d.activeTo(),
	}
}

func alertToDTO(a *alert.SystemAlert) AlertDTO {
	dto := AlertDTO{Message: a.Message(), Severity: string(a.Severity()), ActiveFrom: a.ActiveFrom()}
	if to := a.ActiveTo(); to != nil {
		dto.ActiveTo = *to
	}
	return dto
}

// TenantView is the edit form model.
type TenantView struct {
	ID       uuid.UUID
	Name     string
	Domain   string
	IsActive bool
	Features []tenant.Feature
}

func (v *TenantView) Has(f tenant.Feature) bool {
	return slices.Contains(v.Features, f)
}

func tenantToView(t *tenant.Tenant) *TenantView {
	return &TenantView{ID: t.ID(), Name: t.Name(), Domain: t.Domain(), IsActive: t.IsActive(), Features: t.Features()}
}

func (d *ProvisionDTO) Has(f tenant.Feature) bool {
	return slices.Contains(d.Features, f)
}
