package dtos

import (
	"strings"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/modules/core/services"
)

// UserDTO is bound from the user form and from JSON API bodies.
type UserDTO struct {
	Email      string      `json:"email"`
	FirstName  string      `json:"firstName"`
	LastName   string      `json:"lastName"`
	Password   string      `json:"password,omitempty"`
	UILanguage string      `json:"uiLanguage"`
	RoleIDs    []uuid.UUID `json:"roleIds"`
}

func (d *UserDTO) ToCreateCommand() services.CreateUser {
	return services.CreateUser{
		Email:      strings.TrimSpace(d.Email),
		FirstName:  strings.TrimSpace(d.FirstName),
		LastName:   strings.TrimSpace(d.LastName),
		Password:   d.Password,
		UILanguage: d.UILanguage,
		RoleIDs:    d.RoleIDs,
	}
}

func (d *UserDTO) ToUpdateCommand(id uuid.UUID) services.UpdateUser {
	lang := d.UILanguage
	if lang == "" {
		lang = "en"
	}
	return services.UpdateUser{
		ID:         id,
		Email:      strings.TrimSpace(d.Email),
		FirstName:  strings.TrimSpace(d.FirstName),
		LastName:   strings.TrimSpace(d.LastName),
		UILanguage: lang,
	}
}

type UserRolesDTO struct {
	RoleIDs []uuid.UUID `json:"roleIds"`
}

type UserActiveDTO struct {
	Active bool `json:"active"`
}

type RoleDTO struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Resources   []string `json:"resources"`
}

func (d *RoleDTO) resources() []role.Resource {
	out := make([]role.Resource, 0, len(d.Resources))
	for _, r := range d.Resources {
		out = append(out, role.Resource(r))
	}
	return out
}

func (d *RoleDTO) ToCreateCommand() services.CreateRole {
	return services.CreateRole{
		Name:        strings.TrimSpace(d.Name),
		Description: strings.TrimSpace(d.Description),
		Resources:   d.resources(),
	}
}

func (d *RoleDTO) ToUpdateCommand(id uuid.UUID) services.UpdateRole {
	return services.UpdateRole{
		ID:          id,
		Name:        strings.TrimSpace(d.Name),
		Description: strings.TrimSpace(d.Description),
	}
}

func (d *RoleDTO) ToResourcesCommand(id uuid.UUID) services.SetRoleResources {
	return services.SetRoleResources{RoleID: id, Resources: d.resources()}
}

type TenantDTO struct {
	Name string `json:"name"`
}

type FeaturesDTO struct {
	Features []string `json:"features"`
}

func (d *FeaturesDTO) ToCommand() services.SetTenantFeatures {
	features := make([]tenant.Feature, 0, len(d.Features))
	for _, f := range d.Features {
		features = append(features, tenant.Feature(f))
	}
	return services.SetTenantFeatures{Features: features}
}

type PasswordDTO struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (d *PasswordDTO) ToCommand() services.ChangePassword {
	return services.ChangePassword{CurrentPassword: d.CurrentPassword, NewPassword: d.NewPassword}
}

type ProfileDTO struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	UILanguage string `json:"uiLanguage"`
}

type DeviceDTO struct {
	Name string `json:"name"`
}

type CodeJSONDTO struct {
	Code string `json:"code"`
}
