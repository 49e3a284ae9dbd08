package viewmodels

import (
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
)

type Device struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

type User struct {
	ID                  uuid.UUID   `json:"id"`
	Type                string      `json:"type"`
	Email               string      `json:"email"`
	FirstName           string      `json:"firstName"`
	LastName            string      `json:"lastName"`
	UILanguage          string      `json:"uiLanguage"`
	IsActive            bool        `json:"isActive"`
	IsLocked            bool        `json:"isLocked"`
	LockedUntil         *time.Time  `json:"lockedUntil,omitempty"`
	HasAuthenticatorApp bool        `json:"hasAuthenticatorApp"`
	Devices             []Device    `json:"devices"`
	RoleIDs             []uuid.UUID `json:"roleIds"`
	LastLogin           *time.Time  `json:"lastLogin,omitempty"`
	LastIP              string      `json:"lastIp,omitempty"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

func UserToViewModel(u user.User, now time.Time) *User {
	devices := make([]Device, 0, len(u.Devices()))
	for _, d := range u.Devices() {
		devices = append(devices, Device{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt, LastUsedAt: d.LastUsedAt})
	}
	roleIDs := u.RoleIDs()
	if roleIDs == nil {
		roleIDs = []uuid.UUID{}
	}
	return &User{
		ID:                  u.ID(),
		Type:                string(u.Type()),
		Email:               u.Email(),
		FirstName:           u.FirstName(),
		LastName:            u.LastName(),
		UILanguage:          string(u.UILanguage()),
		IsActive:            u.IsActive(),
		IsLocked:            u.IsLocked(now),
		LockedUntil:         u.LockedUntil(),
		HasAuthenticatorApp: u.HasAuthenticatorApp(),
		Devices:             devices,
		RoleIDs:             roleIDs,
		LastLogin:           u.LastLogin(),
		LastIP:              u.LastIP(),
		CreatedAt:           u.CreatedAt(),
		UpdatedAt:           u.UpdatedAt(),
	}
}

// HasRole is used by the role checkboxes of the user form.
func (u *User) HasRole(id uuid.UUID) bool {
	for _, r := range u.RoleIDs {
		if r == id {
			return true
		}
	}
	return false
}

type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Resources   []string  `json:"resources"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func RoleToViewModel(r role.Role) *Role {
	return &Role{
		ID:          r.ID(),
		Name:        r.Name(),
		Description: r.Description(),
		Resources:   role.ResourceStrings(r.Resources()),
		CreatedAt:   r.CreatedAt(),
		UpdatedAt:   r.UpdatedAt(),
	}
}

func RolesToViewModels(roles []role.Role) []*Role {
	out := make([]*Role, len(roles))
	for i, r := range roles {
		out[i] = RoleToViewModel(r)
	}
	return out
}

func (r *Role) Has(resource string) bool {
	for _, res := range r.Resources {
		if res == resource {
			return true
		}
	}
	return false
}

type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	IsActive  bool      `json:"isActive"`
	Features  []string  `json:"features"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func TenantToViewModel(t *tenant.Tenant) *Tenant {
	features := make([]string, 0, len(t.Features()))
	for _, f := range t.Features() {
		features = append(features, string(f))
	}
	return &Tenant{
		ID:        t.ID(),
		Name:      t.Name(),
		Domain:    t.Domain(),
		IsActive:  t.IsActive(),
		Features:  features,
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
}

func (t *Tenant) Has(feature string) bool {
	for _, f := range t.Features {
		if f == feature {
			return true
		}
	}
	return false
}
