package persistence

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/role"
	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/tenant"
	"github.com/iota-uz/admin-portal/modules/core/infrastructure/persistence/models"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func ToDomainTenant(t *models.Tenant) *tenant.Tenant {
	features := make([]tenant.Feature, 0, len(t.Features))
	for _, f := range t.Features {
		features = append(features, tenant.Feature(f))
	}
	return tenant.New(
		t.Name,
		tenant.WithID(t.ID),
		tenant.WithDomain(t.Domain),
		tenant.WithIsActive(t.IsActive),
		tenant.WithFeatures(features),
		tenant.WithCreatedAt(t.CreatedAt),
		tenant.WithUpdatedAt(t.UpdatedAt),
	)
}

func ToDBTenant(t *tenant.Tenant) *models.Tenant {
	features := make([]string, 0)
	for _, f := range t.Features() {
		features = append(features, string(f))
	}
	return &models.Tenant{
		ID:        t.ID(),
		Name:      t.Name(),
		Domain:    t.Domain(),
		IsActive:  t.IsActive(),
		Features:  features,
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
}

func ToDomainDevice(d *models.AuthenticatorDevice) user.Device {
	return user.Device{
		ID:           d.ID,
		Name:         d.Name,
		CredentialID: d.CredentialID,
		Credential:   d.Credential,
		SignCount:    uint32(d.SignCount),
		CreatedAt:    d.CreatedAt,
		LastUsedAt:   timePtr(d.LastUsedAt),
	}
}

func ToDBDevice(userID uuid.UUID, d user.Device) *models.AuthenticatorDevice {
	return &models.AuthenticatorDevice{
		ID:           d.ID,
		UserID:       userID,
		Name:         d.Name,
		CredentialID: d.CredentialID,
		Credential:   d.Credential,
		SignCount:    int64(d.SignCount),
		CreatedAt:    d.CreatedAt,
		LastUsedAt:   nullTime(d.LastUsedAt),
	}
}

func ToDomainUser(u *models.User, roleIDs []uuid.UUID, devices []user.Device) user.User {
	return user.New(
		u.Email,
		u.FirstName,
		u.LastName,
		user.WithID(u.ID),
		user.WithTenantID(u.TenantID),
		user.WithType(user.Type(u.Type)),
		user.WithPasswordHash(u.Password.String),
		user.WithUILanguage(user.UILanguage(u.UILanguage)),
		user.WithIsActive(u.IsActive),
		user.WithLockout(u.FailedAttempts, timePtr(u.LockedUntil)),
		user.WithAuthenticator(u.AuthenticatorSecret.String, timePtr(u.AuthenticatorEnrolledAt)),
		user.WithLastLogin(timePtr(u.LastLogin), u.LastIP.String),
		user.WithRoleIDs(roleIDs),
		user.WithDevices(devices),
		user.WithCreatedAt(u.CreatedAt),
		user.WithUpdatedAt(u.UpdatedAt),
	)
}

func ToDBUser(u user.User) *models.User {
	return &models.User{
		ID:                      u.ID(),
		TenantID:                u.TenantID(),
		Type:                    string(u.Type()),
		Email:                   u.Email(),
		FirstName:               u.FirstName(),
		LastName:                u.LastName(),
		Password:                nullString(u.Password()),
		UILanguage:              string(u.UILanguage()),
		IsActive:                u.IsActive(),
		FailedAttempts:          u.FailedAttempts(),
		LockedUntil:             nullTime(u.LockedUntil()),
		AuthenticatorSecret:     nullString(u.AuthenticatorSecret()),
		AuthenticatorEnrolledAt: nullTime(u.AuthenticatorEnrolledAt()),
		LastLogin:               nullTime(u.LastLogin()),
		LastIP:                  nullString(u.LastIP()),
		CreatedAt:               u.CreatedAt(),
		UpdatedAt:               u.UpdatedAt(),
	}
}

func ToDomainRole(r *models.Role, resources []string) role.Role {
	res := make([]role.Resource, 0, len(resources))
	for _, s := range resources {
		res = append(res, role.Resource(s))
	}
	return role.New(
		r.Name,
		role.WithID(r.ID),
		role.WithTenantID(r.TenantID),
		role.WithDescription(r.Description.String),
		role.WithResources(res),
		role.WithCreatedAt(r.CreatedAt),
		role.WithUpdatedAt(r.UpdatedAt),
	)
}

func ToDBRole(r role.Role) *models.Role {
	return &models.Role{
		ID:          r.ID(),
		TenantID:    r.TenantID(),
		Name:        r.Name(),
		Description: nullString(r.Description()),
		CreatedAt:   r.CreatedAt(),
		UpdatedAt:   r.UpdatedAt(),
	}
}

func ToDomainSession(s *models.Session) *session.Session {
	return &session.Session{
		Token:     s.Token,
		UserID:    s.UserID,
		TenantID:  s.TenantID,
		IP:        s.IP,
		UserAgent: s.UserAgent,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}
}
