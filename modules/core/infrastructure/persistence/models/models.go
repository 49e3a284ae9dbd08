package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Tenant struct {
	ID        uuid.UUID
	Name      string
	Domain    string
	IsActive  bool
	Features  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID                      uuid.UUID
	TenantID                uuid.UUID
	Type                    string
	Email                   string
	FirstName               string
	LastName                string
	Password                sql.NullString
	UILanguage              string
	IsActive                bool
	FailedAttempts          int
	LockedUntil             sql.NullTime
	AuthenticatorSecret     sql.NullString
	AuthenticatorEnrolledAt sql.NullTime
	LastLogin               sql.NullTime
	LastIP                  sql.NullString
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

type AuthenticatorDevice struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Name         string
	CredentialID []byte
	Credential   []byte
	SignCount    int64
	CreatedAt    time.Time
	LastUsedAt   sql.NullTime
}

type Role struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Description sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Session struct {
	Token     string
	UserID    uuid.UUID
	TenantID  uuid.UUID
	IP        string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}
