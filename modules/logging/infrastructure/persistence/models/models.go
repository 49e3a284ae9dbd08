package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type AuthenticationLog struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	UserID    uuid.NullUUID
	Email     string
	Method    string
	Succeeded bool
	IP        string
	UserAgent string
	CreatedAt time.Time
}

type AuditLog struct {
	ID        uuid.UUID
	TenantID  uuid.NullUUID
	UserID    uuid.NullUUID
	Request   string
	EntityID  sql.NullString
	Succeeded bool
	ErrorCode sql.NullString
	Changes   []byte
	Payload   []byte
	IP        sql.NullString
	CreatedAt time.Time
}
