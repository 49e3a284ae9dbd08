package persistence

import (
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/logging/domain/entities/auditlog"
	"github.com/iota-uz/admin-portal/modules/logging/domain/entities/authenticationlog"
	"github.com/iota-uz/admin-portal/modules/logging/infrastructure/persistence/models"
	"github.com/iota-uz/admin-portal/pkg/mediator"
)

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil || *id == uuid.Nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

func ToDBAuthenticationLog(log *authenticationlog.AuthenticationLog) *models.AuthenticationLog {
	return &models.AuthenticationLog{
		ID:        log.ID,
		TenantID:  log.TenantID,
		UserID:    nullUUID(log.UserID),
		Email:     log.Email,
		Method:    log.Method,
		Succeeded: log.Succeeded,
		IP:        log.IP,
		UserAgent: log.UserAgent,
		CreatedAt: log.CreatedAt,
	}
}

func ToDBAuditLog(log *auditlog.AuditLog) *models.AuditLog {
	return &models.AuditLog{
		ID:        log.ID,
		TenantID:  nullUUID(log.TenantID),
		UserID:    nullUUID(log.UserID),
		Request:   log.Request,
		EntityID:  nullString(log.EntityID),
		Succeeded: log.Succeeded,
		ErrorCode: nullString(log.ErrorCode),
		Changes:   nullJSON(log.Changes),
		Payload:   nullJSON(log.Payload),
		IP:        nullString(log.IP),
		CreatedAt: log.CreatedAt,
	}
}

// FromAuditEntry converts a mediator audit entry. Nil ids become NULL.
func FromAuditEntry(entry *mediator.AuditEntry) *auditlog.AuditLog {
	log := &auditlog.AuditLog{
		ID:        entry.ID,
		Request:   entry.Request,
		EntityID:  entry.EntityID,
		Succeeded: entry.Succeeded,
		ErrorCode: entry.ErrorCode,
		Changes:   entry.Changes,
		Payload:   entry.Payload,
		IP:        entry.IP,
		CreatedAt: entry.CreatedAt,
	}
	if entry.TenantID != uuid.Nil {
		id := entry.TenantID
		log.TenantID = &id
	}
	if entry.UserID != uuid.Nil {
		id := entry.UserID
		log.UserID = &id
	}
	return log
}
