package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/iota-uz/admin-portal/modules/logging/domain/entities/auditlog"
	"github.com/iota-uz/admin-portal/modules/logging/domain/entities/authenticationlog"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/mediator"
)

const (
	authLogInsertQuery = `
		INSERT INTO authentication_logs (id, tenant_id, user_id, email, method, succeeded, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	authLogPurgeQuery = `DELETE FROM authentication_logs WHERE created_at < $1`

	auditLogInsertQuery = `
		INSERT INTO audit_logs (id, tenant_id, user_id, request, entity_id, succeeded, error_code, changes, payload, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	auditLogPurgeQuery = `DELETE FROM audit_logs WHERE created_at < $1`
)

type AuthenticationLogRepository struct{}

func NewAuthenticationLogRepository() authenticationlog.Repository {
	return &AuthenticationLogRepository{}
}

func (r *AuthenticationLogRepository) Create(ctx context.Context, log *authenticationlog.AuthenticationLog) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	m := ToDBAuthenticationLog(log)
	if _, err := tx.Exec(ctx, authLogInsertQuery,
		m.ID, m.TenantID, m.UserID, m.Email, m.Method, m.Succeeded, m.IP, m.UserAgent, m.CreatedAt,
	); err != nil {
		return errors.Wrap(err, "failed to insert authentication log")
	}
	return nil
}

func (r *AuthenticationLogRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return purge(ctx, authLogPurgeQuery, before)
}

// AuditLogRepository stores audit entries and serves as the mediator's
// audit sink.
type AuditLogRepository struct{}

func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{}
}

var (
	_ auditlog.Repository = (*AuditLogRepository)(nil)
	_ mediator.AuditStore = (*AuditLogRepository)(nil)
)

func (r *AuditLogRepository) Create(ctx context.Context, log *auditlog.AuditLog) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	m := ToDBAuditLog(log)
	if _, err := tx.Exec(ctx, auditLogInsertQuery,
		m.ID, m.TenantID, m.UserID, m.Request, m.EntityID, m.Succeeded, m.ErrorCode, m.Changes, m.Payload, m.IP, m.CreatedAt,
	); err != nil {
		return errors.Wrap(err, "failed to insert audit log")
	}
	return nil
}

func (r *AuditLogRepository) Record(ctx context.Context, entry *mediator.AuditEntry) error {
	return r.Create(ctx, FromAuditEntry(entry))
}

func (r *AuditLogRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return purge(ctx, auditLogPurgeQuery, before)
}

func purge(ctx context.Context, query string, before time.Time) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, query, before)
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge logs")
	}
	return tag.RowsAffected(), nil
}
