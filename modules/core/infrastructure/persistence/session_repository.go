package persistence

import (
	"context"
	"errors"

	goerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/modules/core/infrastructure/persistence/models"
	"github.com/iota-uz/admin-portal/pkg/composables"
)

const (
	sessionFindQuery   = `SELECT token, user_id, tenant_id, ip, user_agent, expires_at, created_at FROM sessions WHERE token = $1`
	sessionInsertQuery = `
		INSERT INTO sessions (token, user_id, tenant_id, ip, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

type SessionRepository struct{}

func NewSessionRepository() session.Repository {
	return &SessionRepository{}
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*session.Session, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var m models.Session
	err = tx.QueryRow(ctx, sessionFindQuery, token).Scan(
		&m.Token, &m.UserID, &m.TenantID, &m.IP, &m.UserAgent, &m.ExpiresAt, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, goerrors.Wrap(err, "failed to get session")
	}
	return ToDomainSession(&m), nil
}

func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(
		ctx, sessionInsertQuery,
		s.Token, s.UserID, s.TenantID, s.IP, s.UserAgent, s.ExpiresAt, s.CreatedAt,
	); err != nil {
		return goerrors.Wrap(err, "failed to insert session")
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return goerrors.Wrap(err, "failed to delete session")
	}
	return nil
}

// DeleteByUser removes every session of a user and returns their tokens.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `DELETE FROM sessions WHERE user_id = $1 RETURNING token`, userID)
	if err != nil {
		return nil, goerrors.Wrap(err, "failed to delete user sessions")
	}
	defer rows.Close()
	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (r *SessionRepository) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) ([]session.Revoked, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `DELETE FROM sessions WHERE tenant_id = $1 RETURNING token, user_id`, tenantID)
	if err != nil {
		return nil, goerrors.Wrap(err, "failed to delete tenant sessions")
	}
	defer rows.Close()
	var revoked []session.Revoked
	for rows.Next() {
		var rv session.Revoked
		if err := rows.Scan(&rv.Token, &rv.UserID); err != nil {
			return nil, err
		}
		revoked = append(revoked, rv)
	}
	return revoked, rows.Err()
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, goerrors.Wrap(err, "failed to delete expired sessions")
	}
	return tag.RowsAffected(), nil
}
