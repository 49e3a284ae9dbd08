package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/admin-portal/modules/superadmin/domain/aggregates/alert"
	"github.com/iota-uz/admin-portal/pkg/composables"
)

const (
	alertSelectQuery = `SELECT id, message, severity, active_from, active_to, created_at, updated_at FROM system_alerts`
	alertByIDQuery   = alertSelectQuery + ` WHERE id = $1`
	alertActiveQuery = alertSelectQuery + ` WHERE active_from <= $1 AND (active_to IS NULL OR active_to > $1)`
	alertInsertQuery = `
		INSERT INTO system_alerts (id, message, severity, active_from, active_to, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	alertUpdateQuery = `
		UPDATE system_alerts SET message = $2, severity = $3, active_from = $4, active_to = $5, updated_at = $6
		WHERE id = $1`
	alertDeleteQuery = `DELETE FROM system_alerts WHERE id = $1`
)

type AlertRepository struct{}

func NewAlertRepository() alert.Repository {
	return &AlertRepository{}
}

func (r *AlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*alert.SystemAlert, error) {
	alerts, err := r.query(ctx, alertByIDQuery, id)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return nil, alert.ErrAlertNotFound
	}
	return alerts[0], nil
}

func (r *AlertRepository) Active(ctx context.Context, now time.Time) ([]*alert.SystemAlert, error) {
	return r.query(ctx, alertActiveQuery, now)
}

func (r *AlertRepository) Create(ctx context.Context, a *alert.SystemAlert) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, alertInsertQuery,
		a.ID(), a.Message(), string(a.Severity()), a.ActiveFrom(), a.ActiveTo(), a.CreatedAt(), a.UpdatedAt(),
	); err != nil {
		return errors.Wrap(err, "failed to insert system alert")
	}
	return nil
}

func (r *AlertRepository) Update(ctx context.Context, a *alert.SystemAlert) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, alertUpdateQuery,
		a.ID(), a.Message(), string(a.Severity()), a.ActiveFrom(), a.ActiveTo(), a.UpdatedAt(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to update system alert")
	}
	if tag.RowsAffected() == 0 {
		return alert.ErrAlertNotFound
	}
	return nil
}

func (r *AlertRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, alertDeleteQuery, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete system alert")
	}
	if tag.RowsAffected() == 0 {
		return alert.ErrAlertNotFound
	}
	return nil
}

func (r *AlertRepository) query(ctx context.Context, sql string, args ...any) ([]*alert.SystemAlert, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query system alerts")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*alert.SystemAlert, error) {
		var (
			id                   uuid.UUID
			message, severity    string
			activeFrom           time.Time
			activeTo             *time.Time
			createdAt, updatedAt time.Time
		)
		if err := row.Scan(&id, &message, &severity, &activeFrom, &activeTo, &createdAt, &updatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan system alert")
		}
		return alert.New(message, alert.Severity(severity), activeFrom, activeTo,
			alert.WithID(id),
			alert.WithCreatedAt(createdAt),
			alert.WithUpdatedAt(updatedAt),
		)
	})
}
