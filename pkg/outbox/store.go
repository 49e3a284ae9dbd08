package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type claimed struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Topic    string
	Payload  []byte
	EventID  uuid.UUID
	Sequence int64
	Attempts int
}

// store is the relay's view of the outbox table.
type store interface {
	Claim(ctx context.Context, now, lockCutoff time.Time, maxAttempts, limit int) ([]claimed, error)
	Ack(ctx context.Context, id uuid.UUID) error
	Retry(ctx context.Context, id uuid.UUID, lastError string, availableAt time.Time) error
	Bury(ctx context.Context, id uuid.UUID, lastError string) error
	Depth(ctx context.Context) (pending, locked int64, err error)
	// Lead tries to take the single-active lock. release is nil when not leader.
	Lead(ctx context.Context) (release func(), err error)
}

const (
	claimSelectQuery = `
		SELECT id, tenant_id, topic, payload, event_id, sequence, attempts
		  FROM outbox
		 WHERE published_at IS NULL
		   AND available_at <= $1
		   AND attempts < $2
		   AND (locked_at IS NULL OR locked_at < $3)
		 ORDER BY available_at, sequence
		 LIMIT $4
		 FOR UPDATE SKIP LOCKED`
	claimUpdateQuery = `UPDATE outbox SET locked_at = $1, attempts = attempts + 1 WHERE id = ANY($2)`
	ackQuery         = `
		UPDATE outbox
		   SET published_at = now(), locked_at = NULL, last_error = NULL
		 WHERE id = $1 AND published_at IS NULL`
	retryQuery = `
		UPDATE outbox
		   SET locked_at = NULL, last_error = $2, available_at = $3
		 WHERE id = $1 AND published_at IS NULL`
	buryQuery = `
		UPDATE outbox
		   SET locked_at = NULL, last_error = $2, dead_at = now()
		 WHERE id = $1 AND published_at IS NULL`
	depthQuery = `
		SELECT count(*), count(*) FILTER (WHERE locked_at IS NOT NULL)
		  FROM outbox
		 WHERE published_at IS NULL AND dead_at IS NULL`
	relayLockKey = int64(0x6f7574626f78) // "outbox"
)

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) Claim(ctx context.Context, now, lockCutoff time.Time, maxAttempts, limit int) ([]claimed, error) {
	var items []claimed
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, claimSelectQuery, now, maxAttempts, lockCutoff, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		ids := make([]uuid.UUID, 0, limit)
		for rows.Next() {
			var c claimed
			var tenantID *uuid.UUID
			if err := rows.Scan(&c.ID, &tenantID, &c.Topic, &c.Payload, &c.EventID, &c.Sequence, &c.Attempts); err != nil {
				return err
			}
			if tenantID != nil {
				c.TenantID = *tenantID
			}
			c.Attempts++
			items = append(items, c)
			ids = append(ids, c.ID)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, claimUpdateQuery, now, pgtype.FlatArray[uuid.UUID](ids))
		return err
	})
	return items, err
}

func (s *pgStore) Ack(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, ackQuery, id)
	return err
}

func (s *pgStore) Retry(ctx context.Context, id uuid.UUID, lastError string, availableAt time.Time) error {
	_, err := s.pool.Exec(ctx, retryQuery, id, lastError, availableAt)
	return err
}

func (s *pgStore) Bury(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := s.pool.Exec(ctx, buryQuery, id, lastError)
	return err
}

func (s *pgStore) Depth(ctx context.Context) (int64, int64, error) {
	var pending, locked int64
	err := s.pool.QueryRow(ctx, depthQuery).Scan(&pending, &locked)
	return pending, locked, err
}

func (s *pgStore) Lead(ctx context.Context) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, relayLockKey).Scan(&ok); err != nil {
		conn.Release()
		return nil, err
	}
	if !ok {
		conn.Release()
		return nil, nil
	}
	return func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, relayLockKey)
		conn.Release()
	}, nil
}
